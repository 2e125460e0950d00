// Package broadcast fans script output out to every subscriber.
package broadcast

import (
	"strings"

	"github.com/dimasma0305/opsrelay/internal/log"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/errors"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/registry"
)

// Messenger sends a single message to one chat.
type Messenger interface {
	SendMessage(chatID int64, text string, markdown bool) error
}

// Delivery sends messages to the whole subscriber set.
type Delivery struct {
	messenger Messenger
	registry  *registry.Registry
}

// New creates a delivery backed by the given messenger and registry.
func New(messenger Messenger, reg *registry.Registry) *Delivery {
	return &Delivery{messenger: messenger, registry: reg}
}

// Deliver sends the chunks to every current subscriber, preceded by
// the title when includeTitle is set. Empty chunks are skipped. A
// recipient counts as delivered only if all of its sends succeeded;
// a failure is logged, counted once and never aborts the loop. When
// the failure text says the bot was blocked, the recipient is removed
// from the registry on the spot.
func (d *Delivery) Deliver(title string, chunks []string, includeTitle bool) (delivered, failed int) {
	for _, chatID := range d.registry.Snapshot() {
		if err := d.deliverTo(chatID, title, chunks, includeTitle); err != nil {
			failed++
			log.Warn("Broadcast to %d failed: %v", chatID, err)
			d.pruneIfBlocked(chatID, err)
			continue
		}
		delivered++
	}
	return delivered, failed
}

// deliverTo sends the title and chunks to one chat. Send failures come
// back classified under ErrDeliveryFailed with the cause text kept, so
// pruneIfBlocked can still match on it.
func (d *Delivery) deliverTo(chatID int64, title string, chunks []string, includeTitle bool) error {
	if includeTitle {
		if err := d.messenger.SendMessage(chatID, title, false); err != nil {
			return errors.Wrapf(errors.ErrDeliveryFailed, "%v", err)
		}
	}
	for _, chunk := range chunks {
		if chunk == "" {
			continue
		}
		if err := d.messenger.SendMessage(chatID, chunk, false); err != nil {
			return errors.Wrapf(errors.ErrDeliveryFailed, "%v", err)
		}
	}
	return nil
}

func (d *Delivery) pruneIfBlocked(chatID int64, err error) {
	if !strings.Contains(strings.ToLower(err.Error()), "blocked") {
		return
	}
	removed, perr := d.registry.Remove(chatID)
	if perr != nil {
		log.Warn("Persisting removal of blocked subscriber %d: %v", chatID, perr)
	}
	if removed {
		log.Info("Removed blocked subscriber %d", chatID)
	}
}
