// Package dispatch routes chat commands to script runs, subscription
// changes and broadcasts.
package dispatch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dimasma0305/opsrelay/internal/log"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/broadcast"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/config"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/registry"
)

// Messenger sends a single message to one chat.
type Messenger interface {
	SendMessage(chatID int64, text string, markdown bool) error
}

// Dispatcher handles incoming chat messages. The config getter is
// called per command so a hot reload takes effect without restarting
// the dispatcher.
type Dispatcher struct {
	messenger Messenger
	registry  *registry.Registry
	delivery  *broadcast.Delivery
	conf      func() *config.BotConfig
	settings  config.Settings
	botName   string
	auth      authState
}

// authState tracks the user who subscribed first. The value is
// in-memory only and single-assignment: once set it never changes for
// the process lifetime, and a restart starts blank.
type authState struct {
	mu    sync.Mutex
	first int64
	set   bool
}

func (a *authState) recordFirst(userID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.set {
		a.first = userID
		a.set = true
	}
}

func (a *authState) firstSubscriber() (int64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.first, a.set
}

// New creates a dispatcher. conf must return the currently loaded
// configuration.
func New(messenger Messenger, reg *registry.Registry, delivery *broadcast.Delivery, conf func() *config.BotConfig, settings config.Settings) *Dispatcher {
	return &Dispatcher{
		messenger: messenger,
		registry:  reg,
		delivery:  delivery,
		conf:      conf,
		settings:  settings,
	}
}

// SetBotName records the bot's username for @mention stripping. Call
// before message handling starts.
func (d *Dispatcher) SetBotName(name string) {
	d.botName = name
}

// HandleMessage routes one incoming message. Safe to call from
// concurrent per-message goroutines.
func (d *Dispatcher) HandleMessage(chatID, userID int64, text string) {
	command, arg, ok := d.parse(text)
	if !ok {
		return
	}

	admin := d.isAdmin(userID)
	log.DebugH2("Command %q from user %d in chat %d (admin=%v)", command, userID, chatID, admin)

	switch command {
	case "start":
		d.handleStart(chatID)
	case "help":
		d.handleHelp(chatID)
	case "status":
		d.handleStatus(chatID)
	case "run":
		d.handleRun(chatID, admin, arg)
	case "stream":
		d.handleStream(chatID, admin, arg)
	case "subscribe":
		d.handleSubscribe(chatID, userID)
	case "unsubscribe":
		d.handleUnsubscribe(chatID)
	case "broadcast":
		d.handleBroadcast(chatID, admin, arg)
	default:
		d.reply(chatID, fmt.Sprintf("Unknown command %q. Send help for the command list.", command))
	}
}

// parse extracts the command token and the argument remainder. One
// leading "/" and a "@botname" suffix on the command token are
// stripped; a mention of a different bot means the message is not for
// us.
func (d *Dispatcher) parse(text string) (command, arg string, ok bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", "", false
	}
	fields := strings.Fields(trimmed)

	command = strings.TrimPrefix(fields[0], "/")
	if base, mention, found := strings.Cut(command, "@"); found {
		if d.botName != "" && !strings.EqualFold(mention, d.botName) {
			return "", "", false
		}
		command = base
	}

	arg = strings.TrimSpace(strings.TrimPrefix(trimmed, fields[0]))
	return command, arg, true
}

// isAdmin evaluates the admin bit for one call. The env allowlist is
// authoritative when present; otherwise the first subscribing user
// owns the bit, and before anyone subscribes every caller holds it for
// the current call only. Both gates key on the sending user, never the
// chat, so group members do not inherit each other's standing.
func (d *Dispatcher) isAdmin(userID int64) bool {
	if len(d.settings.AdminIDs) > 0 {
		for _, id := range d.settings.AdminIDs {
			if id == userID {
				return true
			}
		}
		return false
	}
	first, ok := d.auth.firstSubscriber()
	if !ok {
		return true
	}
	return userID == first
}

func (d *Dispatcher) reply(chatID int64, text string) {
	if err := d.messenger.SendMessage(chatID, text, false); err != nil {
		log.Warn("Replying to %d: %v", chatID, err)
	}
}

// replyCode sends text as a Markdown code block, falling back to a
// plain message when the Markdown variant is rejected.
func (d *Dispatcher) replyCode(chatID int64, text string) {
	fenced := "```\n" + strings.TrimRight(text, "\n") + "\n```"
	if err := d.messenger.SendMessage(chatID, fenced, true); err != nil {
		log.DebugH3("Markdown reply to %d rejected, retrying plain: %v", chatID, err)
		d.reply(chatID, text)
	}
}
