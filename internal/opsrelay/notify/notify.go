// Package notify delivers best-effort operator notifications for
// service lifecycle and failure events.
package notify

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/webhook"
	"gopkg.in/gomail.v2"

	"github.com/dimasma0305/opsrelay/internal/log"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/config"
)

// Level classifies an event for rendering.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Event is one operator notification.
type Event struct {
	Level   Level
	Title   string
	Message string
}

// Notifier delivers events to an operator channel. Implementations
// log failures rather than returning them; notifications never block
// or break the relay itself.
type Notifier interface {
	Notify(event Event)
}

// Multi fans events out to several notifiers. A nil Multi is a no-op,
// so callers never check whether notifications are configured.
type Multi []Notifier

func (m Multi) Notify(event Event) {
	for _, n := range m {
		n.Notify(event)
	}
}

// FromConfig builds the notifier fan-out from the configuration.
// Misconfigured channels are skipped with a warning.
func FromConfig(conf *config.Notifications) Multi {
	if conf == nil {
		return nil
	}
	var multi Multi
	if conf.DiscordWebhook != "" {
		d, err := NewDiscord(conf.DiscordWebhook)
		if err != nil {
			log.Warn("Discord notifications disabled: %v", err)
		} else {
			multi = append(multi, d)
		}
	}
	if conf.Email != nil {
		multi = append(multi, NewEmail(*conf.Email))
	}
	return multi
}

// Discord posts events as webhook embeds.
type Discord struct {
	client *webhook.Client
}

// NewDiscord creates a Discord webhook notifier.
func NewDiscord(url string) (*Discord, error) {
	client, err := webhook.NewWithURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook client: %w", err)
	}
	return &Discord{client: client}, nil
}

// Notify posts one embed, colored by level.
func (d *Discord) Notify(event Event) {
	embed := discord.NewEmbedBuilder().
		SetTitle(event.Title).
		SetDescription(event.Message).
		SetColor(colorFor(event.Level)).
		SetTimestamp(time.Now()).
		SetFooter("opsrelay", "").
		Build()

	if _, err := d.client.CreateEmbeds([]discord.Embed{embed}); err != nil {
		log.Warn("Discord notification failed: %v", err)
	}
}

func colorFor(level Level) int {
	switch level {
	case LevelError:
		return 0xff0000
	case LevelWarn:
		return 0xffaa00
	default:
		return 0x00ff00
	}
}

// Email sends events over SMTP.
type Email struct {
	settings config.EmailSettings
}

// NewEmail creates an SMTP notifier.
func NewEmail(settings config.EmailSettings) *Email {
	return &Email{settings: settings}
}

// Notify sends one plain-text mail to the configured recipients.
func (e *Email) Notify(event Event) {
	m := gomail.NewMessage()
	m.SetHeader("From", e.settings.From)
	m.SetHeader("To", e.settings.To...)
	m.SetHeader("Subject", "[opsrelay] "+event.Title)
	m.SetBody("text/plain", event.Message)

	d := gomail.NewDialer(e.settings.Host, e.settings.Port, e.settings.Username, e.settings.Password)
	if err := d.DialAndSend(m); err != nil {
		log.Warn("Email notification failed: %v", err)
	}
}
