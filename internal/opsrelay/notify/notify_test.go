package notify

import (
	"testing"

	"github.com/dimasma0305/opsrelay/internal/opsrelay/config"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/testutil"
)

type recordingNotifier struct {
	events []Event
}

func (r *recordingNotifier) Notify(event Event) {
	r.events = append(r.events, event)
}

func TestMulti_FansOut(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	multi := Multi{first, second}

	event := Event{Level: LevelError, Title: "scheduled run failed", Message: "report: exit status 1"}
	multi.Notify(event)

	for i, n := range []*recordingNotifier{first, second} {
		if len(n.events) != 1 {
			t.Fatalf("notifier %d received %d events, want 1", i, len(n.events))
		}
		if n.events[0] != event {
			t.Errorf("notifier %d received %+v, want %+v", i, n.events[0], event)
		}
	}
}

func TestMulti_NilIsNoOp(t *testing.T) {
	var multi Multi
	multi.Notify(Event{Level: LevelInfo, Title: "started", Message: "should not panic"})
}

func TestFromConfig_NilConfig(t *testing.T) {
	if multi := FromConfig(nil); multi != nil {
		t.Errorf("FromConfig(nil) = %v, want nil", multi)
	}
}

func TestFromConfig_Discord(t *testing.T) {
	conf := &config.Notifications{
		DiscordWebhook: "https://discord.com/api/webhooks/123456789012345678/test-webhook-token",
	}

	multi := FromConfig(conf)

	if len(multi) != 1 {
		t.Fatalf("got %d notifiers, want 1", len(multi))
	}
	if _, ok := multi[0].(*Discord); !ok {
		t.Errorf("notifier is %T, want *Discord", multi[0])
	}
}

func TestFromConfig_BadDiscordURLSkipped(t *testing.T) {
	conf := &config.Notifications{DiscordWebhook: "not-a-webhook-url"}

	var multi Multi
	stderr := testutil.CaptureStderr(t, func() {
		multi = FromConfig(conf)
	})

	if len(multi) != 0 {
		t.Errorf("got %d notifiers, want 0", len(multi))
	}
	testutil.AssertContains(t, stderr, "Discord notifications disabled")
}

func TestFromConfig_Email(t *testing.T) {
	conf := &config.Notifications{
		Email: &config.EmailSettings{
			Host: "smtp.example.com",
			Port: 587,
			From: "relay@example.com",
			To:   []string{"ops@example.com"},
		},
	}

	multi := FromConfig(conf)

	if len(multi) != 1 {
		t.Fatalf("got %d notifiers, want 1", len(multi))
	}
	if _, ok := multi[0].(*Email); !ok {
		t.Errorf("notifier is %T, want *Email", multi[0])
	}
}

func TestFromConfig_BothChannels(t *testing.T) {
	conf := &config.Notifications{
		DiscordWebhook: "https://discord.com/api/webhooks/123456789012345678/test-webhook-token",
		Email: &config.EmailSettings{
			Host: "smtp.example.com",
			Port: 587,
			From: "relay@example.com",
			To:   []string{"ops@example.com"},
		},
	}

	if multi := FromConfig(conf); len(multi) != 2 {
		t.Errorf("got %d notifiers, want 2", len(multi))
	}
}
