package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSettingsFromEnv_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SUBSCRIBERS_FILE", "")
	t.Setenv("TELEGRAM_API_URL", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("ADMIN_USERS", "")

	s := SettingsFromEnv()

	if s.ConfigPath != "relay.yaml" {
		t.Errorf("Expected default config path, got %q", s.ConfigPath)
	}
	if s.SubscribersPath != "subscribers.json" {
		t.Errorf("Expected default subscribers path, got %q", s.SubscribersPath)
	}
	if s.ChunkSize != DefaultChunkSize {
		t.Errorf("Expected default chunk size %d, got %d", DefaultChunkSize, s.ChunkSize)
	}
	if len(s.AdminIDs) != 0 {
		t.Errorf("Expected empty allowlist, got %v", s.AdminIDs)
	}
}

func TestSettingsFromEnv_Overrides(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "999:zzz")
	t.Setenv("CONFIG_FILE", "/etc/opsrelay/relay.yaml")
	t.Setenv("SUBSCRIBERS_FILE", "/var/lib/opsrelay/subs.json")
	t.Setenv("TELEGRAM_API_URL", "http://127.0.0.1:8081")
	t.Setenv("CHUNK_SIZE", "512")
	t.Setenv("ADMIN_USERS", "100, 200,abc, ,300")

	s := SettingsFromEnv()

	if s.Token != "999:zzz" {
		t.Errorf("Expected token override, got %q", s.Token)
	}
	if s.ConfigPath != "/etc/opsrelay/relay.yaml" {
		t.Errorf("Expected config path override, got %q", s.ConfigPath)
	}
	if s.APIBaseURL != "http://127.0.0.1:8081" {
		t.Errorf("Expected API base URL override, got %q", s.APIBaseURL)
	}
	if s.ChunkSize != 512 {
		t.Errorf("Expected chunk size 512, got %d", s.ChunkSize)
	}

	// Invalid and empty entries are skipped
	want := []int64{100, 200, 300}
	if diff := cmp.Diff(want, s.AdminIDs); diff != "" {
		t.Errorf("AdminIDs mismatch (-want +got):\n%s", diff)
	}
}

func TestSettingsFromEnv_BadChunkSize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"non-numeric", "wide"},
		{"zero", "0"},
		{"negative", "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CHUNK_SIZE", tt.raw)
			s := SettingsFromEnv()
			if s.ChunkSize != DefaultChunkSize {
				t.Errorf("Expected fallback to default, got %d", s.ChunkSize)
			}
		})
	}
}

func TestResolveToken(t *testing.T) {
	conf := &BotConfig{Token: "file-token"}

	if got := (Settings{Token: "env-token"}).ResolveToken(conf); got != "env-token" {
		t.Errorf("Expected env token to win, got %q", got)
	}
	if got := (Settings{}).ResolveToken(conf); got != "file-token" {
		t.Errorf("Expected file token fallback, got %q", got)
	}
}
