package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/dimasma0305/opsrelay/internal/log"
)

// DefaultChunkSize is the broadcast chunk size when CHUNK_SIZE is unset.
// Sized to stay under the transport's per-message limit.
const DefaultChunkSize = 4000

// Settings holds the environment-provided runtime configuration
type Settings struct {
	// Token is the messenger token from TELEGRAM_TOKEN. When set it
	// overrides the token field of the config file.
	Token string

	// ConfigPath is the config file location from CONFIG_FILE
	ConfigPath string

	// SubscribersPath is the subscriber store location from SUBSCRIBERS_FILE
	SubscribersPath string

	// APIBaseURL is an alternate Bot API server from TELEGRAM_API_URL,
	// for self-hosted telegram-bot-api instances. Empty selects the
	// public endpoint.
	APIBaseURL string

	// ChunkSize is the broadcast chunk size from CHUNK_SIZE
	ChunkSize int

	// AdminIDs is the explicit admin allowlist from ADMIN_USERS. When
	// non-empty it is authoritative for authorization checks.
	AdminIDs []int64
}

// SettingsFromEnv reads the process environment once at startup
func SettingsFromEnv() Settings {
	s := Settings{
		Token:           os.Getenv("TELEGRAM_TOKEN"),
		ConfigPath:      os.Getenv("CONFIG_FILE"),
		SubscribersPath: os.Getenv("SUBSCRIBERS_FILE"),
		APIBaseURL:      os.Getenv("TELEGRAM_API_URL"),
		ChunkSize:       DefaultChunkSize,
		AdminIDs:        parseAdminIDs(os.Getenv("ADMIN_USERS")),
	}

	if s.ConfigPath == "" {
		s.ConfigPath = "relay.yaml"
	}
	if s.SubscribersPath == "" {
		s.SubscribersPath = "subscribers.json"
	}

	if raw := os.Getenv("CHUNK_SIZE"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			log.Warn("Ignoring invalid CHUNK_SIZE %q, using %d", raw, DefaultChunkSize)
		} else {
			s.ChunkSize = size
		}
	}

	return s
}

// ResolveToken applies the env override on top of the config file token
func (s Settings) ResolveToken(conf *BotConfig) string {
	if s.Token != "" {
		return s.Token
	}
	return conf.Token
}

func parseAdminIDs(raw string) []int64 {
	if raw == "" {
		return nil
	}

	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Warn("Ignoring invalid ADMIN_USERS entry %q", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
