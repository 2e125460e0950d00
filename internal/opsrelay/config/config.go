// Package config loads and validates the relay configuration file
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/dimasma0305/opsrelay/internal/opsrelay/errors"
)

// Script describes an executable registered with the relay
type Script struct {
	Name      string   `yaml:"name"`
	Path      string   `yaml:"path"`
	Args      []string `yaml:"args"`
	AdminOnly bool     `yaml:"admin_only"`
}

// UnmarshalYAML accepts either a plain path string or a full script object.
// The shorthand form derives the script name from the file's base name.
func (s *Script) UnmarshalYAML(unmarshal func(interface{}) error) error {
	// First try to unmarshal as a plain path string
	var path string
	if err := unmarshal(&path); err == nil {
		s.Name = nameFromPath(path)
		s.Path = path
		s.Args = nil
		s.AdminOnly = false
		return nil
	}

	// If that fails, try to unmarshal as a full object
	type scriptObject Script
	var obj scriptObject
	if err := unmarshal(&obj); err != nil {
		return fmt.Errorf("script entry must be either a string path or an object")
	}
	*s = Script(obj)
	if s.Name == "" {
		s.Name = nameFromPath(s.Path)
	}
	return nil
}

func nameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PeriodicScript is a script with a recurring trigger. Exactly one of
// Interval (seconds) or TimeOfDay ("HH:MM") is expected to be set; jobs with
// neither are skipped at arm time with a warning.
type PeriodicScript struct {
	Name      string   `yaml:"name"`
	Path      string   `yaml:"path"`
	Args      []string `yaml:"args"`
	Interval  int      `yaml:"interval"`
	TimeOfDay string   `yaml:"time_of_day"`
}

// Script returns the runnable portion of the periodic entry
func (p *PeriodicScript) Script() Script {
	return Script{Name: p.Name, Path: p.Path, Args: p.Args}
}

// DeviceMonitor names a filesystem path whose usage is reported by status
type DeviceMonitor struct {
	Name           string  `yaml:"name"`
	Path           string  `yaml:"path"`
	AlertThreshold float64 `yaml:"alert_threshold"`
}

// DefaultAlertThreshold is applied to monitors that do not set their own
const DefaultAlertThreshold = 80

// EmailSettings configures the optional SMTP notifier
type EmailSettings struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// Notifications holds optional operator notification targets
type Notifications struct {
	DiscordWebhook string         `yaml:"discord_webhook"`
	Email          *EmailSettings `yaml:"email"`
}

// BotConfig is the aggregate configuration loaded from the config file.
// It is immutable once loaded; hot-reload replaces the whole value.
type BotConfig struct {
	Token         string           `yaml:"token"`
	OneTime       []Script         `yaml:"one_time_scripts"`
	LongRunning   []Script         `yaml:"long_running_scripts"`
	Monitors      []DeviceMonitor  `yaml:"device_monitors"`
	Periodic      []PeriodicScript `yaml:"periodic_scripts"`
	Notifications Notifications    `yaml:"notifications"`
}

// Load reads and validates the configuration at path
func Load(path string) (*BotConfig, error) {
	//nolint:gosec // G304: Config path comes from the operator environment
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrConfigNotFound, "%s", path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var conf BotConfig
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, errors.Wrapf(errors.ErrReloadFailed, "parsing %s (%v)", path, err)
	}

	if err := conf.validate(); err != nil {
		return nil, errors.Wrapf(errors.ErrReloadFailed, "%v", err)
	}
	conf.applyDefaults()

	return &conf, nil
}

func (c *BotConfig) validate() error {
	for _, s := range c.OneTime {
		if s.Path == "" {
			return fmt.Errorf("one-time script %q has no path", s.Name)
		}
	}
	for _, s := range c.LongRunning {
		if s.Path == "" {
			return fmt.Errorf("long-running script %q has no path", s.Name)
		}
	}
	for _, p := range c.Periodic {
		if p.Name == "" || p.Path == "" {
			return fmt.Errorf("periodic script entries need both name and path (got name=%q path=%q)", p.Name, p.Path)
		}
	}
	for _, m := range c.Monitors {
		if m.Path == "" {
			return fmt.Errorf("device monitor %q has no path", m.Name)
		}
	}
	return nil
}

func (c *BotConfig) applyDefaults() {
	for i := range c.Monitors {
		if c.Monitors[i].AlertThreshold <= 0 {
			c.Monitors[i].AlertThreshold = DefaultAlertThreshold
		}
		if c.Monitors[i].Name == "" {
			c.Monitors[i].Name = c.Monitors[i].Path
		}
	}
}

// OneTimeScript resolves a name against the one-time list, first match wins
func (c *BotConfig) OneTimeScript(name string) *Script {
	return findScript(c.OneTime, name)
}

// LongRunningScript resolves a name against the long-running list
func (c *BotConfig) LongRunningScript(name string) *Script {
	return findScript(c.LongRunning, name)
}

// PeriodicByName resolves a name against the periodic list
func (c *BotConfig) PeriodicByName(name string) *PeriodicScript {
	for i := range c.Periodic {
		if c.Periodic[i].Name == name {
			return &c.Periodic[i]
		}
	}
	return nil
}

func findScript(list []Script, name string) *Script {
	for i := range list {
		if list[i].Name == name {
			return &list[i]
		}
	}
	return nil
}

// OneTimeNames lists the names of all one-time scripts in config order
func (c *BotConfig) OneTimeNames() []string {
	return scriptNames(c.OneTime)
}

// LongRunningNames lists the names of all long-running scripts in config order
func (c *BotConfig) LongRunningNames() []string {
	return scriptNames(c.LongRunning)
}

func scriptNames(list []Script) []string {
	names := make([]string, 0, len(list))
	for _, s := range list {
		names = append(names, s.Name)
	}
	return names
}

// ChangeMarker returns a comparable fingerprint of the config file, derived
// from its modification time and size. Two equal markers mean no reload is
// needed; any difference triggers one.
func ChangeMarker(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d:%d", info.ModTime().UnixNano(), info.Size()), nil
}
