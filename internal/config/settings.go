package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AppName is used for the settings search path and the environment prefix.
const AppName = "alisbot"

// Settings holds process-wide options shared by every instance.
type Settings struct {
	Log     LogSettings     `mapstructure:"log"`
	Metrics MetricsSettings `mapstructure:"metrics"`
	Reply   ReplySettings   `mapstructure:"reply"`
	Queries QuerySettings   `mapstructure:"queries"`
	Session SessionSettings `mapstructure:"session"`
	UI      UISettings      `mapstructure:"ui"`
}

type LogSettings struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	NoColor    bool   `mapstructure:"no_color"`
}

// MetricsSettings configures the Prometheus endpoint. An empty Addr
// disables it.
type MetricsSettings struct {
	Addr string `mapstructure:"addr"`
}

// ReplySettings paces outgoing private messages per instance.
type ReplySettings struct {
	Interval time.Duration `mapstructure:"interval"`
	Burst    int           `mapstructure:"burst"`
}

type QuerySettings struct {
	MaxConcurrent int64 `mapstructure:"max_concurrent"`
}

type SessionSettings struct {
	ReconnectBase time.Duration `mapstructure:"reconnect_base"`
	PingFrequency time.Duration `mapstructure:"ping_frequency"`
	PingTimeout   time.Duration `mapstructure:"ping_timeout"`
}

type UISettings struct {
	Enabled   bool   `mapstructure:"enabled"`
	PrefsPath string `mapstructure:"prefs_path"`
}

// DefaultSettings returns the settings used when nothing overrides them.
func DefaultSettings() Settings {
	return Settings{
		Log: LogSettings{
			Level:      "info",
			Format:     "pretty",
			Output:     "stderr",
			MaxSizeMB:  20,
			MaxBackups: 3,
		},
		Reply: ReplySettings{
			Interval: time.Second,
			Burst:    1,
		},
		Queries: QuerySettings{MaxConcurrent: 16},
		Session: SessionSettings{
			ReconnectBase: 2 * time.Second,
			PingFrequency: time.Minute,
			PingTimeout:   2 * time.Minute,
		},
		UI: UISettings{
			PrefsPath: defaultPrefsPath(),
		},
	}
}

// flagKeys maps CLI flag names to settings keys.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"log-file":     "log.file",
	"metrics-addr": "metrics.addr",
	"tui":          "ui.enabled",
}

// LoadSettings merges defaults, the optional settings file, ALISBOT_*
// environment variables and any changed flags, in increasing priority.
// An explicit path that cannot be read is an error; a missing default
// settings file is not.
func LoadSettings(path string, flags *pflag.FlagSet) (Settings, error) {
	v := newViper()
	setDefaults(v, DefaultSettings())

	if path != "" {
		resolved, err := expandPath(path)
		if err != nil {
			return Settings{}, err
		}
		v.SetConfigFile(resolved)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read settings: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Settings{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	if s.UI.PrefsPath != "" {
		if p, err := expandPath(s.UI.PrefsPath); err == nil {
			s.UI.PrefsPath = p
		}
	}
	return s, nil
}

// Validate rejects settings the bot cannot run with.
func (s Settings) Validate() error {
	if s.Reply.Interval <= 0 {
		return fmt.Errorf("reply.interval must be positive, got %s", s.Reply.Interval)
	}
	if s.Reply.Burst < 1 {
		return fmt.Errorf("reply.burst must be at least 1, got %d", s.Reply.Burst)
	}
	if s.Queries.MaxConcurrent < 1 {
		return fmt.Errorf("queries.max_concurrent must be at least 1, got %d", s.Queries.MaxConcurrent)
	}
	if s.Session.ReconnectBase <= 0 {
		return fmt.Errorf("session.reconnect_base must be positive, got %s", s.Session.ReconnectBase)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("settings")
	v.SetConfigType("toml")
	for _, dir := range settingsSearchPaths() {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// settingsSearchPaths lists directories in increasing precedence.
func settingsSearchPaths() []string {
	paths := []string{filepath.Join("/etc", AppName)}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", AppName))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, cwd)
	}
	return paths
}

func setDefaults(v *viper.Viper, s Settings) {
	v.SetDefault("log.level", s.Log.Level)
	v.SetDefault("log.format", s.Log.Format)
	v.SetDefault("log.output", s.Log.Output)
	v.SetDefault("log.file", s.Log.File)
	v.SetDefault("log.max_size_mb", s.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", s.Log.MaxBackups)
	v.SetDefault("log.no_color", s.Log.NoColor)
	v.SetDefault("metrics.addr", s.Metrics.Addr)
	v.SetDefault("reply.interval", s.Reply.Interval)
	v.SetDefault("reply.burst", s.Reply.Burst)
	v.SetDefault("queries.max_concurrent", s.Queries.MaxConcurrent)
	v.SetDefault("session.reconnect_base", s.Session.ReconnectBase)
	v.SetDefault("session.ping_frequency", s.Session.PingFrequency)
	v.SetDefault("session.ping_timeout", s.Session.PingTimeout)
	v.SetDefault("ui.enabled", s.UI.Enabled)
	v.SetDefault("ui.prefs_path", s.UI.PrefsPath)
}

func defaultPrefsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", AppName, "prefs.toml")
}
