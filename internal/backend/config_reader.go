package backend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied when the config file or environment leaves a value unset.
const (
	DefaultBaseURL       = "http://127.0.0.1:5000"
	DefaultSubmitTimeout = 600 * time.Second
	DefaultRedirectDelay = 2000 * time.Millisecond
	DefaultChannelKind   = "socketio"
	DefaultJobFilter     = "strict"
	DefaultNATSURL       = "nats://localhost:4222"
	DefaultLogLevel      = "info"
	ChannelKindNATS      = "nats"
	ChannelKindSocketIO  = "socketio"
	JobFilterLoose       = "loose"
	JobFilterStrict      = "strict"
)

// DefaultExtensions lists the résumé formats the backend accepts.
var DefaultExtensions = []string{".pdf", ".doc", ".docx", ".txt"}

// Config is the resolved client configuration.
type Config struct {
	Server struct {
		BaseURL string
	}
	Submit struct {
		Timeout       time.Duration
		RedirectDelay time.Duration
	}
	Channel struct {
		Kind        string
		NATSURL     string
		NATSSubject string
		JobFilter   string
	}
	Files struct {
		DropDir    string
		Extensions []string
	}
	Log struct {
		File  string
		Level string
	}
	Metrics struct {
		Addr string
	}
}

// tomlConfig mirrors the TOML config structure.
type tomlConfig struct {
	Server struct {
		BaseURL string `toml:"base_url"`
	} `toml:"server"`
	Submit struct {
		Timeout       string `toml:"timeout"`
		RedirectDelay string `toml:"redirect_delay"`
	} `toml:"submit"`
	Channel struct {
		Kind        string `toml:"kind"`
		NATSURL     string `toml:"nats_url"`
		NATSSubject string `toml:"nats_subject"`
		JobFilter   string `toml:"job_filter"`
	} `toml:"channel"`
	Files struct {
		DropDir    string   `toml:"drop_dir"`
		Extensions []string `toml:"extensions"`
	} `toml:"files"`
	Log struct {
		File  string `toml:"file"`
		Level string `toml:"level"`
	} `toml:"log"`
	Metrics struct {
		Addr string `toml:"addr"`
	} `toml:"metrics"`
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath(appName string) string {
	if p := os.Getenv("TALENTVIBE_CONFIG"); p != "" {
		return p
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, appName, "config.toml")
}

// ReadConfigFile reads and parses the TOML config directly.
func ReadConfigFile(path string) (Config, error) {
	var tc tomlConfig
	if _, err := toml.DecodeFile(path, &tc); err != nil {
		return Config{}, err
	}

	cfg := Config{}
	cfg.Server.BaseURL = tc.Server.BaseURL
	cfg.Channel.Kind = tc.Channel.Kind
	cfg.Channel.NATSURL = tc.Channel.NATSURL
	cfg.Channel.NATSSubject = tc.Channel.NATSSubject
	cfg.Channel.JobFilter = tc.Channel.JobFilter
	cfg.Files.DropDir = tc.Files.DropDir
	cfg.Files.Extensions = tc.Files.Extensions
	cfg.Log.File = tc.Log.File
	cfg.Log.Level = tc.Log.Level
	cfg.Metrics.Addr = tc.Metrics.Addr

	var err error
	if cfg.Submit.Timeout, err = parseDuration("submit.timeout", tc.Submit.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.Submit.RedirectDelay, err = parseDuration("submit.redirect_delay", tc.Submit.RedirectDelay); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads the config file at path (a missing file is not an error),
// applies environment overrides and fills defaults.
func LoadConfig(path, appName string) (Config, error) {
	cfg, err := ReadConfigFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.Server.BaseURL = getEnv("TALENTVIBE_SERVER", cfg.Server.BaseURL)
	cfg.Files.DropDir = getEnv("TALENTVIBE_DROP_DIR", cfg.Files.DropDir)
	cfg.Channel.NATSURL = getEnv("NATS_URL", cfg.Channel.NATSURL)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	cfg.applyDefaults(appName)
	return cfg, cfg.Validate()
}

func (c *Config) applyDefaults(appName string) {
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = DefaultBaseURL
	}
	if c.Submit.Timeout <= 0 {
		c.Submit.Timeout = DefaultSubmitTimeout
	}
	if c.Submit.RedirectDelay <= 0 {
		c.Submit.RedirectDelay = DefaultRedirectDelay
	}
	if c.Channel.Kind == "" {
		c.Channel.Kind = DefaultChannelKind
	}
	if c.Channel.NATSURL == "" {
		c.Channel.NATSURL = DefaultNATSURL
	}
	if c.Channel.NATSSubject == "" {
		c.Channel.NATSSubject = DefaultNATSSubject
	}
	if c.Channel.JobFilter == "" {
		c.Channel.JobFilter = DefaultJobFilter
	}
	if len(c.Files.Extensions) == 0 {
		c.Files.Extensions = DefaultExtensions
	}
	c.Files.DropDir = expandHome(c.Files.DropDir)
	if c.Log.File == "" {
		c.Log.File = defaultLogPath(appName)
	}
	c.Log.File = expandHome(c.Log.File)
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate rejects values the client cannot run with.
func (c *Config) Validate() error {
	switch c.Channel.Kind {
	case ChannelKindSocketIO, ChannelKindNATS:
	default:
		return fmt.Errorf("channel.kind: unknown transport %q", c.Channel.Kind)
	}
	switch c.Channel.JobFilter {
	case JobFilterStrict, JobFilterLoose:
	default:
		return fmt.Errorf("channel.job_filter: unknown mode %q", c.Channel.JobFilter)
	}
	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		return fmt.Errorf("server.base_url: must be an http(s) URL, got %q", c.Server.BaseURL)
	}
	return nil
}

func defaultLogPath(appName string) string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, _ := os.UserHomeDir()
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, appName, "tui.log")
}

func parseDuration(key, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
