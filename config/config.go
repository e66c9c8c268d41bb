// Package config loads the daemon configuration from a YAML file with
// environment overrides for deployment-sensitive values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sprucehealth/callflow/flow"
)

// Duration decodes YAML strings like "30s" or "1h" into a duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Server     Server     `yaml:"server"`
	Provider   Provider   `yaml:"provider"`
	Store      StoreCfg   `yaml:"store"`
	Call       Call       `yaml:"call"`
	Recordings Recordings `yaml:"recordings"`
	Log        Log        `yaml:"log"`
}

type Server struct {
	Addr            string   `yaml:"addr"`
	CallbackBaseURL string   `yaml:"callback_base_url"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

type Provider struct {
	BaseURL   string   `yaml:"base_url"`
	AccountID string   `yaml:"account_id"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Timeout   Duration `yaml:"timeout"`
}

type StoreCfg struct {
	Backend       string   `yaml:"backend"` // memory or redis
	TerminalGrace Duration `yaml:"terminal_grace"`
	SweepInterval Duration `yaml:"sweep_interval"`
	Redis         Redis    `yaml:"redis"`
}

type Redis struct {
	Addr        string   `yaml:"addr"`
	Password    string   `yaml:"password"`
	DB          int      `yaml:"db"`
	TerminalTTL Duration `yaml:"terminal_ttl"`
}

type Call struct {
	ForwardTo         string   `yaml:"forward_to"`
	ApplicationID     string   `yaml:"application_id"`
	AcceptDigit       string   `yaml:"accept_digit"`
	RingDuration      Duration `yaml:"ring_duration"`
	OutboundTimeout   Duration `yaml:"outbound_timeout"`
	GatherTimeout     Duration `yaml:"gather_timeout"`
	PlaybackTimeout   Duration `yaml:"playback_timeout"`
	RecordMaxDuration Duration `yaml:"record_max_duration"`
	BeepURL           string   `yaml:"beep_url"`
}

type Recordings struct {
	Dir string `yaml:"dir"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load reads path, applies env overrides, validates, and returns an
// immutable snapshot. Pass an empty path for defaults plus env only.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	fc := flow.DefaultConfig()
	return &Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Provider: Provider{
			Timeout: Duration(10 * time.Second),
		},
		Store: StoreCfg{
			Backend:       "memory",
			TerminalGrace: Duration(time.Hour),
			SweepInterval: Duration(time.Minute),
			Redis: Redis{
				Addr:        "localhost:6379",
				TerminalTTL: Duration(time.Hour),
			},
		},
		Call: Call{
			AcceptDigit:       fc.AcceptDigit,
			RingDuration:      Duration(fc.RingDuration),
			OutboundTimeout:   Duration(fc.OutboundTimeout),
			GatherTimeout:     Duration(fc.GatherTimeout),
			PlaybackTimeout:   Duration(fc.PlaybackTimeout),
			RecordMaxDuration: Duration(fc.RecordMaxDuration),
		},
		Recordings: Recordings{Dir: "recordings"},
		Log:        Log{Level: "info"},
	}
}

// applyEnv overrides the values that differ per deployment or must not
// live in a config file.
func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Server.Addr, "CALLFLOW_ADDR")
	set(&c.Server.CallbackBaseURL, "CALLFLOW_CALLBACK_BASE_URL")
	set(&c.Provider.BaseURL, "CALLFLOW_PROVIDER_BASE_URL")
	set(&c.Provider.AccountID, "CALLFLOW_PROVIDER_ACCOUNT_ID")
	set(&c.Provider.Username, "CALLFLOW_PROVIDER_USERNAME")
	set(&c.Provider.Password, "CALLFLOW_PROVIDER_PASSWORD")
	set(&c.Store.Backend, "CALLFLOW_STORE_BACKEND")
	set(&c.Store.Redis.Addr, "CALLFLOW_REDIS_ADDR")
	set(&c.Store.Redis.Password, "CALLFLOW_REDIS_PASSWORD")
	set(&c.Call.ForwardTo, "CALLFLOW_FORWARD_TO")
	set(&c.Call.ApplicationID, "CALLFLOW_APPLICATION_ID")
	set(&c.Log.Level, "CALLFLOW_LOG_LEVEL")
}

func (c *Config) validate() error {
	if c.Server.CallbackBaseURL == "" {
		return fmt.Errorf("config: server.callback_base_url is required")
	}
	if c.Call.ForwardTo == "" {
		return fmt.Errorf("config: call.forward_to is required")
	}
	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Call.AcceptDigit == "" {
		return fmt.Errorf("config: call.accept_digit is required")
	}
	return nil
}

// FlowConfig derives the state machine configuration, resolving the
// callback URLs against the public base URL.
func (c *Config) FlowConfig() flow.Config {
	base := strings.TrimRight(c.Server.CallbackBaseURL, "/")
	fc := flow.DefaultConfig()
	fc.ForwardTo = c.Call.ForwardTo
	fc.ApplicationID = c.Call.ApplicationID
	fc.AcceptDigit = c.Call.AcceptDigit
	fc.RingDuration = c.Call.RingDuration.Std()
	fc.OutboundTimeout = c.Call.OutboundTimeout.Std()
	fc.GatherTimeout = c.Call.GatherTimeout.Std()
	fc.PlaybackTimeout = c.Call.PlaybackTimeout.Std()
	fc.RecordMaxDuration = c.Call.RecordMaxDuration.Std()
	fc.AnswerURL = base + "/callbacks/outbound/answer"
	fc.DisconnectURL = base + "/callbacks/disconnect"
	fc.GatherURL = base + "/callbacks/outbound/gather"
	fc.VoicemailURL = base + "/callbacks/voicemail"
	fc.RecordingAvailableURL = base + "/callbacks/recording"
	fc.PlaybackMenuURL = base + "/callbacks/voicemail"
	fc.RecordingMediaBase = strings.TrimRight(c.Provider.BaseURL, "/")
	if c.Call.BeepURL != "" {
		fc.BeepURL = c.Call.BeepURL
	}
	return fc
}
