// Package config handles gateway configuration loading and validation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Session  SessionConfig  `json:"session"`
	Chat     ChatConfig     `json:"chat"`
	Webhooks WebhookConfig  `json:"webhooks"`
	Media    MediaConfig    `json:"media"`
	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig defines the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Addr           string   `json:"addr"`                      // e.g. ":3000"
	AllowedOrigins []string `json:"allowed_origins,omitempty"` // WebSocket origin check; default allow all
	MaxBodyBytes   int64    `json:"max_body_bytes,omitempty"`  // max request body size; default 1MB
}

// SessionConfig defines session lifecycle behavior.
type SessionConfig struct {
	AuthRootDir       string   `json:"auth_root_dir"`                 // per-tenant credential directories live here
	PairingTimeout    Duration `json:"pairing_timeout,omitempty"`     // ceiling from start to READY; default 120s
	PairingDebounce   Duration `json:"pairing_debounce,omitempty"`    // identical pairing-code suppression window; default 15s
	PurgeOnDisconnect bool     `json:"purge_on_disconnect,omitempty"` // also wipe credentials on plain disconnect
	RestoreOnBoot     bool     `json:"restore_on_boot"`               // restart sessions for persisted credential dirs
}

// ChatConfig defines how the protocol bridge process is spawned.
// The gateway does not implement the chat protocol itself; it talks
// JSON-Lines over stdio to one bridge process per tenant.
type ChatConfig struct {
	BridgeCommand string            `json:"bridge_command"`
	BridgeArgs    []string          `json:"bridge_args,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
}

// WebhookConfig defines the external backend endpoints.
type WebhookConfig struct {
	ReplyURL  string   `json:"reply_url"`            // inbound messages are POSTed here
	StatusURL string   `json:"status_url,omitempty"` // lifecycle status reports; optional
	Timeout   Duration `json:"timeout,omitempty"`    // per-request timeout; default 15s
}

// MediaConfig defines where inbound media attachments are persisted.
type MediaConfig struct {
	Dir           string `json:"dir"`                 // local directory for persisted media
	PublicBaseURL string `json:"public_base_url"`     // prefix for publicly fetchable media URLs
	MaxBytes      int64  `json:"max_bytes,omitempty"` // max attachment size; default 16MB
}

// StorageConfig defines the session-event and message log store.
type StorageConfig struct {
	Driver    string   `json:"driver,omitempty"` // "sqlite" (default) or "postgres"
	DSN       string   `json:"dsn,omitempty"`
	Retention Duration `json:"retention,omitempty"` // drop session events older than this; 0 keeps forever
}

// LoggingConfig defines structured logging output.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // "json" (default) or "text"
}

// Duration is a JSON-friendly time.Duration (accepts strings like "30s", "5m").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		dur, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		d.Duration = dur
	case float64:
		d.Duration = time.Duration(val) * time.Second
	default:
		return fmt.Errorf("invalid duration: %v", v)
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Webhooks.ReplyURL == "" {
		return fmt.Errorf("webhooks.reply_url is required")
	}
	if c.Chat.BridgeCommand == "" {
		return fmt.Errorf("chat.bridge_command is required")
	}
	if c.Storage.Driver != "" && c.Storage.Driver != "sqlite" && c.Storage.Driver != "postgres" {
		return fmt.Errorf("storage.driver must be sqlite or postgres")
	}
	if c.Logging.Level != "" {
		switch c.Logging.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.level must be debug, info, warn, or error")
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1024 * 1024 // 1MB
	}
	if c.Session.AuthRootDir == "" {
		c.Session.AuthRootDir = "./zapgate-auth"
	}
	if c.Session.PairingTimeout.Duration == 0 {
		c.Session.PairingTimeout.Duration = 120 * time.Second
	}
	if c.Session.PairingDebounce.Duration == 0 {
		c.Session.PairingDebounce.Duration = 15 * time.Second
	}
	if c.Webhooks.Timeout.Duration == 0 {
		c.Webhooks.Timeout.Duration = 15 * time.Second
	}
	if c.Media.Dir == "" {
		c.Media.Dir = "./zapgate-media"
	}
	if c.Media.PublicBaseURL == "" {
		c.Media.PublicBaseURL = "http://localhost:3000"
	}
	if c.Media.MaxBytes == 0 {
		c.Media.MaxBytes = 16 * 1024 * 1024 // 16MB
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.DSN == "" && c.Storage.Driver == "sqlite" {
		c.Storage.DSN = "./zapgate.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}
