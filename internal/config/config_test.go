package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDuration_UnmarshalJSON_String(t *testing.T) {
	var d Duration
	err := json.Unmarshal([]byte(`"15s"`), &d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Duration != 15*time.Second {
		t.Errorf("expected 15s, got %v", d.Duration)
	}
}

func TestDuration_UnmarshalJSON_Number(t *testing.T) {
	var d Duration
	err := json.Unmarshal([]byte(`120`), &d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Duration != 120*time.Second {
		t.Errorf("expected 120s, got %v", d.Duration)
	}
}

func TestDuration_UnmarshalJSON_Invalid(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"not-a-duration"`), &d); err == nil {
		t.Fatal("expected error for invalid duration string")
	}
	if err := json.Unmarshal([]byte(`true`), &d); err == nil {
		t.Fatal("expected error for boolean duration")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway-config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `{
		"chat": {"bridge_command": "wa-bridge"},
		"webhooks": {"reply_url": "https://backend.example.com/reply"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":3000" {
		t.Errorf("expected default addr :3000, got %s", cfg.Server.Addr)
	}
	if cfg.Session.PairingTimeout.Duration != 120*time.Second {
		t.Errorf("expected default pairing timeout 120s, got %v", cfg.Session.PairingTimeout.Duration)
	}
	if cfg.Session.PairingDebounce.Duration != 15*time.Second {
		t.Errorf("expected default debounce 15s, got %v", cfg.Session.PairingDebounce.Duration)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("expected default driver sqlite, got %s", cfg.Storage.Driver)
	}
	if cfg.Session.PurgeOnDisconnect {
		t.Error("purge_on_disconnect should default to false")
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"addr": ":8080"},
		"session": {"pairing_timeout": "60s", "pairing_debounce": "5s", "purge_on_disconnect": true},
		"chat": {"bridge_command": "wa-bridge"},
		"webhooks": {"reply_url": "https://backend.example.com/reply", "status_url": "https://backend.example.com/status"},
		"storage": {"driver": "postgres", "dsn": "postgres://localhost/zapgate"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Server.Addr)
	}
	if cfg.Session.PairingTimeout.Duration != 60*time.Second {
		t.Errorf("expected 60s, got %v", cfg.Session.PairingTimeout.Duration)
	}
	if !cfg.Session.PurgeOnDisconnect {
		t.Error("expected purge_on_disconnect true")
	}
	if cfg.Storage.Driver != "postgres" {
		t.Errorf("expected postgres, got %s", cfg.Storage.Driver)
	}
}

func TestLoad_MissingReplyURL(t *testing.T) {
	path := writeConfig(t, `{"chat": {"bridge_command": "wa-bridge"}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing webhooks.reply_url")
	}
}

func TestLoad_MissingBridgeCommand(t *testing.T) {
	path := writeConfig(t, `{"webhooks": {"reply_url": "https://backend.example.com/reply"}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing chat.bridge_command")
	}
}

func TestLoad_BadDriver(t *testing.T) {
	path := writeConfig(t, `{
		"chat": {"bridge_command": "wa-bridge"},
		"webhooks": {"reply_url": "https://backend.example.com/reply"},
		"storage": {"driver": "mysql"}
	}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported storage driver")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/config.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
