package core

import (
	"os"
	"path/filepath"
	"testing"

	logx "wabbabot/pkg/logx"
)

const validYAML = `
logging:
  level: debug
  console: true
telegram:
  token: "123:abc"
  poll_timeout: 10s
storage:
  modlists_path: ./db/modlists.json
  servers_path: ./db/servers.json
catalog:
  url: https://example.com/modlists.json
  refresh_interval: 15m
dispatch:
  workers: 4
  rate_per_sec: 10
audit:
  driver: ""
admins: ["100"]
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestConfigLoadYAML(t *testing.T) {
	m := NewConfigManager(writeConfig(t, "config.yaml", validYAML), logx.Nop())
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging config wrong: %+v", cfg.Logging)
	}
	if cfg.Catalog.URL != "https://example.com/modlists.json" {
		t.Fatalf("catalog config wrong: %+v", cfg.Catalog)
	}
	if cfg.Dispatch.Workers != 4 {
		t.Fatalf("dispatch config wrong: %+v", cfg.Dispatch)
	}
	if got := m.Get(); got == nil || got.Storage.ModlistsPath != "./db/modlists.json" {
		t.Fatalf("Get after Load wrong: %+v", got)
	}
}

func TestConfigRejectsUnknownFields(t *testing.T) {
	m := NewConfigManager(writeConfig(t, "config.yaml", validYAML+"\nmystery: true\n"), logx.Nop())
	if _, err := m.Load(); err == nil {
		t.Fatalf("expected unknown-field error")
	}
}

func TestConfigRequiresPaths(t *testing.T) {
	bad := `
storage:
  modlists_path: ./db/modlists.json
catalog:
  url: https://example.com/modlists.json
`
	m := NewConfigManager(writeConfig(t, "config.yaml", bad), logx.Nop())
	if _, err := m.Load(); err == nil {
		t.Fatalf("expected validation error for missing servers_path")
	}
}

func TestConfigRejectsBadDuration(t *testing.T) {
	bad := `
storage:
  modlists_path: ./db/modlists.json
  servers_path: ./db/servers.json
catalog:
  url: https://example.com/modlists.json
  refresh_interval: fortnightly
`
	m := NewConfigManager(writeConfig(t, "config.yaml", bad), logx.Nop())
	if _, err := m.Load(); err == nil {
		t.Fatalf("expected duration validation error")
	}
}

func TestConfigLoadJSON(t *testing.T) {
	j := `{
  "storage": {"modlists_path": "./db/modlists.json", "servers_path": "./db/servers.json"},
  "catalog": {"url": "https://example.com/modlists.json"}
}`
	m := NewConfigManager(writeConfig(t, "config.json", j), logx.Nop())
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.ServersPath != "./db/servers.json" {
		t.Fatalf("json config wrong: %+v", cfg.Storage)
	}
}
