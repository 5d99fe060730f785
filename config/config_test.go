package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toolgate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
modules:
  root: /opt/tools
  watch: true
logging:
  level: debug
  format: console
metrics:
  enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Modules.Root != "/opt/tools" {
		t.Errorf("Modules.Root = %q, want /opt/tools", cfg.Modules.Root)
	}
	if !cfg.Modules.Watch {
		t.Error("Modules.Watch = false, want true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("default read timeout = %v, want 30s", cfg.Server.ReadTimeout)
	}
	if cfg.Modules.Root != "servers" {
		t.Errorf("default modules root = %q, want servers", cfg.Modules.Root)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default log level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default metrics path = %q, want /metrics", cfg.Metrics.Path)
	}
	if cfg.OpenAPI.Title != "Unified Tools API" {
		t.Errorf("default title = %q", cfg.OpenAPI.Title)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() should fail for missing file")
	}
}

func TestLoadInvalidLevel(t *testing.T) {
	if _, err := Load(writeConfig(t, "logging:\n  level: loud\n")); err == nil {
		t.Error("Load() should reject unknown log level")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TOOLGATE_SERVER_PORT", "7070")
	t.Setenv("TOOLGATE_MODULES_ROOT", "/env/tools")
	t.Setenv("TOOLGATE_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\nmodules:\n  root: /file/tools\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("env override port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Modules.Root != "/env/tools" {
		t.Errorf("env override root = %q, want /env/tools", cfg.Modules.Root)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env override level = %q, want warn", cfg.Logging.Level)
	}
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("TOOLS_DIR", "/expanded/tools")

	cfg, err := Load(writeConfig(t, "modules:\n  root: ${TOOLS_DIR}\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Modules.Root != "/expanded/tools" {
		t.Errorf("expanded root = %q, want /expanded/tools", cfg.Modules.Root)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8080 {
		t.Errorf("Default() port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q, want 0.0.0.0:8080", cfg.Addr())
	}
}
