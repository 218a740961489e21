package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := GlobalConfigPath(), "/custom/config/labsite/config.yml"; got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got, want := GlobalConfigPath(), filepath.Join(home, ".config", "labsite", "config.yml"); got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}
}

func writeGlobalConfig(t *testing.T, content string) {
	t.Helper()
	ResetGlobalConfigCache()
	t.Cleanup(ResetGlobalConfigCache)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	if content == "" {
		return
	}
	dir := filepath.Join(tmpDir, GlobalConfigDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, GlobalConfigFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadGlobalConfig_NotFound(t *testing.T) {
	writeGlobalConfig(t, "")

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if cfg.SitePath != "" || cfg.Reviewer != "" {
		t.Errorf("LoadGlobalConfig() = %+v, want empty", cfg)
	}
}

func TestLoadGlobalConfig(t *testing.T) {
	writeGlobalConfig(t, "site_path: /srv/site\nreviewer: admin\nlog_level: debug\n")

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if cfg.SitePath != "/srv/site" {
		t.Errorf("SitePath = %q", cfg.SitePath)
	}
	if Reviewer() != "admin" {
		t.Errorf("Reviewer() = %q", Reviewer())
	}
}

func TestLoadGlobalConfig_Invalid(t *testing.T) {
	writeGlobalConfig(t, "site_path: [unterminated\n")

	if _, err := LoadGlobalConfig(); err == nil {
		t.Error("LoadGlobalConfig() expected error for invalid YAML")
	}
}

func TestStartDir(t *testing.T) {
	writeGlobalConfig(t, "site_path: /srv/site\n")

	t.Setenv(EnvRoot, "/from/env")
	if got, _ := StartDir(); got != "/from/env" {
		t.Errorf("StartDir() with %s = %q", EnvRoot, got)
	}

	t.Setenv(EnvRoot, "")
	if got, _ := StartDir(); got != "/srv/site" {
		t.Errorf("StartDir() with site_path = %q", got)
	}
}

func TestLogLevel(t *testing.T) {
	writeGlobalConfig(t, "log_level: warn\n")

	t.Setenv(EnvLogLevel, "")
	if got := LogLevel(); got != "warn" {
		t.Errorf("LogLevel() = %q, want warn", got)
	}

	t.Setenv(EnvLogLevel, "debug")
	if got := LogLevel(); got != "debug" {
		t.Errorf("LogLevel() = %q, want debug", got)
	}
}
