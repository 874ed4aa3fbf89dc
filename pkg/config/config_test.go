package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultClientConfigIsValid(t *testing.T) {
	cfg := DefaultClientConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if cfg.URI != DefaultURI || cfg.MinSize != DefaultMinSize || cfg.MaxSize != DefaultMaxSize {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
}

func TestLoadClientConfigFromEnv(t *testing.T) {
	t.Setenv("MCPOOL_URI", "memcached://cache1:11311")
	t.Setenv("MCPOOL_NODES", "a:1, b:2 ,c:3")
	t.Setenv("MCPOOL_MIN_SIZE", "2")
	t.Setenv("MCPOOL_MAX_SIZE", "8")
	t.Setenv("MCPOOL_ACQUIRE_TIMEOUT", "3")
	t.Setenv("MCPOOL_STRICT_RELEASE", "true")
	t.Setenv("MCPOOL_LOG_LEVEL", "debug")
	t.Setenv("MCPOOL_READ_TIMEOUT", "not-a-number")

	cfg, err := LoadClientConfig()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.URI != "memcached://cache1:11311" {
		t.Errorf("Expected URI from env, got %s", cfg.URI)
	}
	if len(cfg.Nodes) != 3 || cfg.Nodes[1] != "b:2" {
		t.Errorf("Expected trimmed nodes, got %v", cfg.Nodes)
	}
	if cfg.MinSize != 2 || cfg.MaxSize != 8 || cfg.AcquireTimeout != 3 {
		t.Errorf("Expected sizes 2/8 and acquire timeout 3, got %+v", cfg)
	}
	if !cfg.StrictRelease {
		t.Error("Expected strict release from env")
	}
	if cfg.ReadTimeout != DefaultReadTimeoutSecs {
		t.Errorf("Malformed value should keep default, got %d", cfg.ReadTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Loaded config should be valid: %v", err)
	}
}

func TestLoadClientConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcpool.yaml")
	data := []byte("uri: memcached://file-host:11212\nmin_size: 0\nmax_size: 4\nlog_level: warn\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MCPOOL_CONFIG", path)
	t.Setenv("MCPOOL_MAX_SIZE", "6")

	cfg, err := LoadClientConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.URI != "memcached://file-host:11212" {
		t.Errorf("Expected URI from file, got %s", cfg.URI)
	}
	if cfg.MinSize != 0 {
		t.Errorf("Expected min size 0 from file, got %d", cfg.MinSize)
	}
	if cfg.MaxSize != 6 {
		t.Errorf("Environment should override file, got max size %d", cfg.MaxSize)
	}
	if cfg.ConnTimeout != DefaultConnTimeoutSecs {
		t.Errorf("Unset keys should keep defaults, got %d", cfg.ConnTimeout)
	}
}

func TestLoadClientConfigBadFile(t *testing.T) {
	t.Setenv("MCPOOL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadClientConfig(); err == nil {
		t.Error("Expected error for missing config file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("max_size: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MCPOOL_CONFIG", path)
	if _, err := LoadClientConfig(); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestLoadClientConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MCPOOL_VIRTUAL_NODES=42\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	t.Cleanup(func() { os.Unsetenv("MCPOOL_VIRTUAL_NODES") })

	cfg, err := LoadClientConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.VirtualNodes != 42 {
		t.Errorf("Expected virtual nodes from .env, got %d", cfg.VirtualNodes)
	}
}

func TestClientConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ClientConfig)
	}{
		{"no endpoint", func(c *ClientConfig) { c.URI = ""; c.Nodes = nil }},
		{"empty node", func(c *ClientConfig) { c.Nodes = []string{""} }},
		{"node without port", func(c *ClientConfig) { c.Nodes = []string{"localhost"} }},
		{"zero max", func(c *ClientConfig) { c.MaxSize = 0 }},
		{"negative min", func(c *ClientConfig) { c.MinSize = -1 }},
		{"min above max", func(c *ClientConfig) { c.MinSize = 11 }},
		{"zero conn timeout", func(c *ClientConfig) { c.ConnTimeout = 0 }},
		{"negative acquire timeout", func(c *ClientConfig) { c.AcquireTimeout = -1 }},
		{"zero read timeout", func(c *ClientConfig) { c.ReadTimeout = 0 }},
		{"zero write timeout", func(c *ClientConfig) { c.WriteTimeout = 0 }},
		{"zero virtual nodes", func(c *ClientConfig) { c.VirtualNodes = 0 }},
		{"bad log level", func(c *ClientConfig) { c.LogLevel = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClientConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoadServerConfig(t *testing.T) {
	t.Setenv("MCPOOL_SERVER_PORT", "12000")
	t.Setenv("MCPOOL_SERVER_HOST", "127.0.0.1")

	cfg, err := LoadServerConfig([]string{"-port", "12001", "-log-level", "error"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 12001 {
		t.Errorf("Flag should override env, got port %d", cfg.Port)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected host from env, got %s", cfg.Host)
	}
	if cfg.Address() != "127.0.0.1:12001" {
		t.Errorf("Unexpected address %s", cfg.Address())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Config should be valid: %v", err)
	}

	if _, err := LoadServerConfig([]string{"-unknown"}); err == nil {
		t.Error("Expected error for unknown flag")
	}

	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for port 0")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLogLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLogLevel("loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
	if NewLogger("loud") == nil {
		t.Error("NewLogger should fall back to info")
	}
}
