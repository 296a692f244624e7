package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("port: got %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Server.Mode != ModeDevelopment {
		t.Errorf("mode: got %q, want %q", cfg.Server.Mode, ModeDevelopment)
	}
	if cfg.Dev.SocketURL != DefaultDevSocketURL {
		t.Errorf("dev.socket_url: got %q, want %q", cfg.Dev.SocketURL, DefaultDevSocketURL)
	}
	if cfg.Dev.MaxRetries != 3 {
		t.Errorf("dev.max_retries: got %d, want 3", cfg.Dev.MaxRetries)
	}
	if cfg.Dev.RetryDelay != time.Second {
		t.Errorf("dev.retry_delay: got %v, want 1s", cfg.Dev.RetryDelay)
	}
	if len(cfg.Assets) != 2 {
		t.Fatalf("assets: got %d mounts, want 2", len(cfg.Assets))
	}
	if !cfg.Assets[0].Immutable || cfg.Assets[0].Prefix != "/build" {
		t.Errorf("assets[0]: got %+v, want immutable /build", cfg.Assets[0])
	}
	if cfg.Server.TLS.Enabled() {
		t.Error("tls should be disabled by default")
	}
	if cfg.Addr() != ":3000" {
		t.Errorf("addr: got %q, want :3000", cfg.Addr())
	}
}

func TestLoad_FullFile(t *testing.T) {
	p := writeConfig(t, `server:
  port: 8443
  mode: production
  tls:
    cert_file: /etc/devfront/tls.crt
    key_file: /etc/devfront/tls.key
  shutdown_timeout: 5s
assets:
  - prefix: /static
    dir: dist
    max_age: 24h
app:
  url: http://127.0.0.1:4000
dev:
  socket_url: wss://dev.local:9999
  max_retries: 5
  retry_delay: 250ms
log:
  level: debug
  format: json
metrics:
  path: /internal/metrics
  auth:
    mode: apikey
    key_env: DEVFRONT_METRICS_KEY
    header: x-metrics-key
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8443 {
		t.Errorf("port: got %d, want 8443", cfg.Server.Port)
	}
	if !cfg.IsProduction() {
		t.Error("expected production mode")
	}
	if !cfg.Server.TLS.Enabled() {
		t.Error("expected tls enabled")
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("shutdown_timeout: got %v, want 5s", cfg.Server.ShutdownTimeout)
	}
	if len(cfg.Assets) != 1 || cfg.Assets[0].Dir != "dist" || cfg.Assets[0].MaxAge != 24*time.Hour {
		t.Errorf("assets: got %+v", cfg.Assets)
	}
	if cfg.App.URL != "http://127.0.0.1:4000" {
		t.Errorf("app.url: got %q", cfg.App.URL)
	}
	if cfg.Dev.MaxRetries != 5 || cfg.Dev.RetryDelay != 250*time.Millisecond {
		t.Errorf("dev: got %+v", cfg.Dev)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log: got %+v", cfg.Log)
	}
	if cfg.Metrics.Auth.EffectiveHeader() != "x-metrics-key" {
		t.Errorf("auth header: got %q", cfg.Metrics.Auth.EffectiveHeader())
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	p := writeConfig(t, `server:
  port: 4000
  mode: development
`)
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "5050")
	t.Setenv("DEV_SOCKET_URL", "ws://localhost:4444")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 5050 {
		t.Errorf("port: got %d, want 5050", cfg.Server.Port)
	}
	if !cfg.IsProduction() {
		t.Errorf("mode: got %q, want production", cfg.Server.Mode)
	}
	if cfg.Dev.SocketURL != "ws://localhost:4444" {
		t.Errorf("dev.socket_url: got %q", cfg.Dev.SocketURL)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level: got %q, want warn", cfg.Log.Level)
	}
}

func TestLoad_CustomModeRunsRelay(t *testing.T) {
	t.Setenv("APP_ENV", "staging")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Mode != "staging" {
		t.Errorf("mode: got %q, want staging", cfg.Server.Mode)
	}
	if cfg.IsProduction() {
		t.Error("staging must not count as production")
	}
}

func TestLoad_DevReadyFromEnv(t *testing.T) {
	t.Setenv("BUILD_VERSION_FILE", "build/version.json")
	t.Setenv("DEV_READY_ORIGIN", "http://localhost:3001")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dev.BuildVersionFile != "build/version.json" {
		t.Errorf("dev.build_version_file: got %q", cfg.Dev.BuildVersionFile)
	}
	if cfg.Dev.ReadyOrigin != "http://localhost:3001" {
		t.Errorf("dev.ready_origin: got %q", cfg.Dev.ReadyOrigin)
	}
}

func TestLoad_ZeroRetriesAllowed(t *testing.T) {
	p := writeConfig(t, `dev:
  max_retries: 0
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Dev.MaxRetries != 0 {
		t.Errorf("dev.max_retries: got %d, want 0", cfg.Dev.MaxRetries)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty mode", "server:\n  mode: \"\"\n", "server.mode"},
		{"port out of range", "server:\n  port: 70000\n", "server.port"},
		{"tls cert only", "server:\n  tls:\n    cert_file: a.crt\n", "server.tls"},
		{"asset prefix", "assets:\n  - prefix: build\n    dir: public\n", "assets[0].prefix"},
		{"asset dir", "assets:\n  - prefix: /x\n", "assets[0].dir"},
		{"app url scheme", "app:\n  url: ftp://host\n", "app.url"},
		{"socket scheme", "dev:\n  socket_url: http://127.0.0.1:3333\n", "dev.socket_url"},
		{"negative retries", "dev:\n  max_retries: -1\n", "dev.max_retries"},
		{"zero delay", "dev:\n  retry_delay: 0s\n", "dev.retry_delay"},
		{"log level", "log:\n  level: trace\n", "log.level"},
		{"log format", "log:\n  format: xml\n", "log.format"},
		{"metrics path", "metrics:\n  path: metrics\n", "metrics.path"},
		{"auth mode", "metrics:\n  auth:\n    mode: mtls\n", "metrics.auth.mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed\n"))
	if err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestAuthConfig_Key(t *testing.T) {
	t.Setenv("DEVFRONT_TEST_KEY", "s3cret")

	a := AuthConfig{KeyEnv: "DEVFRONT_TEST_KEY"}
	if got := a.Key(); got != "s3cret" {
		t.Errorf("Key: got %q, want s3cret", got)
	}
	if got := (AuthConfig{}).Key(); got != "" {
		t.Errorf("Key with no env: got %q, want empty", got)
	}
}

func TestAuthConfig_EffectiveHeader(t *testing.T) {
	if got := (AuthConfig{}).EffectiveHeader(); got != "X-Api-Key" {
		t.Errorf("default header: got %q", got)
	}
	if got := (AuthConfig{Header: "x-custom"}).EffectiveHeader(); got != "x-custom" {
		t.Errorf("custom header: got %q", got)
	}
}

func TestIsProduction(t *testing.T) {
	for mode, want := range map[string]bool{
		ModeDevelopment: false,
		ModeTest:        false,
		ModeProduction:  true,
		"staging":       false,
	} {
		cfg := &Config{Server: ServerConfig{Mode: mode}}
		if got := cfg.IsProduction(); got != want {
			t.Errorf("IsProduction(%q): got %v, want %v", mode, got, want)
		}
	}
}
