package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"
)

// Server modes. Anything but ModeProduction enables the live-reload relay.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
	ModeTest        = "test"
)

// Default values for the configuration.
const (
	DefaultPort              = 3000
	DefaultDevSocketURL      = "ws://127.0.0.1:3333"
	DefaultDevMaxRetries     = 3
	DefaultDevRetryDelay     = 1 * time.Second
	DefaultMetricsPath       = "/metrics"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
)

// Config is the full devfront configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Assets  []AssetMount  `yaml:"assets"`
	App     AppConfig     `yaml:"app"`
	Dev     DevConfig     `yaml:"dev"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	// Port is the HTTP(S) listen port (default 3000).
	Port int `yaml:"port"`

	// Mode names the environment, e.g. development | production | test.
	// Only "production" disables the live-reload relay; other values are
	// accepted as-is.
	Mode string `yaml:"mode"`

	// TLS enables HTTPS when both files are set.
	TLS TLSConfig `yaml:"tls"`

	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// TLSConfig names the PEM files used for HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Enabled reports whether HTTPS is configured.
func (t TLSConfig) Enabled() bool { return t.CertFile != "" && t.KeyFile != "" }

// AssetMount serves files from Dir under the URL Prefix.
type AssetMount struct {
	Prefix string        `yaml:"prefix"`
	Dir    string        `yaml:"dir"`
	MaxAge time.Duration `yaml:"max_age"`

	// Immutable marks fingerprinted assets that never change under one URL.
	Immutable bool `yaml:"immutable"`
}

// AppConfig points at the application request handler.
type AppConfig struct {
	// URL of the application server every non-asset request is forwarded to.
	// Empty means non-asset requests get 404.
	URL string `yaml:"url"`
}

// DevConfig configures the live-reload relay (non-production only).
type DevConfig struct {
	SocketURL  string        `yaml:"socket_url"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	// ReadyOrigin is where the build-ready ping is POSTed. Derived from
	// SocketURL when empty.
	ReadyOrigin string `yaml:"ready_origin"`

	// BuildVersionFile is a JSON file with a "version" field. When set, the
	// dev server is notified of that version once the listener is up.
	BuildVersionFile string `yaml:"build_version_file"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: text | json.
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool       `yaml:"enabled"`
	Path    string     `yaml:"path"`
	Auth    AuthConfig `yaml:"auth"`
}

// AuthConfig controls access to the metrics endpoint.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "X-Api-Key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "X-Api-Key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "X-Api-Key"
}

// IsProduction reports whether the dev subsystem must stay off.
func (c *Config) IsProduction() bool { return c.Server.Mode == ModeProduction }

// Addr returns the listen address.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Server.Port) }

// envOverrides are process environment settings layered over the file.
type envOverrides struct {
	Mode         string `env:"APP_ENV"`
	Port         int    `env:"PORT"`
	LogLevel     string `env:"LOG_LEVEL"`
	LogFormat    string `env:"LOG_FORMAT"`
	DevSocketURL string `env:"DEV_SOCKET_URL"`
	AppURL       string `env:"APP_URL"`
	TLSCertFile  string `env:"TLS_CERT_FILE"`
	TLSKeyFile   string `env:"TLS_KEY_FILE"`

	BuildVersionFile string `env:"BUILD_VERSION_FILE"`
	DevReadyOrigin   string `env:"DEV_READY_ORIGIN"`
}

// Load reads the config file at path (optional; empty skips it), applies a
// .env file and environment overrides, then validates.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("config: no .env file found, using environment variables")
	}

	var ov envOverrides
	if err := env.Load(&ov, nil); err != nil {
		return nil, fmt.Errorf("config: load environment variables: %w", err)
	}
	applyOverrides(cfg, ov)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              DefaultPort,
			Mode:              ModeDevelopment,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ShutdownTimeout:   DefaultShutdownTimeout,
		},
		// Fingerprinted build output is cached forever, everything else for an hour.
		Assets: []AssetMount{
			{Prefix: "/build", Dir: "public/build", MaxAge: 365 * 24 * time.Hour, Immutable: true},
			{Prefix: "/", Dir: "public", MaxAge: time.Hour},
		},
		Dev: DevConfig{
			SocketURL:  DefaultDevSocketURL,
			MaxRetries: DefaultDevMaxRetries,
			RetryDelay: DefaultDevRetryDelay,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}

func applyOverrides(cfg *Config, ov envOverrides) {
	if ov.Mode != "" {
		cfg.Server.Mode = ov.Mode
	}
	if ov.Port != 0 {
		cfg.Server.Port = ov.Port
	}
	if ov.LogLevel != "" {
		cfg.Log.Level = ov.LogLevel
	}
	if ov.LogFormat != "" {
		cfg.Log.Format = ov.LogFormat
	}
	if ov.DevSocketURL != "" {
		cfg.Dev.SocketURL = ov.DevSocketURL
	}
	if ov.AppURL != "" {
		cfg.App.URL = ov.AppURL
	}
	if ov.TLSCertFile != "" {
		cfg.Server.TLS.CertFile = ov.TLSCertFile
	}
	if ov.TLSKeyFile != "" {
		cfg.Server.TLS.KeyFile = ov.TLSKeyFile
	}
	if ov.BuildVersionFile != "" {
		cfg.Dev.BuildVersionFile = ov.BuildVersionFile
	}
	if ov.DevReadyOrigin != "" {
		cfg.Dev.ReadyOrigin = ov.DevReadyOrigin
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", cfg.Server.Port)
	}
	if strings.TrimSpace(cfg.Server.Mode) == "" {
		return fmt.Errorf("server.mode must not be empty")
	}
	if (cfg.Server.TLS.CertFile == "") != (cfg.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.tls: cert_file and key_file must be set together")
	}

	for i, m := range cfg.Assets {
		if !strings.HasPrefix(m.Prefix, "/") {
			return fmt.Errorf("assets[%d].prefix %q must start with /", i, m.Prefix)
		}
		if m.Dir == "" {
			return fmt.Errorf("assets[%d].dir is required", i)
		}
		if m.MaxAge < 0 {
			return fmt.Errorf("assets[%d].max_age must not be negative", i)
		}
	}

	if cfg.App.URL != "" {
		u, err := url.Parse(cfg.App.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("app.url %q must be an absolute http(s) URL", cfg.App.URL)
		}
	}

	u, err := url.Parse(cfg.Dev.SocketURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("dev.socket_url %q must be a ws:// or wss:// URL", cfg.Dev.SocketURL)
	}
	if cfg.Dev.MaxRetries < 0 {
		return fmt.Errorf("dev.max_retries must not be negative")
	}
	if cfg.Dev.RetryDelay <= 0 {
		return fmt.Errorf("dev.retry_delay must be positive")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q unknown: want debug|info|warn|error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q unknown: want text|json", cfg.Log.Format)
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", cfg.Metrics.Path)
	}
	switch cfg.Metrics.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("metrics.auth.mode %q unknown: want apikey|none", cfg.Metrics.Auth.Mode)
	}
	return nil
}
