package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	API        APIConfig        `mapstructure:"api"`
	View       ViewConfig       `mapstructure:"view"`
	Session    SessionConfig    `mapstructure:"session"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	Stub       StubConfig       `mapstructure:"stub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Tracing    TracingConfig    `mapstructure:"tracing"`

	// File is the base config file that was read, if any.
	File string `mapstructure:"-"`
	// EnvFile is the overlay named by ROSTER_CONFIG, merged over File.
	EnvFile string `mapstructure:"-"`

	// source is the path Load was called with; reloads repeat the same
	// search and merge.
	source string
}

type AppConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type APIConfig struct {
	BaseURL    string `mapstructure:"baseURL"`
	TimeoutSec int    `mapstructure:"timeoutSec"`
}

type ViewConfig struct {
	RefreshMode string `mapstructure:"refreshMode"`
	Live        bool   `mapstructure:"live"`
}

type SessionConfig struct {
	CookieName    string `mapstructure:"cookieName"`
	TTLSec        int    `mapstructure:"ttlSec"`
	SweepSchedule string `mapstructure:"sweepSchedule"`
}

type MiddlewareConfig struct {
	Headers   HeadersConfig   `mapstructure:"headers"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type HeadersConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Add      map[string]string `mapstructure:"add"`
	Remove   []string          `mapstructure:"remove"`
	Override map[string]string `mapstructure:"override"`
}

type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	Limit          int  `mapstructure:"limit"`
	WindowSeconds  int  `mapstructure:"windowSeconds"`
	CleanupSeconds int  `mapstructure:"cleanupSeconds"`
}

type StubConfig struct {
	Port   int    `mapstructure:"port"`
	Host   string `mapstructure:"host"`
	DBPath string `mapstructure:"dbPath"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig enables OTLP/HTTP trace export when Endpoint is set.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"serviceName"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("roster")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/roster")
	}

	v.SetEnvPrefix("ROSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	base := v.ConfigFileUsed()

	envPath := os.Getenv("ROSTER_CONFIG")
	if envPath != "" {
		v.SetConfigFile(envPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("error reading env config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.File = base
	cfg.EnvFile = envPath
	cfg.source = configPath

	return &cfg, nil
}

// Files lists the config files Load read, base first.
func (c *Config) Files() []string {
	var files []string
	for _, f := range []string{c.File, c.EnvFile} {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.host", "0.0.0.0")

	v.SetDefault("api.baseURL", "http://localhost:3000")
	v.SetDefault("api.timeoutSec", 10)

	v.SetDefault("view.refreshMode", "refetch")
	v.SetDefault("view.live", true)

	v.SetDefault("session.cookieName", "roster_session")
	v.SetDefault("session.ttlSec", 1800)
	v.SetDefault("session.sweepSchedule", "@every 1m")

	v.SetDefault("middleware.headers.enabled", true)
	v.SetDefault("middleware.headers.add", map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	})
	v.SetDefault("middleware.ratelimit.enabled", false)
	v.SetDefault("middleware.ratelimit.limit", 100)
	v.SetDefault("middleware.ratelimit.windowSeconds", 60)
	v.SetDefault("middleware.ratelimit.cleanupSeconds", 300)

	v.SetDefault("stub.port", 3000)
	v.SetDefault("stub.host", "0.0.0.0")
	v.SetDefault("stub.dbPath", "./roster-stub.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("tracing.enabled", true)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.serviceName", "roster")
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) StubAddr() string {
	return fmt.Sprintf("%s:%d", c.Stub.Host, c.Stub.Port)
}

func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLSec) * time.Second
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.Middleware.RateLimit.WindowSeconds) * time.Second
}

func (c *Config) RateLimitCleanup() time.Duration {
	return time.Duration(c.Middleware.RateLimit.CleanupSeconds) * time.Second
}

// LogLevel parses logging.level; unknown values mean info.
func (c *Config) LogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
