package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Redis   RedisConfig   `toml:"redis"`
	Limits  LimitsConfig  `toml:"limits"`
	Engine  EngineConfig  `toml:"engine"`
	Worker  WorkerConfig  `toml:"worker"`
	Context ContextConfig `toml:"context"`
	Auth    AuthConfig    `toml:"auth"`
	Log     LogConfig     `toml:"log"`
}

type ServerConfig struct {
	Port int `toml:"port"`
}

type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	DB       int    `toml:"db"`
	Password string `toml:"password"`
}

type LimitsConfig struct {
	// GuestDailyCap is the number of questions an unauthenticated caller
	// may submit per calendar day.
	GuestDailyCap int `toml:"guest_daily_cap"`
}

type EngineConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

type WorkerConfig struct {
	PollInterval string `toml:"poll_interval"`
	LeaseTTL     string `toml:"lease_ttl"`
	MaxAttempts  int    `toml:"max_attempts"`
}

type ContextConfig struct {
	// Dir holds .txt and .pdf documents used as inference context.
	// Empty means the engine receives a placeholder context.
	Dir string `toml:"dir"`
}

type AuthConfig struct {
	TokenSecret string `toml:"token_secret"`
	TokenTTL    string `toml:"token_ttl"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Limits: LimitsConfig{
			GuestDailyCap: 5,
		},
		Engine: EngineConfig{
			BaseURL: "http://localhost:8090",
			Model:   "bert-base-chinese",
		},
		Worker: WorkerConfig{
			PollInterval: "500ms",
			LeaseTTL:     "5m",
			MaxAttempts:  3,
		},
		Auth: AuthConfig{
			TokenSecret: "askd-dev-secret-change-in-production",
			TokenTTL:    "60h",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "askd-data"
		}
	}
	return filepath.Join(dir, "askd")
}

func defaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(dir, "askd", "config.toml")
}

// Load reads configuration from $XDG_CONFIG_HOME/askd/config.toml (if
// present) with ASKD_* environment variables overriding file values.
// Resolved once at process start.
func Load() (Config, error) {
	return loadFromPath(defaultConfigPath())
}

func loadFromPath(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Missing config file is fine; defaults plus env apply.
	case err != nil:
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Limits.GuestDailyCap < 0 {
		return Config{}, fmt.Errorf("guest_daily_cap must be >= 0, got %d", cfg.Limits.GuestDailyCap)
	}
	if cfg.Worker.MaxAttempts < 1 {
		return Config{}, fmt.Errorf("max_attempts must be >= 1, got %d", cfg.Worker.MaxAttempts)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setInt("ASKD_PORT", &cfg.Server.Port)
	setString("ASKD_DATA_DIR", &cfg.Storage.DataDir)
	setString("ASKD_REDIS_ADDR", &cfg.Redis.Addr)
	setInt("ASKD_REDIS_DB", &cfg.Redis.DB)
	setString("ASKD_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("ASKD_GUEST_DAILY_CAP", &cfg.Limits.GuestDailyCap)
	setString("ASKD_ENGINE_URL", &cfg.Engine.BaseURL)
	setString("ASKD_ENGINE_MODEL", &cfg.Engine.Model)
	setString("ASKD_WORKER_POLL_INTERVAL", &cfg.Worker.PollInterval)
	setString("ASKD_WORKER_LEASE_TTL", &cfg.Worker.LeaseTTL)
	setInt("ASKD_WORKER_MAX_ATTEMPTS", &cfg.Worker.MaxAttempts)
	setString("ASKD_CONTEXT_DIR", &cfg.Context.Dir)
	setString("ASKD_TOKEN_SECRET", &cfg.Auth.TokenSecret)
	setString("ASKD_AUTH_TOKEN_TTL", &cfg.Auth.TokenTTL)
	setString("ASKD_LOG_LEVEL", &cfg.Log.Level)
}
