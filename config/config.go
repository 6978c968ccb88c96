package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Identity   IdentityConfig   `yaml:"identity"`
	Game       GameConfig       `yaml:"game"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Reaper     ReaperConfig     `yaml:"reaper"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	// Driver is one of "postgres", "sqlite" or "memory".
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig enables cross-instance change delivery over Redis pub/sub.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// IdentityConfig configures anonymous identity tokens.
type IdentityConfig struct {
	Secret        string        `yaml:"secret"`
	Issuer        string        `yaml:"issuer"`
	TokenTTLHours int           `yaml:"token_ttl_hours"`
	TokenTTL      time.Duration `yaml:"-"`
}

// GameConfig holds the room rules that are deployment choices.
type GameConfig struct {
	CodeLength         int  `yaml:"code_length"`
	DefaultMaxNumber   int  `yaml:"default_max_number"`
	MinReconfigNumber  int  `yaml:"min_reconfig_number"`
	MaxReconfigNumber  int  `yaml:"max_reconfig_number"`
	AllowPlayerMarking bool `yaml:"allow_player_marking"`
	MaxWriteAttempts   int  `yaml:"max_write_attempts"`
	CodeCacheMinutes   int  `yaml:"code_cache_minutes"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// ReaperConfig controls removal of abandoned rooms.
type ReaperConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
	IdleTTLHours    int           `yaml:"idle_ttl_hours"`
	IdleTTL         time.Duration `yaml:"-"`
	BatchSize       int           `yaml:"batch_size"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration from the given path. A .env file in the
// working directory is loaded first so its variables can override the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to load .env file")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("BINGO_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("BINGO_IDENTITY_SECRET"); v != "" {
		cfg.Identity.Secret = v
	}
	if v := os.Getenv("BINGO_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("BINGO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			logrus.Warnf("ignoring invalid BINGO_PORT %q", v)
		}
	}
}

// ApplyDefaults fills every unset field with its default value.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN == "" {
		cfg.Database.DSN = "bingo.db"
	}

	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "bingo:"
	}

	if cfg.Identity.Issuer == "" {
		cfg.Identity.Issuer = "bingo-room-backend"
	}
	if cfg.Identity.TokenTTLHours <= 0 {
		cfg.Identity.TokenTTLHours = 24 * 30
	}
	cfg.Identity.TokenTTL = time.Duration(cfg.Identity.TokenTTLHours) * time.Hour

	if cfg.Game.CodeLength <= 0 {
		cfg.Game.CodeLength = 6
	}
	if cfg.Game.DefaultMaxNumber <= 0 {
		cfg.Game.DefaultMaxNumber = 75
	}
	if cfg.Game.MinReconfigNumber <= 0 {
		cfg.Game.MinReconfigNumber = 10
	}
	if cfg.Game.MaxReconfigNumber <= 0 {
		cfg.Game.MaxReconfigNumber = 150
	}
	if cfg.Game.MaxWriteAttempts <= 0 {
		cfg.Game.MaxWriteAttempts = 5
	}
	if cfg.Game.CodeCacheMinutes <= 0 {
		cfg.Game.CodeCacheMinutes = 30
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		logrus.Info("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Reaper.IntervalSeconds <= 0 {
		cfg.Reaper.IntervalSeconds = 600
	}
	cfg.Reaper.Interval = time.Duration(cfg.Reaper.IntervalSeconds) * time.Second
	if cfg.Reaper.IdleTTLHours <= 0 {
		cfg.Reaper.IdleTTLHours = 24
	}
	cfg.Reaper.IdleTTL = time.Duration(cfg.Reaper.IdleTTLHours) * time.Hour
	if cfg.Reaper.BatchSize <= 0 {
		cfg.Reaper.BatchSize = 100
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// SetupLogger configures the global logrus logger.
func (c LogConfig) SetupLogger() {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", c.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if c.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetOutput(os.Stdout)
}
