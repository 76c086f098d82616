package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir   string   `mapstructure:"MIGRATIONS_DIR"`
	JWTSecret       string   `mapstructure:"JWT_SECRET"`
	TokenTTLHours   int      `mapstructure:"TOKEN_TTL_HOURS"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int      `mapstructure:"RATE_LIMIT_BURST"`
	FusionWorkers   int      `mapstructure:"FUSION_WORKERS"`
	TriggerVocabFile string  `mapstructure:"TRIGGER_VOCAB_FILE"`
	RedisAddr       string   `mapstructure:"REDIS_ADDR"`
	RedisPassword   string   `mapstructure:"REDIS_PASSWORD"`
	CacheTTLMinutes int      `mapstructure:"CACHE_TTL_MINUTES"`
	KafkaBrokers    []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic      string   `mapstructure:"KAFKA_TOPIC"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("TOKEN_TTL_HOURS", 24)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("FUSION_WORKERS", 4)
	v.SetDefault("CACHE_TTL_MINUTES", 15)
	v.SetDefault("KAFKA_TOPIC", "oncotrace.fusion.runs")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("MIGRATIONS_DIR")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("TOKEN_TTL_HOURS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("FUSION_WORKERS")
	v.BindEnv("TRIGGER_VOCAB_FILE")
	v.BindEnv("REDIS_ADDR")
	v.BindEnv("REDIS_PASSWORD")
	v.BindEnv("CACHE_TTL_MINUTES")
	v.BindEnv("KAFKA_BROKERS")
	v.BindEnv("KAFKA_TOPIC")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Viper reads comma-separated env vars as a single string; split them here.
	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	if cfg.KafkaBrokers == nil {
		brokers := v.GetString("KAFKA_BROKERS")
		if brokers != "" {
			cfg.KafkaBrokers = strings.Split(brokers, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the service is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// CacheEnabled reports whether the Redis summary cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// NotifyEnabled reports whether the Kafka run-completion publisher is configured.
func (c *Config) NotifyEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Validate checks that the configuration is safe to run. Outside development a
// JWT_SECRET must be set so the API enforces real authentication.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.FusionWorkers < 1 {
		return fmt.Errorf("FUSION_WORKERS must be at least 1, got %d", c.FusionWorkers)
	}
	if c.CacheEnabled() && c.CacheTTLMinutes < 1 {
		return fmt.Errorf("CACHE_TTL_MINUTES must be at least 1 when REDIS_ADDR is set, got %d", c.CacheTTLMinutes)
	}
	if c.NotifyEnabled() && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}
