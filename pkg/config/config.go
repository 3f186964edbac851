package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	PassToken     PassTokenConfig
	Sweep         SweepConfig
	Realtime      RealtimeConfig
	Notifications NotificationsConfig
	Stats         StatsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PassTokenConfig holds the secret for minting single-use pass codes.
type PassTokenConfig struct {
	Secret string
}

// SweepConfig tunes the background overdue sweep.
type SweepConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

// RealtimeConfig tunes the websocket fan-out service.
type RealtimeConfig struct {
	Enabled    bool
	SendBuffer int
}

// NotificationsConfig tunes the transition event dispatcher.
type NotificationsConfig struct {
	Workers     int
	QueueBuffer int
	MaxRetries  int
}

// StatsConfig governs cache behaviour for the outpass stats endpoint.
type StatsConfig struct {
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.PassToken = PassTokenConfig{
		Secret: v.GetString("PASS_TOKEN_SECRET"),
	}

	cfg.Sweep = SweepConfig{
		Enabled:   v.GetBool("SWEEP_ENABLED"),
		Interval:  parseDuration(v.GetString("SWEEP_INTERVAL"), 5*time.Minute),
		BatchSize: v.GetInt("SWEEP_BATCH_SIZE"),
	}

	cfg.Realtime = RealtimeConfig{
		Enabled:    v.GetBool("REALTIME_ENABLED"),
		SendBuffer: v.GetInt("REALTIME_SEND_BUFFER"),
	}

	cfg.Notifications = NotificationsConfig{
		Workers:     v.GetInt("NOTIFICATION_WORKERS"),
		QueueBuffer: v.GetInt("NOTIFICATION_QUEUE_BUFFER"),
		MaxRetries:  v.GetInt("NOTIFICATION_MAX_RETRIES"),
	}

	cfg.Stats = StatsConfig{
		CacheTTL: parseDuration(v.GetString("STATS_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campus_pass")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PASS_TOKEN_SECRET", "dev_pass_secret")

	v.SetDefault("SWEEP_ENABLED", true)
	v.SetDefault("SWEEP_INTERVAL", "5m")
	v.SetDefault("SWEEP_BATCH_SIZE", 100)

	v.SetDefault("REALTIME_ENABLED", true)
	v.SetDefault("REALTIME_SEND_BUFFER", 16)

	v.SetDefault("NOTIFICATION_WORKERS", 2)
	v.SetDefault("NOTIFICATION_QUEUE_BUFFER", 64)
	v.SetDefault("NOTIFICATION_MAX_RETRIES", 3)

	v.SetDefault("STATS_CACHE_TTL", "5m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
