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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Approval   ApprovalConfig
	Queue      QueueConfig
	Attendance AttendanceConfig
	Reports    ReportsConfig
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
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ApprovalConfig tunes the approval workflow and its deadline sweep.
type ApprovalConfig struct {
	Deadline      time.Duration
	SweepInterval time.Duration
	SweepWorkers  int
}

// QueueConfig governs ready-queue behaviour and the technician view cache.
type QueueConfig struct {
	EarlyJoinWindow time.Duration
	ViewCacheTTL    time.Duration
	CacheEnabled    bool
}

// AttendanceConfig governs the attendance scheduler jobs. Timezone is the
// single civil timezone every store schedule is interpreted in.
type AttendanceConfig struct {
	Timezone          string
	ClosingTolerance  time.Duration
	InactivityTimeout time.Duration
	SweepInterval     time.Duration
}

// ReportsConfig configures attendance report exports.
type ReportsConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
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
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Approval = ApprovalConfig{
		Deadline:      parseDuration(v.GetString("APPROVAL_DEADLINE"), 48*time.Hour),
		SweepInterval: parseDuration(v.GetString("APPROVAL_SWEEP_INTERVAL"), 15*time.Minute),
		SweepWorkers:  v.GetInt("APPROVAL_SWEEP_WORKERS"),
	}

	cfg.Queue = QueueConfig{
		EarlyJoinWindow: parseDuration(v.GetString("QUEUE_EARLY_JOIN_WINDOW"), 15*time.Minute),
		ViewCacheTTL:    parseDuration(v.GetString("QUEUE_VIEW_CACHE_TTL"), 15*time.Second),
		CacheEnabled:    v.GetBool("QUEUE_VIEW_CACHE_ENABLED"),
	}

	cfg.Attendance = AttendanceConfig{
		Timezone:          v.GetString("ATTENDANCE_TIMEZONE"),
		ClosingTolerance:  parseDuration(v.GetString("ATTENDANCE_CLOSING_TOLERANCE"), 30*time.Minute),
		InactivityTimeout: parseDuration(v.GetString("ATTENDANCE_INACTIVITY_TIMEOUT"), 2*time.Hour),
		SweepInterval:     parseDuration(v.GetString("ATTENDANCE_SWEEP_INTERVAL"), 5*time.Minute),
	}

	cfg.Reports = ReportsConfig{
		Enabled:         v.GetBool("ENABLE_REPORTS"),
		StorageDir:      v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
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
	v.SetDefault("DB_NAME", "salon_pos")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "salon-pos-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("APPROVAL_DEADLINE", "48h")
	v.SetDefault("APPROVAL_SWEEP_INTERVAL", "15m")
	v.SetDefault("APPROVAL_SWEEP_WORKERS", 2)

	v.SetDefault("QUEUE_EARLY_JOIN_WINDOW", "15m")
	v.SetDefault("QUEUE_VIEW_CACHE_TTL", "15s")
	v.SetDefault("QUEUE_VIEW_CACHE_ENABLED", true)

	v.SetDefault("ATTENDANCE_TIMEZONE", "America/New_York")
	v.SetDefault("ATTENDANCE_CLOSING_TOLERANCE", "30m")
	v.SetDefault("ATTENDANCE_INACTIVITY_TIMEOUT", "2h")
	v.SetDefault("ATTENDANCE_SWEEP_INTERVAL", "5m")

	v.SetDefault("ENABLE_REPORTS", false)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
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
