package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Slot store drivers.
const (
	StoreDriverPostgres     = "postgres"
	StoreDriverContentStore = "contentstore"
)

type Config struct {
	Env             string
	Port            int
	APIPrefix       string
	ShutdownTimeout time.Duration

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Slots        SlotsConfig
	ContentStore ContentStoreConfig
	Metrics      MetricsConfig
	Audit        AuditConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SlotsConfig tunes the class-slot engine. MaxCapacity applies to every slot of every course.
type SlotsConfig struct {
	StoreDriver          string
	MaxCapacity          int
	NearlyFullRatio      float64
	StoreTimeout         time.Duration
	LockTTL              time.Duration
	ScheduleOptionsTTL   time.Duration
	FallbackTimeLabels   []string
	PromotionalBadgeText string
}

// ContentStoreConfig points at the remote content store holding course records.
type ContentStoreConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// AuditConfig controls the asynchronous slot audit trail.
type AuditConfig struct {
	Enabled    bool
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.ShutdownTimeout = parseDuration(v.GetString("SHUTDOWN_TIMEOUT"), 15*time.Second)

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
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxCapacity := v.GetInt("SLOTS_MAX_CAPACITY")
	if maxCapacity <= 0 {
		maxCapacity = 15
	}
	ratio := v.GetFloat64("SLOTS_NEARLY_FULL_RATIO")
	if ratio <= 0 || ratio > 1 {
		ratio = 0.8
	}
	cfg.Slots = SlotsConfig{
		StoreDriver:          normalizeDriver(v.GetString("SLOTS_STORE_DRIVER")),
		MaxCapacity:          maxCapacity,
		NearlyFullRatio:      ratio,
		StoreTimeout:         parseDuration(v.GetString("SLOTS_STORE_TIMEOUT"), 5*time.Second),
		LockTTL:              parseDuration(v.GetString("SLOTS_LOCK_TTL"), 15*time.Second),
		ScheduleOptionsTTL:   parseDuration(v.GetString("SCHEDULE_OPTIONS_CACHE_TTL"), 10*time.Minute),
		FallbackTimeLabels:   splitAndTrim(v.GetString("SLOTS_FALLBACK_TIMES")),
		PromotionalBadgeText: v.GetString("SLOTS_PROMOTIONAL_BADGE"),
	}

	cfg.ContentStore = ContentStoreConfig{
		URL:     strings.TrimRight(v.GetString("CONTENT_STORE_URL"), "/"),
		Token:   v.GetString("CONTENT_STORE_TOKEN"),
		Timeout: parseDuration(v.GetString("CONTENT_STORE_TIMEOUT"), 5*time.Second),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
		Path:    v.GetString("METRICS_PATH"),
	}

	cfg.Audit = AuditConfig{
		Enabled:    v.GetBool("ENABLE_SLOT_AUDIT"),
		Workers:    v.GetInt("AUDIT_WORKERS"),
		MaxRetries: v.GetInt("AUDIT_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("AUDIT_RETRY_DELAY"), time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "academy")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SLOTS_STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("SLOTS_MAX_CAPACITY", 15)
	v.SetDefault("SLOTS_NEARLY_FULL_RATIO", 0.8)
	v.SetDefault("SLOTS_STORE_TIMEOUT", "5s")
	v.SetDefault("SLOTS_LOCK_TTL", "15s")
	v.SetDefault("SCHEDULE_OPTIONS_CACHE_TTL", "10m")
	v.SetDefault("SLOTS_FALLBACK_TIMES", "14:00,15:00,16:00,17:00,18:00,19:00,20:00")
	v.SetDefault("SLOTS_PROMOTIONAL_BADGE", "")

	v.SetDefault("CONTENT_STORE_URL", "http://localhost:1337")
	v.SetDefault("CONTENT_STORE_TOKEN", "")
	v.SetDefault("CONTENT_STORE_TIMEOUT", "5s")

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("METRICS_PATH", "/metrics")

	v.SetDefault("ENABLE_SLOT_AUDIT", false)
	v.SetDefault("AUDIT_WORKERS", 1)
	v.SetDefault("AUDIT_MAX_RETRIES", 3)
	v.SetDefault("AUDIT_RETRY_DELAY", "1s")
}

func normalizeDriver(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StoreDriverContentStore:
		return StoreDriverContentStore
	default:
		return StoreDriverPostgres
	}
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
