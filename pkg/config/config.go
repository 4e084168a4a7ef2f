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

// Assignment modes select how a slot reacts to a second teacher.
const (
	AssignmentModeSingle = "single"
	AssignmentModeMulti  = "multi"
)

// Persistence backends for classroom grids.
const (
	PersistBackendPostgres = "postgres"
	PersistBackendRedis    = "redis"
	PersistBackendNone     = "none"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Timetable TimetableConfig
	Generator GeneratorConfig
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

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// TimetableConfig governs validation rules and persistence of classroom grids.
type TimetableConfig struct {
	AssignmentMode      string
	EnforceGrade        bool
	EnforceCurriculum   bool
	PersistBackend      string
	PersistWorkers      int
	PersistRetries      int
	PersistRetryDelay   time.Duration
	RedisKeyPrefix      string
	ShutdownGracePeriod time.Duration
}

// MultiAssignment reports whether slots accept more than one teacher.
func (c TimetableConfig) MultiAssignment() bool {
	return strings.EqualFold(c.AssignmentMode, AssignmentModeMulti)
}

// GeneratorConfig tunes the bundled heuristic generator.
type GeneratorConfig struct {
	Timeout              time.Duration
	MaxAttempts          int
	MaxSubjectPeriodsDay int
	Seed                 int64
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	mode := strings.ToLower(strings.TrimSpace(v.GetString("TIMETABLE_ASSIGNMENT_MODE")))
	if mode != AssignmentModeSingle && mode != AssignmentModeMulti {
		mode = AssignmentModeMulti
	}
	backend := strings.ToLower(strings.TrimSpace(v.GetString("TIMETABLE_PERSIST_BACKEND")))
	switch backend {
	case PersistBackendPostgres, PersistBackendRedis, PersistBackendNone:
	default:
		backend = PersistBackendPostgres
	}
	cfg.Timetable = TimetableConfig{
		AssignmentMode:      mode,
		EnforceGrade:        v.GetBool("TIMETABLE_ENFORCE_GRADE"),
		EnforceCurriculum:   v.GetBool("TIMETABLE_ENFORCE_CURRICULUM"),
		PersistBackend:      backend,
		PersistWorkers:      v.GetInt("TIMETABLE_PERSIST_WORKERS"),
		PersistRetries:      v.GetInt("TIMETABLE_PERSIST_RETRIES"),
		PersistRetryDelay:   parseDuration(v.GetString("TIMETABLE_PERSIST_RETRY_DELAY"), time.Second),
		RedisKeyPrefix:      v.GetString("TIMETABLE_REDIS_KEY_PREFIX"),
		ShutdownGracePeriod: parseDuration(v.GetString("SHUTDOWN_GRACE_PERIOD"), 10*time.Second),
	}

	cfg.Generator = GeneratorConfig{
		Timeout:              parseDuration(v.GetString("GENERATOR_TIMEOUT"), 30*time.Second),
		MaxAttempts:          v.GetInt("GENERATOR_MAX_ATTEMPTS"),
		MaxSubjectPeriodsDay: v.GetInt("GENERATOR_MAX_SUBJECT_PER_DAY"),
		Seed:                 v.GetInt64("GENERATOR_SEED"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ENABLE_METRICS", true)

	v.SetDefault("TIMETABLE_ASSIGNMENT_MODE", AssignmentModeMulti)
	v.SetDefault("TIMETABLE_ENFORCE_GRADE", true)
	v.SetDefault("TIMETABLE_ENFORCE_CURRICULUM", false)
	v.SetDefault("TIMETABLE_PERSIST_BACKEND", PersistBackendPostgres)
	v.SetDefault("TIMETABLE_PERSIST_WORKERS", 1)
	v.SetDefault("TIMETABLE_PERSIST_RETRIES", 3)
	v.SetDefault("TIMETABLE_PERSIST_RETRY_DELAY", "1s")
	v.SetDefault("TIMETABLE_REDIS_KEY_PREFIX", "timetable:grid:")
	v.SetDefault("SHUTDOWN_GRACE_PERIOD", "10s")

	v.SetDefault("GENERATOR_TIMEOUT", "30s")
	v.SetDefault("GENERATOR_MAX_ATTEMPTS", 1000)
	v.SetDefault("GENERATOR_MAX_SUBJECT_PER_DAY", 2)
	v.SetDefault("GENERATOR_SEED", 0)
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
