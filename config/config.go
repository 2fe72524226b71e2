package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Gemini   GeminiConfig
	Scoring  ScoringConfig
	Quota    QuotaConfig
	Cache    CacheConfig
	Breaker  BreakerConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// GeminiConfig holds the explanation provider settings.
type GeminiConfig struct {
	APIKey         string
	Model          string
	TimeoutSec     int // per-call provider timeout; must stay under the serving SLA
	DailyCallLimit int // daily AI-spend cap across the whole process
}

// ScoringConfig holds criterion weights and ranking parameters. Changing any
// weight produces a new scoring config name, which keys metrics and
// explanation fingerprints.
type ScoringConfig struct {
	Version         string
	IndustryWeight  int
	TRLWeight       int
	OrgTypeWeight   int
	RDWeight        int
	DeadlineWeight  int
	ExactMatchBonus int
	TopK            int
}

// QuotaConfig holds per-plan generation limits.
type QuotaConfig struct {
	FreeMonthlyLimit int
}

// CacheConfig holds explanation cache and warming settings. The window
// fields bound which organizations count as active for the smart and full
// warming strategies.
type CacheConfig struct {
	ExplanationTTLHours int
	WarmTimeoutSec      int
	WarmMaxOrgs         int
	SmartWindowDays     int
	FullWindowDays      int
}

// BreakerConfig holds circuit breaker thresholds for the AI provider.
type BreakerConfig struct {
	FailureThreshold int
	CooldownSec      int
	MaxCooldownSec   int
}

// MetricsConfig holds ranking-quality metric defaults.
type MetricsConfig struct {
	K             int
	MinSampleSize int
	WindowDays    int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "fundmatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Gemini: GeminiConfig{
			APIKey:         getEnv("GEMINI_API_KEY", ""),
			Model:          getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			TimeoutSec:     getEnvInt("GEMINI_TIMEOUT_SEC", 10),
			DailyCallLimit: getEnvInt("GEMINI_DAILY_CALL_LIMIT", 500),
		},
		Scoring: ScoringConfig{
			Version:         getEnv("SCORING_VERSION", "v1"),
			IndustryWeight:  getEnvInt("SCORING_WEIGHT_INDUSTRY", 30),
			TRLWeight:       getEnvInt("SCORING_WEIGHT_TRL", 20),
			OrgTypeWeight:   getEnvInt("SCORING_WEIGHT_ORG_TYPE", 20),
			RDWeight:        getEnvInt("SCORING_WEIGHT_RD_EXPERIENCE", 15),
			DeadlineWeight:  getEnvInt("SCORING_WEIGHT_DEADLINE", 15),
			ExactMatchBonus: getEnvInt("SCORING_EXACT_MATCH_BONUS", 10),
			TopK:            getEnvInt("MATCH_TOP_K", 20),
		},
		Quota: QuotaConfig{
			FreeMonthlyLimit: getEnvInt("QUOTA_FREE_MONTHLY", 3),
		},
		Cache: CacheConfig{
			ExplanationTTLHours: getEnvInt("EXPLANATION_TTL_HOURS", 24),
			WarmTimeoutSec:      getEnvInt("CACHE_WARM_TIMEOUT_SEC", 300),
			WarmMaxOrgs:         getEnvInt("CACHE_WARM_MAX_ORGS", 500),
			SmartWindowDays:     getEnvInt("CACHE_WARM_SMART_WINDOW_DAYS", 1),
			FullWindowDays:      getEnvInt("CACHE_WARM_FULL_WINDOW_DAYS", 30),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
			CooldownSec:      getEnvInt("BREAKER_COOLDOWN_SEC", 30),
			MaxCooldownSec:   getEnvInt("BREAKER_MAX_COOLDOWN_SEC", 300),
		},
		Metrics: MetricsConfig{
			K:             getEnvInt("METRICS_K", 5),
			MinSampleSize: getEnvInt("METRICS_MIN_SAMPLE_SIZE", 30),
			WindowDays:    getEnvInt("METRICS_WINDOW_DAYS", 7),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
