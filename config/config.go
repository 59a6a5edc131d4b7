package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	AI       AIConfig
	Session  SessionConfig
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

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the shared-files bucket name.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	FilesBucket          string
	PresignExpireMinutes int
}

// AIConfig holds the question generator provider settings. An empty APIKey
// switches the generator to the built-in question bank.
type AIConfig struct {
	APIKey string
	APIURL string
	Model  string
}

// SessionConfig tunes the session core.
type SessionConfig struct {
	TTLHours          int    // fixed time-to-live from creation
	SweepSpec         string // cron spec for the expiry sweeper
	CodeLength        int    // random alphanumerics after the prefix
	MaxCodeRetries    int    // allocation attempts before ResourceExhausted
	ListLimit         int    // cap on "list active" responses
	DefaultTimerSecs  int    // pomodoro default when start omits a duration
	CompetitionSize   int    // default competition capacity
	BotAccuracyPct    int    // synthetic opponent chance of a correct answer
}

// DSN returns the PostgreSQL connection string.
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
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "studyhive"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			FilesBucket:          getEnv("AWS_S3_FILES_BUCKET", "studyhive-shared-files"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		AI: AIConfig{
			APIKey: getEnv("AI_API_KEY", ""),
			APIURL: getEnv("AI_API_URL", "https://api.openai.com/v1/chat/completions"),
			Model:  getEnv("AI_MODEL", "gpt-4o-mini"),
		},
		Session: SessionConfig{
			TTLHours:         getEnvInt("SESSION_TTL_HOURS", 24),
			SweepSpec:        getEnv("SESSION_SWEEP_SPEC", "@every 1m"),
			CodeLength:       getEnvInt("SESSION_CODE_LENGTH", 6),
			MaxCodeRetries:   getEnvInt("SESSION_CODE_MAX_RETRIES", 10),
			ListLimit:        getEnvInt("SESSION_LIST_LIMIT", 50),
			DefaultTimerSecs: getEnvInt("SESSION_DEFAULT_TIMER_SEC", 1500),
			CompetitionSize:  getEnvInt("COMPETITION_DEFAULT_SIZE", 2),
			BotAccuracyPct:   getEnvInt("BOT_ACCURACY_PCT", 60),
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

// SplitTrim splits a comma-separated value, dropping empty entries.
func SplitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
