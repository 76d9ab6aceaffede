package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"labelflow"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"labelflow"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"redis:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	EnableAPI              bool   `envconfig:"ENABLE_API" default:"true"`
	EnableAssignmentWorker bool   `envconfig:"ENABLE_ASSIGNMENT_WORKER" default:"true"`
	AssignmentConcurrency  int    `envconfig:"ASSIGNMENT_CONCURRENCY" default:"8"`
	AssignmentMaxAttempts  uint16 `envconfig:"ASSIGNMENT_MAX_ATTEMPTS" default:"5"`
	MigrationPath          string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Model providers; keys seed the settings table when it has none.
	DefaultProvider   string        `envconfig:"DEFAULT_PROVIDER" default:"gemini"`
	DefaultModel      string        `envconfig:"DEFAULT_MODEL" default:"gemini-1.5-flash"`
	GeminiAPIKey      string        `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey      string        `envconfig:"OPENAI_API_KEY"`
	CohereAPIKey      string        `envconfig:"COHERE_API_KEY"`
	CompletionTimeout time.Duration `envconfig:"COMPLETION_TIMEOUT" default:"60s"`

	// Sessions
	SessionTTL           time.Duration `envconfig:"SESSION_TTL" default:"2h"`
	SessionSweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"5m"`
	WorkerPoolCacheTTL   time.Duration `envconfig:"WORKER_POOL_CACHE_TTL" default:"10m"`
	MaxCSVSizeMB         int64         `envconfig:"MAX_CSV_SIZE_MB" default:"10"`

	// Server
	ServerPort         int    `envconfig:"SERVER_PORT" default:"8081"`
	GenerationLogPath  string `envconfig:"GENERATION_LOG_PATH" default:"data/logs/generation.log"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell take precedence; a missing .env is fine.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.NSQDHost == "" {
		return fmt.Errorf("%w: NSQD_HOST", ErrMissingRequired)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("%w: SESSION_TTL must be positive", ErrMissingRequired)
	}
	return nil
}
