package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
)

type Config struct {
	ServerPort string
	AppEnv     string
	LogLevel   string

	JWTSecret string

	StoreBackend   string
	AWSRegion      string
	DynamoEndpoint string
	DynamoTable    string
	ScoopsTable    string
	ReportsTable   string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisURL string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	FirebaseCredentialsFile string

	OpenAIAPIKey string
	OpenAIModel  string

	StoreTimeout      time.Duration
	StoreAttempts     int
	FanoutConcurrency int
	SummaryCacheTTL   time.Duration
	PushWorkers       int
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		AppEnv:     getEnv("APP_ENV", "production"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		StoreBackend:   getEnv("STORE_BACKEND", BackendMemory),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		DynamoEndpoint: os.Getenv("DYNAMO_ENDPOINT"),
		DynamoTable:    getEnv("DYNAMO_TABLE", "scoop"),
		ScoopsTable:    os.Getenv("SCOOPS_TABLE"),
		ReportsTable:   os.Getenv("REPORTS_TABLE"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getEnv("DB_SSLMODE", "require"),

		RedisURL: os.Getenv("REDIS_URL"),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),

		FirebaseCredentialsFile: os.Getenv("FIREBASE_CREDENTIALS_FILE"),

		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		StoreTimeout:      time.Duration(getInt("STORE_TIMEOUT_MS", 1500)) * time.Millisecond,
		StoreAttempts:     getInt("STORE_ATTEMPTS", 2),
		FanoutConcurrency: getInt("FANOUT_CONCURRENCY", 8),
		SummaryCacheTTL:   time.Duration(getInt("SUMMARY_CACHE_TTL_SECONDS", 60)) * time.Second,
		PushWorkers:       getInt("PUSH_WORKERS", 2),
	}, nil
}

// IsDevelopment reports whether APP_ENV=development.
func (c *Config) IsDevelopment() bool { return c.AppEnv == "development" }

// ScoopsEnabled reports whether a scoops table is configured.
func (c *Config) ScoopsEnabled() bool { return c.ScoopsTable != "" }

// ReportsEnabled reports whether a reports table is configured.
func (c *Config) ReportsEnabled() bool { return c.ReportsTable != "" }

// MediaEnabled reports whether R2 credentials are present.
func (c *Config) MediaEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2BucketName != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
