package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port          string
	Env           string
	PublicBaseURL string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Language models
	LLMProvider      string // "openai" | "gemini"
	HostedModel      string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GeminiAPIKey     string
	TestEnvironment  bool
	ModelConcurrency int // concurrent hosted model streams per process

	// Storage
	StorageType    string // "local" | "minio"
	StoragePath    string
	UploadMaxBytes int64
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Workers
	WorkerCount int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	testEnv := isTestEnvironment()

	cfg := &Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		Env:             getEnvOrDefault("ENV", "development"),
		DatabaseURL:     mustGetEnv("DATABASE_URL"),
		RedisURL:        mustGetEnv("REDIS_URL"),
		JWTSecret:       mustGetEnv("JWT_SECRET"),
		LLMProvider:     strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "openai")),
		HostedModel:     getEnvOrDefault("HOSTED_MODEL", ""),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnvOrDefault("OPENAI_BASE_URL", ""),
		GeminiAPIKey:    getEnvOrDefault("GEMINI_API_KEY", ""),
		TestEnvironment: testEnv,
		StorageType:     getEnvOrDefault("STORAGE_TYPE", "local"),
		StoragePath:     getEnvOrDefault("STORAGE_PATH", "./uploads"),
		UploadMaxBytes:  int64(getEnvAsIntOrDefault("UPLOAD_MAX_BYTES", 5*1024*1024)),
		MinioEndpoint:   getEnvOrDefault("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:  getEnvOrDefault("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  getEnvOrDefault("MINIO_SECRET_KEY", ""),
		MinioBucket:     getEnvOrDefault("MINIO_BUCKET", "memos"),
		MinioUseSSL:     getEnvAsBoolOrDefault("MINIO_USE_SSL", false),
		WorkerCount:     getEnvAsIntOrDefault("WORKER_COUNT", 3),
		FrontendURL:     getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
	}
	cfg.PublicBaseURL = getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:"+cfg.Port)
	cfg.ModelConcurrency = getEnvAsIntOrDefault("MODEL_CONCURRENCY", 4)

	// Hosted credentials are only required outside of test runs
	if !testEnv {
		switch cfg.LLMProvider {
		case "gemini":
			cfg.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
		default:
			cfg.OpenAIAPIKey = mustGetEnv("OPENAI_API_KEY")
		}
	}

	return cfg
}

// isTestEnvironment mirrors the flags end-to-end runs set.
func isTestEnvironment() bool {
	return getEnvAsBoolOrDefault("APP_TEST_MODE", false) ||
		os.Getenv("PLAYWRIGHT_TEST_BASE_URL") != "" ||
		os.Getenv("PLAYWRIGHT") != "" ||
		os.Getenv("CI_PLAYWRIGHT") != ""
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
