package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Storage of per-day conversation collections
	DataDir      string
	SourceDir    string
	StoreBackend string
	S3Bucket     string
	S3Prefix     string

	// Day-file locking
	LockBackend   string
	LockTimeout   time.Duration
	LockTTL       time.Duration
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Classification
	Classifier    string
	LLMProvider   string
	LLMTimeout    time.Duration
	LLMMaxTokens  int
	BedrockModel  string
	GeminiAPIKey  string
	GeminiModelID string
	RulesFile     string

	// Batch analyzer
	OnlySaveRiskItems   bool
	AnalyzerConcurrency int
	AnalyzerRetries     int
	AnalyzerQueueURL    string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	DatabaseURL        string
	CORSAllowedOrigins []string

	// Review endpoint rate limit per client; 0 disables it.
	ReviewRateLimit float64
	ReviewRateBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "5000"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataDir:      getEnv("DATA_DIR", "source/processed_result"),
		SourceDir:    getEnv("SOURCE_DIR", "data"),
		StoreBackend: strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", "fs"))),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3Prefix:     getEnv("S3_PREFIX", "processed"),

		LockBackend:   strings.ToLower(strings.TrimSpace(getEnv("LOCK_BACKEND", "local"))),
		LockTimeout:   getEnvAsDuration("LOCK_TIMEOUT", 5*time.Second),
		LockTTL:       getEnvAsDuration("LOCK_TTL", 30*time.Second),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		Classifier:    strings.ToLower(strings.TrimSpace(getEnv("CLASSIFIER", "rules"))),
		LLMProvider:   strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "bedrock"))),
		LLMTimeout:    getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		LLMMaxTokens:  getEnvAsInt("LLM_MAX_TOKENS", 1024),
		BedrockModel:  getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		RulesFile:     getEnv("RULES_FILE", ""),

		OnlySaveRiskItems:   getEnvAsBool("ONLY_SAVE_RISK_ITEMS", false),
		AnalyzerConcurrency: getEnvAsInt("ANALYZER_CONCURRENCY", 1),
		AnalyzerRetries:     getEnvAsInt("ANALYZER_RETRIES", 0),
		AnalyzerQueueURL:    getEnv("ANALYZER_QUEUE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		DatabaseURL:        getEnv("DATABASE_URL", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		ReviewRateLimit: getEnvAsFloat("REVIEW_RATE_LIMIT", 5),
		ReviewRateBurst: getEnvAsInt("REVIEW_RATE_BURST", 10),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
