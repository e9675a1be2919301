package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	Domains      []string
	CertCacheDir string
	HTTPPort     string
	HTTPSPort    string
	LogDir       string
	LogLevel     string

	LLMProvider          string
	LLMModel             string
	LLMTemperature       float64
	LLMMaxRetries        int
	LLMRetryDelay        time.Duration
	LLMRequestsPerSecond float64
	LLMBurst             int
	GoogleAPIKey         string
	OpenAIAPIKey         string
	AnthropicAPIKey      string

	EmbeddingProvider string
	EmbeddingModel    string
	VectorBackend     string
	IndexPath         string
	DatabaseURL       string
	ChunkSize         int
	ChunkOverlap      int
	FormTopK          int
	HazardTopK        int
	ChatTopK          int
	// ScoreThreshold is nil when retrieval has no similarity cutoff.
	ScoreThreshold *float64

	ValidatorPolicy      string
	DataServiceURL       string
	AggregatorConcurrent bool

	FormDBPath string
	DatasetDir string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioToNumbers  []string
}

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

func Load() Config {
	return Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		Domains:      getEnvAsList("DOMAIN", []string{"example.com"}),
		CertCacheDir: getEnv("CERT_CACHE_DIR", "/etc/letsencrypt/live/example.com"),
		HTTPPort:     getEnv("HTTP_PORT", "8086"),
		HTTPSPort:    getEnv("HTTPS_PORT", "443"),
		LogDir:       getEnv("LOG_DIR", "logs/coalmind"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		LLMProvider:          getEnv("LLM_PROVIDER", "gemini"),
		LLMModel:             getEnv("LLM_MODEL", "gemini-1.5-pro"),
		LLMTemperature:       getEnvAsFloat("LLM_TEMPERATURE", 0.2),
		LLMMaxRetries:        getEnvAsInt("LLM_MAX_RETRIES", 3),
		LLMRetryDelay:        time.Duration(getEnvAsInt("LLM_RETRY_DELAY", 5)) * time.Second,
		LLMRequestsPerSecond: getEnvAsFloat("LLM_REQUESTS_PER_SECOND", 2),
		LLMBurst:             getEnvAsInt("LLM_BURST", 4),
		GoogleAPIKey:         getEnv("GOOGLE_API_KEY", ""),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:      getEnv("ANTHROPIC_API_KEY", ""),

		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		VectorBackend:     getEnv("VECTOR_BACKEND", "file"),
		IndexPath:         getEnv("INDEX_PATH", "data/faiss_index"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		ChunkSize:         getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap:      getEnvAsInt("CHUNK_OVERLAP", 200),
		FormTopK:          getEnvAsInt("FORM_TOP_K", 5),
		HazardTopK:        getEnvAsInt("HAZARD_TOP_K", 3),
		ChatTopK:          getEnvAsInt("CHAT_TOP_K", 4),
		ScoreThreshold:    getEnvAsOptionalFloat("SCORE_THRESHOLD"),

		ValidatorPolicy:      getEnv("VALIDATOR_POLICY", "fail_closed"),
		DataServiceURL:       getEnv("DATA_SERVICE_URL", "http://localhost:8000"),
		AggregatorConcurrent: getEnvAsBool("AGGREGATOR_CONCURRENT", true),

		FormDBPath: getEnv("FORM_DB_PATH", "data/forms.db"),
		DatasetDir: getEnv("DATASET_DIR", "data/iot"),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioToNumbers:  getEnvAsList("TWILIO_TO_NUMBERS", nil),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsOptionalFloat(key string) *float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return &value
	}
	return nil
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
