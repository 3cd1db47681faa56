package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string
	DBPath     string

	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string

	// APIToken is the opaque bearer credential clients must present.
	APIToken string

	GatewayURL     string
	RequestTimeout time.Duration
}

func Load() *Config {
	godotenv.Load()

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8100"),
		DBPath:     getEnv("DB_PATH", "calliope.db"),

		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "http://localhost:11434/v1/"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "llama3.1:8b"),

		APIToken: getEnv("API_TOKEN", "dev-token-change-me"),

		GatewayURL:     getEnv("GATEWAY_URL", "http://localhost:8100"),
		RequestTimeout: parseDuration(getEnv("REQUEST_TIMEOUT", "30s")),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
