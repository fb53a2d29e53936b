package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	NatsURL     string

	// Remote sandbox API. When APIKey is empty the local Docker
	// provider is used instead.
	SandboxAPIKey string
	SandboxAPIURL string

	// Image for the local Docker provider.
	SandboxImage string

	// Root directory under which each task gets its own workspace.
	WorkDirRoot string

	// Session timeout in seconds passed to the sandbox at creation.
	SessionTimeout int

	// Cap for text destined for the machine-facing summary.
	TruncateLimit int

	// Maximum accepted code size in bytes.
	MaxCodeLength int
}

func LoadConfig() Config {
	err := godotenv.Load(".env")
	if err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	return Config{
		Environment: getEnv("ENVIRONMENT", "production"),
		NatsURL:     getEnv("NATSURL", "nats://localhost:4222"),

		SandboxAPIKey: getEnv("SANDBOXAPIKEY", ""),
		SandboxAPIURL: getEnv("SANDBOXAPIURL", ""),
		SandboxImage:  getEnv("SANDBOXIMAGE", "interpreter-worker"),

		WorkDirRoot: getEnv("WORKDIRROOT", "work_dir"),

		SessionTimeout: getEnvInt("SESSIONTIMEOUT", 36000),
		TruncateLimit:  getEnvInt("TRUNCATELIMIT", 1000),
		MaxCodeLength:  getEnvInt("MAXCODELENGTH", 100000),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
