// Package config collects runtime configuration from the environment. A
// local .env file is honored when present, which keeps the Lambda setup and
// local development on the same code path.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config is the environment-derived runtime configuration shared by the
// Lambda handlers, the demo console and the provisioning commands.
type Config struct {
	// Region is the AWS region for all service clients except Budgets,
	// which is pinned to us-east-1 by the Budgets API itself.
	Region string

	// ArtifactBucket holds the trained model and vocabulary artifacts.
	ArtifactBucket string
	ModelKey       string
	VocabKey       string

	// ProjectName prefixes Lambda function names, dashboards and alarms.
	ProjectName string
	// Environment tags custom metrics (Production, Staging, ...).
	Environment string

	// Endpoint URLs the demo console forwards requests to.
	GenerateURL  string
	AttentionURL string

	// HTTPTimeout bounds the console's outbound endpoint calls.
	HTTPTimeout time.Duration

	// ConsoleAddr is the demo console listen address.
	ConsoleAddr string
}

// Load reads configuration from the environment, falling back to the demo
// deployment's defaults. Missing .env files are not an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Region:         getenv("AWS_REGION", "eu-west-2"),
		ArtifactBucket: getenv("MODEL_BUCKET", "transformer-model-artifacts"),
		ModelKey:       getenv("MODEL_KEY", "models/model.bin"),
		VocabKey:       getenv("VOCAB_KEY", "models/vocab.json"),
		ProjectName:    getenv("PROJECT_NAME", "transformer-model"),
		Environment:    getenv("ENVIRONMENT", "Production"),
		GenerateURL:    getenv("GENERATE_URL", ""),
		AttentionURL:   getenv("ATTENTION_URL", ""),
		HTTPTimeout:    getenvDuration("HTTP_TIMEOUT", 30*time.Second),
		ConsoleAddr:    getenv("CONSOLE_ADDR", ":8080"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
