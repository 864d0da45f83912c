package config

import (
	"os"
)

// Config holds the service endpoints and deployment settings resolved from
// the environment. Provisioning inputs themselves arrive separately, either
// as a structured document or as command-line flags.
type Config struct {
	KAIAddress     string
	WorkflowAPIURL string
	DockerNetwork  string
	KAIImage       string
	WorkerImage    string
	LogLevel       string
}

func Load() (*Config, error) {
	cfg := &Config{
		KAIAddress:     getEnv("KAI_ADDRESS", "http://localhost:8005"),
		WorkflowAPIURL: getEnv("WORKFLOW_API_URL", "http://localhost:8080"),
		DockerNetwork:  getEnv("DOCKER_NETWORK", "agentic_network"),
		KAIImage:       getEnv("KAI_IMAGE", "orbitai/kai-engine:latest"),
		WorkerImage:    getEnv("WORKER_IMAGE", "orbitai/orbit-worker:latest"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
