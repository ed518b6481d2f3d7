package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// envFiles are tried in order; every file found is loaded. godotenv never
// overrides variables already present in the process environment.
var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads KEY=VALUE pairs from the supported dotenv files.
func loadEnvFiles() {
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Failed to load environment file", "file", name, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "file", name)
	}
}

// applyEnvOverrides fills fields that are conventionally provided through the environment.
func applyEnvOverrides(cfg *Config) {
	if cfg.Backend.GitHubRepo == "" {
		cfg.Backend.GitHubRepo = os.Getenv("GITHUB_REPO")
	}
	// The backend switch is meant for CI overrides, so it wins over the file.
	if v := os.Getenv("DOCS2STATIC_BACKEND"); v != "" {
		cfg.Backend.Type = v
	}
	if v := os.Getenv("DOCS2STATIC_NATS_URL"); v != "" && cfg.Events.NATSURL == "" {
		cfg.Events.NATSURL = v
	}
}
