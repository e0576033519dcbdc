package config

import (
	"os"
	"path/filepath"
)

type Config struct {
	Port        string
	Environment string
	DataDir     string
	DBPath      string // derived from DataDir unless overridden
	CORSOrigins string
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	dataDir := getEnv("LOOM_DATA_DIR", defaultDataDir())

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		DataDir:     dataDir,
		DBPath:      getEnv("LOOM_DB_PATH", filepath.Join(dataDir, "loom.db")),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		Debug:       getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// defaultDataDir places the database under the user's home directory,
// falling back to the working directory when home cannot be resolved.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".loom"
	}
	return filepath.Join(home, ".loom")
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
