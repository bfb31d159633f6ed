package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DatabaseFileName is the fixed name of the on-device store file.
const DatabaseFileName = "safiri.db"

// Config carries runtime settings loaded from the environment.
type Config struct {
	AppEnv           string
	LogLevel         string
	DBPath           string
	HTTPListenAddr   string
	MetricsNamespace string
	SeedDemoData     bool
}

// Load reads configuration from environment variables, applying defaults
// where unset. The database path defaults to the app's private config
// directory so nothing outside this application touches the file.
func Load() (Config, error) {
	cfg := Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DBPath:           strings.TrimSpace(os.Getenv("SAFIRI_DB_PATH")),
		HTTPListenAddr:   getEnv("HTTP_LISTEN_ADDR", "127.0.0.1:9090"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "safiri"),
		SeedDemoData:     getEnvBool("SEED_DEMO_DATA", true),
	}

	if cfg.DBPath == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve config dir: %w", err)
		}
		cfg.DBPath = filepath.Join(base, "safiri", DatabaseFileName)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
