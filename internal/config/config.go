// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir          string   // Base directory for all databases, always absolute
	Port             int      // HTTP listen port
	LogLevel         string   // debug, info, warn, error
	DevMode          bool     // Pretty logs, no response compression
	EarliestGameDate string   // Lower bound for playable game dates (YYYY-MM-DD)
	DefaultTickers   []string // Ticker list used when a request names none
	RoomRetention    int      // Days a finished room is kept before cleanup
	Backup           *BackupConfig
}

// BackupConfig holds nightly backup settings. S3 fields are optional; when
// the bucket is empty, backups stay local.
type BackupConfig struct {
	Enabled     bool
	Dir         string // Local backup directory (defaults under DataDir)
	Keep        int    // Number of archives retained locally and remotely
	S3Bucket    string
	S3Endpoint  string // Any S3-compatible endpoint; empty means AWS
	S3Region    string
	S3AccessKey string
	S3SecretKey string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("STOCKROOM_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("GO_PORT", 8000),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		EarliestGameDate: getEnv("EARLIEST_GAME_DATE", "2025-01-01"),
		DefaultTickers:   getEnvAsList("DEFAULT_TICKERS", "AAPL,AMZN,GOOG,MSFT,NVDA,TSLA"),
		RoomRetention:    getEnvAsInt("ROOM_RETENTION_DAYS", 30),
		Backup: &BackupConfig{
			Enabled:     getEnvAsBool("BACKUP_ENABLED", false),
			Dir:         getEnv("BACKUP_DIR", filepath.Join(absDataDir, "backups")),
			Keep:        getEnvAsInt("BACKUP_KEEP", 14),
			S3Bucket:    getEnv("S3_BUCKET", ""),
			S3Endpoint:  getEnv("S3_ENDPOINT", ""),
			S3Region:    getEnv("S3_REGION", "auto"),
			S3AccessKey: getEnv("S3_ACCESS_KEY_ID", ""),
			S3SecretKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabasePath returns the file path for a named database under DataDir.
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if len(c.EarliestGameDate) != len("2006-01-02") {
		return fmt.Errorf("EARLIEST_GAME_DATE must be YYYY-MM-DD, got %q", c.EarliestGameDate)
	}

	if len(c.DefaultTickers) == 0 {
		return fmt.Errorf("DEFAULT_TICKERS must name at least one ticker")
	}

	if c.Backup.Enabled && c.Backup.Keep < 1 {
		return fmt.Errorf("BACKUP_KEEP must be at least 1 when backups are enabled")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)

	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
