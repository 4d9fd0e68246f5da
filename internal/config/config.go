package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server  ServerConfig
	MongoDB MongoDBConfig
	Barcode BarcodeConfig
	Scan    ScanConfig
	Session SessionConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// MongoDBConfig holds settings for the shared MongoDB store.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// BarcodeConfig points at the external barcode-decoding API.
type BarcodeConfig struct {
	BaseURL string
}

// ScanConfig holds the timing knobs of the scan/confirm loop.
type ScanConfig struct {
	// ConfirmWindow is the grace period before a resolved scan auto-confirms.
	ConfirmWindow time.Duration
	// CountdownTick drives the fine-grained visible countdown.
	CountdownTick time.Duration
	// RefreshInterval is the background reconciliation period.
	RefreshInterval time.Duration
}

// SessionConfig holds local session-restoration settings.
type SessionConfig struct {
	// FilePath stores the last selected event between runs.
	FilePath string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	confirmWindow, err := durationEnv("SCAN_CONFIRM_WINDOW", 5*time.Second)
	if err != nil {
		return nil, err
	}
	countdownTick, err := durationEnv("SCAN_COUNTDOWN_TICK", 100*time.Millisecond)
	if err != nil {
		return nil, err
	}
	refreshInterval, err := durationEnv("LIST_REFRESH_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "lendscan"),
		},
		Barcode: BarcodeConfig{
			BaseURL: getenvWithDefault("BARCODE_API_URL", "http://localhost:8081"),
		},
		Scan: ScanConfig{
			ConfirmWindow:   confirmWindow,
			CountdownTick:   countdownTick,
			RefreshInterval: refreshInterval,
		},
		Session: SessionConfig{
			FilePath: getenvWithDefault("SESSION_FILE", ".lendscan-session.json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated and sane.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch {
	case c.MongoDB.URI == "":
		return errors.New("MONGODB_URI must be provided")
	case c.MongoDB.DBName == "":
		return errors.New("MONGODB_DB_NAME must be provided")
	}

	if c.Barcode.BaseURL == "" {
		return errors.New("BARCODE_API_URL must be provided")
	}

	if c.Scan.ConfirmWindow <= 0 {
		return errors.New("SCAN_CONFIRM_WINDOW must be positive")
	}
	if c.Scan.CountdownTick <= 0 || c.Scan.CountdownTick >= c.Scan.ConfirmWindow {
		return errors.New("SCAN_COUNTDOWN_TICK must be positive and shorter than the confirm window")
	}
	if c.Scan.RefreshInterval <= 0 {
		return errors.New("LIST_REFRESH_INTERVAL must be positive")
	}

	if c.Session.FilePath == "" {
		return errors.New("SESSION_FILE must be provided")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration in %s: %w", key, err)
	}
	return d, nil
}
