// Package config manages the outlay configuration stored under
// <baseDir>/.outlay/: API endpoint, credentials, queue tuning, and the
// device identity sent with every command.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DirName is the per-project data directory
const DirName = ".outlay"

// Config is the per-project config stored at .outlay/config.json
type Config struct {
	APIURL        string `json:"api_url,omitempty"`
	AccountID     int64  `json:"account_id,omitempty"`
	Email         string `json:"email,omitempty"`
	DeviceID      string `json:"device_id,omitempty"`
	DrainInterval string `json:"drain_interval,omitempty"` // duration string, default "5s"
	MaxAttempts   *int   `json:"max_attempts,omitempty"`   // nil = default 8
}

const defaultAPIURL = "http://localhost:8080"

// LoadEnv loads a .env file from the base directory when one exists.
// Real environment variables win over file entries.
func LoadEnv(baseDir string) {
	path := filepath.Join(baseDir, ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// Dir returns the data directory under baseDir, creating it if necessary
func Dir(baseDir string) (string, error) {
	dir := filepath.Join(baseDir, DirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return dir, nil
}

// Load reads the config from .outlay/config.json. A missing file yields an
// empty config, not an error.
func Load(baseDir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, DirName, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config atomically: write to a temp file in the same
// directory, then rename over the target.
func Save(baseDir string, cfg *Config) error {
	dir, err := Dir(baseDir)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "config-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, "config.json"))
}

// APIURLOrDefault returns the command endpoint.
// Priority: OUTLAY_API_URL env > config.json > default.
func (c *Config) APIURLOrDefault() string {
	if v := os.Getenv("OUTLAY_API_URL"); v != "" {
		return v
	}
	if c.APIURL != "" {
		return c.APIURL
	}
	return defaultAPIURL
}

// APIKey returns the bearer token for the command endpoint.
// Priority: OUTLAY_API_KEY env only; keys are never written to disk.
func APIKey() string {
	return os.Getenv("OUTLAY_API_KEY")
}

// DrainIntervalOrDefault returns how often the background drain wakes.
// Priority: OUTLAY_DRAIN_INTERVAL env > config.json > 5s.
func (c *Config) DrainIntervalOrDefault() time.Duration {
	if v := os.Getenv("OUTLAY_DRAIN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	if c.DrainInterval != "" {
		if d, err := time.ParseDuration(c.DrainInterval); err == nil {
			return d
		}
	}
	return 5 * time.Second
}

// MaxAttemptsOrDefault returns the retry budget for transient failures.
// Priority: OUTLAY_MAX_ATTEMPTS env > config.json > 8.
func (c *Config) MaxAttemptsOrDefault() int {
	if v := os.Getenv("OUTLAY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	if c.MaxAttempts != nil && *c.MaxAttempts > 0 {
		return *c.MaxAttempts
	}
	return 8
}

// EnsureDeviceID returns the stored device ID, generating and persisting
// one on first use.
func EnsureDeviceID(baseDir string, cfg *Config) (string, error) {
	if cfg.DeviceID != "" {
		return cfg.DeviceID, nil
	}
	id, err := GenerateDeviceID()
	if err != nil {
		return "", err
	}
	cfg.DeviceID = id
	if err := Save(baseDir, cfg); err != nil {
		return "", err
	}
	return id, nil
}

// GenerateDeviceID creates a new random device ID (16 bytes hex)
func GenerateDeviceID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
