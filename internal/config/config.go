package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend kinds selectable via STORAGE_BACKEND.
const (
	BackendFirestore = "firestore"
	BackendSQLite    = "sqlite"
)

// Config holds all configuration for the application. The storage backend is
// chosen here exactly once, at load time; nothing re-probes it per call.
type Config struct {
	Port      string `mapstructure:"PORT"`
	GinMode   string `mapstructure:"GIN_MODE"`
	ClientURL string `mapstructure:"CLIENT_URL"`

	// StorageBackend selects the adapter: "firestore" or "sqlite".
	StorageBackend string `mapstructure:"STORAGE_BACKEND"`

	FirebaseProjectID            string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`

	SQLitePath string `mapstructure:"SQLITE_PATH"`

	// PollIntervalSeconds bounds subscription staleness on backends without
	// a push channel.
	PollIntervalSeconds int `mapstructure:"POLL_INTERVAL_SECONDS"`

	// RequireAuth guards the proxied store routes with Firebase ID-token
	// verification. Disable only for local development.
	RequireAuth bool `mapstructure:"REQUIRE_AUTH"`
}

// PollInterval returns the configured poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// LoadConfig loads configuration from environment variables using Viper.
func LoadConfig() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("GIN_MODE", "debug")
	viper.SetDefault("STORAGE_BACKEND", BackendSQLite)
	viper.SetDefault("SQLITE_PATH", "docuport.db")
	viper.SetDefault("POLL_INTERVAL_SECONDS", 2)
	viper.SetDefault("REQUIRE_AUTH", true)

	viper.BindEnv("PORT")
	viper.BindEnv("GIN_MODE")
	viper.BindEnv("CLIENT_URL")
	viper.BindEnv("STORAGE_BACKEND")
	viper.BindEnv("FIREBASE_PROJECT_ID")
	viper.BindEnv("GOOGLE_APPLICATION_CREDENTIALS")
	viper.BindEnv("SQLITE_PATH")
	viper.BindEnv("POLL_INTERVAL_SECONDS")
	viper.BindEnv("REQUIRE_AUTH")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	switch cfg.StorageBackend {
	case BackendFirestore:
		if cfg.FirebaseProjectID == "" {
			return nil, errors.New("FIREBASE_PROJECT_ID is required when STORAGE_BACKEND=firestore")
		}
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLITE_PATH is required when STORAGE_BACKEND=sqlite")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q (want %q or %q)",
			cfg.StorageBackend, BackendFirestore, BackendSQLite)
	}
	if cfg.PollIntervalSeconds <= 0 {
		return nil, errors.New("POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.RequireAuth && cfg.FirebaseProjectID == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID is required when REQUIRE_AUTH is enabled")
	}

	return &cfg, nil
}
