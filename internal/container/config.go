// Package container provides dependency injection and lifecycle management
// for the travel approval service.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/travel-approval/internal/domain/approval"
	"github.com/garyjia/travel-approval/pkg/database"
)

// Config holds all configuration for the Container.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Lark API configuration
	Lark LarkConfig

	// Approval fallback thresholds
	Approval approval.Config

	// Notification delivery
	Notification NotificationConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	database.Config

	// MigrationsDir is read instead of the embedded migrations when set
	MigrationsDir string

	// AutoMigrate applies pending migrations on start
	AutoMigrate bool
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	// Enabled switches from the log-only sender to real Lark messages
	Enabled bool

	AppID     string
	AppSecret string
}

// NotificationConfig holds notification settings.
type NotificationConfig struct {
	Enabled bool
	Async   bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Config: database.Config{
				Path:            "data/travel.db",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
				BusyTimeout:     5 * time.Second,
			},
			AutoMigrate: true,
		},
		Approval: approval.DefaultConfig(),
		Notification: NotificationConfig{
			Enabled: true,
			Async:   true,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required")
		}
	}

	if c.Approval.FlightAmountLimit.IsNegative() || c.Approval.CarDistanceLimitKm.IsNegative() {
		return fmt.Errorf("approval thresholds must not be negative")
	}

	return nil
}
