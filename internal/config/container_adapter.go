package config

import (
	"fmt"

	"github.com/garyjia/travel-approval/internal/container"
	"github.com/garyjia/travel-approval/internal/domain/approval"
	"github.com/garyjia/travel-approval/pkg/database"
)

// ToContainerConfig converts the file-based Config into the container's
// configuration, parsing the decimal thresholds on the way.
func (c *Config) ToContainerConfig() (*container.Config, error) {
	flight, err := c.Approval.FlightLimit()
	if err != nil {
		return nil, fmt.Errorf("approval.flight_amount_limit: %w", err)
	}
	distance, err := c.Approval.CarDistanceLimit()
	if err != nil {
		return nil, fmt.Errorf("approval.car_distance_limit_km: %w", err)
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Config: database.Config{
				Path:            c.Database.Path,
				MaxOpenConns:    c.Database.MaxOpenConns,
				MaxIdleConns:    c.Database.MaxIdleConns,
				ConnMaxLifetime: c.Database.ConnMaxLifetime,
				BusyTimeout:     c.Database.BusyTimeout,
			},
			MigrationsDir: c.Database.MigrationsDir,
			AutoMigrate:   c.Database.AutoMigrate,
		},
		Lark: container.LarkConfig{
			Enabled:   c.Lark.Enabled,
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
		},
		Approval: approval.Config{
			FlightAmountLimit:  flight,
			CarDistanceLimitKm: distance,
			DisposalMaxDays:    c.Approval.DisposalMaxDays,
			StrictEscalation:   c.Approval.StrictEscalation,
		},
		Notification: container.NotificationConfig{
			Enabled: c.Notification.Enabled,
			Async:   c.Notification.Async,
		},
	}, nil
}
