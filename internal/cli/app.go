package cli

import (
	"fmt"

	"github.com/garyjia/travel-approval/internal/container"
	"github.com/garyjia/travel-approval/pkg/database"
)

// NewApp wires an App from a started container
func NewApp(c *container.Container) (*App, error) {
	if !c.Ready() {
		return nil, fmt.Errorf("container is not started")
	}

	repos := c.Repositories()
	services := c.Services()
	cfg := c.Config()

	return &App{
		Travel: services.Travel,
		Export: services.Export,
		Users:  repos.User,
		Seeder: NewSeeder(
			repos.User,
			repos.Role,
			repos.Policy,
			repos.Matrix,
			repos.Application,
			repos.Trip,
			c.DB(),
		),
		Migrator:   database.NewMigrator(c.Database(), c.Logger()),
		Migrations: container.MigrationSource(&cfg.Database),
	}, nil
}
