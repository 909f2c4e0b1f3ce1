// Package cli implements the travelctl operator commands.
package cli

import (
	"context"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/application/service"
	"github.com/garyjia/travel-approval/pkg/database"
)

// Migrator applies and reports schema migrations
type Migrator interface {
	Run(fsys fs.FS) error
	Status(fsys fs.FS) ([]database.MigrationStatus, error)
}

// App holds references to everything CLI commands call into.
type App struct {
	Travel     service.TravelService
	Export     service.ExportService
	Users      port.UserRepository
	Seeder     *Seeder
	Migrator   Migrator
	Migrations fs.FS
}

// NewRootCmd creates the top-level "travelctl" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "travelctl",
		Short:         "Travel approval operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCmd(app),
		newSeedCmd(app),
		newShowCmd(app),
		newResolveCmd(app),
		newExportCmd(app),
		newSubmitCmd(app),
		newActCmd(app),
	)

	return root
}

func parseApplicationID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid application id %q", raw)
	}
	return id, nil
}

// resolveActor accepts a numeric user id or an email address
func resolveActor(ctx context.Context, users port.UserRepository, raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("--as is required")
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if id <= 0 {
			return 0, fmt.Errorf("invalid user id %q", raw)
		}
		return id, nil
	}
	user, err := users.GetByEmail(ctx, raw)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, fmt.Errorf("user %s: %w", raw, port.ErrNotFound)
	}
	return user.ID, nil
}
