package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/cli"
	"github.com/garyjia/travel-approval/internal/config"
	"github.com/garyjia/travel-approval/internal/container"
	"github.com/garyjia/travel-approval/pkg/utils"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// operator output goes to stdout; keep logs on stderr at warn
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      "warn",
		OutputPath: "stderr",
		Format:     "console",
		Name:       "travelctl",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	containerCfg, err := cfg.ToContainerConfig()
	if err != nil {
		return err
	}
	// migrations run only through `travelctl migrate`
	containerCfg.Database.AutoMigrate = false
	containerCfg.Notification.Async = false

	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(context.Background()); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close container", zap.Error(err))
		}
	}()

	app, err := cli.NewApp(c)
	if err != nil {
		return err
	}
	return cli.NewRootCmd(app).Execute()
}

// configPath prefers TRAVEL_CONFIG, then the repository default when present
func configPath() string {
	if p := os.Getenv("TRAVEL_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}
