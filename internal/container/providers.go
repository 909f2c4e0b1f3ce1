package container

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/directory"
	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/policy"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/application/service"
	"github.com/garyjia/travel-approval/internal/application/workflow"
	"github.com/garyjia/travel-approval/internal/domain/approval"
	infraLark "github.com/garyjia/travel-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/travel-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/travel-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-approval/internal/infrastructure/report"
	"github.com/garyjia/travel-approval/migrations"
	"github.com/garyjia/travel-approval/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Database       *database.DB
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// WorkflowBundle holds the status and flow engines.
type WorkflowBundle struct {
	States workflow.StateEngine
	Flows  workflow.FlowEngine
}

// ServiceDeps holds the dependencies of the application services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Resolver   *approval.Resolver
	Workflow   *WorkflowBundle
	Dispatcher dispatcher.Dispatcher
	Messenger  port.MessageSender
	Exporter   port.ChainExporter
	Logger     *zap.Logger
}

// ProvideDatabase opens the database, applies pending migrations when
// configured and wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(cfg.Config, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := database.NewMigrator(db, logger).Run(MigrationSource(cfg)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		Database:       db,
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// MigrationSource returns the configured migrations directory, or the
// migrations embedded in the binary.
func MigrationSource(cfg *DatabaseConfig) fs.FS {
	if cfg != nil && cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Application: repository.NewApplicationRepository(sqlDB, logger),
		Trip:        repository.NewTripRepository(sqlDB, logger),
		Flow:        repository.NewFlowRepository(sqlDB, logger),
		User:        repository.NewUserRepository(sqlDB, logger),
		Role:        repository.NewRoleRepository(sqlDB, logger),
		Policy:      repository.NewPolicyRepository(sqlDB, logger),
		Matrix:      repository.NewMatrixRepository(sqlDB, logger),
		History:     repository.NewHistoryRepository(sqlDB, logger),
	}, nil
}

// ProvideMessageSender returns the Lark messenger when Lark is enabled and a
// log-only sender otherwise.
func ProvideMessageSender(cfg *LarkConfig, logger *zap.Logger) (port.MessageSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if !cfg.Enabled {
		logger.Info("Lark disabled, notifications are only logged")
		return infraLark.NewLogSender(logger), nil
	}

	client := infraLark.NewClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
	}, logger)
	return infraLark.NewMessenger(client, logger), nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *NotificationConfig, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []dispatcher.Option{dispatcher.WithLogger(NewLogger(logger.Named("dispatcher")))}
	if cfg != nil && !cfg.Async {
		opts = append(opts, dispatcher.WithSyncPublish())
	}
	return dispatcher.NewDispatcher(opts...), nil
}

// ProvideResolver wires the approval resolver to the policy tables and the
// role directory.
func ProvideResolver(repos *RepositoryBundle, cfg approval.Config, logger *zap.Logger) (*approval.Resolver, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	log := NewLogger(logger.Named("approval"))
	return approval.NewResolver(
		policy.NewSource(repos.Policy, repos.Matrix, log),
		directory.New(repos.User, repos.Role),
		cfg,
		log,
	), nil
}

// ProvideWorkflow creates the application state engine and the approval
// flow engine on top of it.
func ProvideWorkflow(repos *RepositoryBundle, txManager port.TransactionManager, disp dispatcher.Dispatcher) (*WorkflowBundle, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if txManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}

	states := workflow.NewStateEngine(
		repos.Application,
		repos.Trip,
		repos.Flow,
		repos.History,
		txManager,
		workflow.WithDispatcher(disp),
	)
	flows := workflow.NewFlowEngine(repos.Application, repos.Flow, txManager, states)

	return &WorkflowBundle{States: states, Flows: flows}, nil
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil || deps.Workflow == nil || deps.Resolver == nil {
		return nil, fmt.Errorf("repositories, workflow and resolver are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	log := NewLogger(deps.Logger.Named("service"))
	repos := deps.Repos

	travel := service.NewTravelService(
		repos.Application,
		repos.Trip,
		repos.User,
		repos.Role,
		repos.Flow,
		repos.History,
		deps.TxManager,
		deps.Resolver,
		deps.Workflow.States,
		deps.Workflow.Flows,
		deps.Dispatcher,
		log,
	)

	bundle := &ServiceBundle{
		Travel: travel,
		Export: service.NewExportService(travel, repos.User, deps.Exporter, log),
	}
	if deps.Messenger != nil {
		bundle.Notification = service.NewNotificationService(repos.User, deps.Messenger, log)
	}
	return bundle, nil
}

// ProvideExporter creates the xlsx approval chain report.
func ProvideExporter(logger *zap.Logger) *report.ChainReport {
	return report.NewChainReport(logger.Named("report"))
}
