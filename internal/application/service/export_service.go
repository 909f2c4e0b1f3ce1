package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/approval"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// ExportService renders approval chains for offline review
type ExportService interface {
	// Snapshot collects the application, its flows and the approvers involved.
	// Applications without persisted flows carry a preview resolution instead.
	Snapshot(ctx context.Context, applicationID int64) (*port.ChainSnapshot, error)

	// Export writes the snapshot through the configured exporter
	Export(ctx context.Context, applicationID int64, w io.Writer) error
}

type exportServiceImpl struct {
	travel   TravelService
	userRepo port.UserRepository
	exporter port.ChainExporter
	logger   Logger
}

// NewExportService creates a new ExportService
func NewExportService(
	travel TravelService,
	userRepo port.UserRepository,
	exporter port.ChainExporter,
	logger Logger,
) ExportService {
	return &exportServiceImpl{
		travel:   travel,
		userRepo: userRepo,
		exporter: exporter,
		logger:   logger,
	}
}

// Snapshot collects everything the exporter renders
func (s *exportServiceImpl) Snapshot(ctx context.Context, applicationID int64) (*port.ChainSnapshot, error) {
	app, err := s.travel.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	snapshot := &port.ChainSnapshot{
		Application: app,
		Users:       make(map[int64]*entity.User),
	}

	if snapshot.Requester, err = s.user(ctx, snapshot.Users, app.EmployeeID); err != nil {
		return nil, err
	}

	if snapshot.Flows, err = s.travel.Flows(ctx, applicationID); err != nil {
		return nil, fmt.Errorf("failed to load flows: %w", err)
	}
	for _, flow := range snapshot.Flows {
		if _, err := s.user(ctx, snapshot.Users, flow.ApproverID); err != nil {
			return nil, err
		}
	}

	if len(snapshot.Flows) > 0 || app.BookingCount() == 0 {
		return snapshot, nil
	}

	result, err := s.travel.Preview(ctx, applicationID)
	switch {
	case err == nil:
		snapshot.Resolution = result
	case errors.Is(err, approval.ErrConfiguration), errors.Is(err, approval.ErrValidation):
		// export what exists; the chain sheet stays empty
		s.logger.Warn("Chain preview unavailable for export", "application_id", applicationID, "error", err)
	default:
		return nil, err
	}
	return snapshot, nil
}

// Export writes the approval chain for the application to w
func (s *exportServiceImpl) Export(ctx context.Context, applicationID int64, w io.Writer) (err error) {
	ctx, done := trackOperation(ctx, "ExportService.Export", attribute.Int64("application.id", applicationID))
	defer func() { done(err) }()

	snapshot, err := s.Snapshot(ctx, applicationID)
	if err != nil {
		return err
	}
	if err := s.exporter.Write(*snapshot, w); err != nil {
		s.logger.Error("Failed to export approval chain", "application_id", applicationID, "error", err)
		return err
	}

	s.logger.Info("Approval chain exported",
		"application_id", applicationID,
		"flows", len(snapshot.Flows),
		"previewed", snapshot.Resolution != nil,
	)
	return nil
}

// user loads a user once per snapshot
func (s *exportServiceImpl) user(ctx context.Context, cache map[int64]*entity.User, id int64) (*entity.User, error) {
	if u, ok := cache[id]; ok {
		return u, nil
	}
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	cache[id] = u
	return u, nil
}
