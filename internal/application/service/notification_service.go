package service

import (
	"context"
	"fmt"

	"github.com/garyjia/travel-approval/internal/application/dispatcher"
	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/event"
)

// NotificationService sends Lark messages for application events
type NotificationService interface {
	// Register subscribes the notification handlers on the dispatcher
	Register(d dispatcher.Dispatcher)

	// Handle sends the message for a single event
	Handle(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	userRepo      port.UserRepository
	messageSender port.MessageSender
	logger        Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	userRepo port.UserRepository,
	messageSender port.MessageSender,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		userRepo:      userRepo,
		messageSender: messageSender,
		logger:        logger,
	}
}

var notifiedEvents = []event.Type{
	event.TypeApprovalRequested,
	event.TypeApplicationSelfApproved,
	event.TypeApprovalCompleted,
	event.TypeApplicationRejected,
	event.TypeApplicationCancelled,
}

// Register subscribes the notification handlers on the dispatcher
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	for _, t := range notifiedEvents {
		d.SubscribeNamed(t, "lark-notify-"+t.String(), s.Handle)
	}
}

// Handle sends the message for a single event
func (s *notificationServiceImpl) Handle(ctx context.Context, evt *event.Event) error {
	recipientKey, message := composeMessage(evt)
	if message == "" {
		return nil
	}

	userID := evt.GetPayloadInt(recipientKey)
	if userID == 0 {
		return nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load notification recipient", "error", err, "application_id", evt.ApplicationID, "user_id", userID)
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil || user.LarkOpenID == "" {
		s.logger.Warn("Notification recipient has no Lark account", "application_id", evt.ApplicationID, "user_id", userID)
		return nil
	}

	if err := s.messageSender.SendMessage(ctx, user.LarkOpenID, message); err != nil {
		s.logger.Error("Failed to send message", "error", err, "application_id", evt.ApplicationID, "open_id", user.LarkOpenID)
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Info("Notification sent",
		"application_id", evt.ApplicationID,
		"event_type", evt.Type.String(),
		"open_id", user.LarkOpenID,
	)
	return nil
}

// composeMessage returns the payload key of the recipient and the message text
func composeMessage(evt *event.Event) (string, string) {
	id := evt.ApplicationID
	switch evt.Type {
	case event.TypeApprovalRequested:
		return "approver_id", fmt.Sprintf("Travel application #%d is waiting for your %s approval.",
			id, evt.GetPayloadString("approval_level"))
	case event.TypeApplicationSelfApproved:
		return "employee_id", fmt.Sprintf("Travel application #%d was self-approved and sent to the travel desk.", id)
	case event.TypeApprovalCompleted:
		if !evt.GetPayloadBool("final") {
			return "", ""
		}
		return "employee_id", fmt.Sprintf("Travel application #%d is fully approved and sent to the travel desk.", id)
	case event.TypeApplicationRejected:
		msg := fmt.Sprintf("Travel application #%d was rejected at %s approval.", id, evt.GetPayloadString("approval_level"))
		if notes := evt.GetPayloadString("notes"); notes != "" {
			msg += " Notes: " + notes
		}
		return "employee_id", msg
	case event.TypeApplicationCancelled:
		return "approver_id", fmt.Sprintf("Travel application #%d was cancelled by the requester.", id)
	}
	return "", ""
}
