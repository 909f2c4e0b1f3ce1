package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
)

const receiveIDTypeOpenID = "open_id"

// Messenger implements port.MessageSender over the Lark IM API
type Messenger struct {
	api        messageCreator
	newRequest func(body *larkIm.CreateMessageReqBody) *larkIm.CreateMessageReq
	logger     *zap.Logger
}

// NewMessenger creates a new Lark message sender
func NewMessenger(client *Client, logger *zap.Logger) *Messenger {
	return &Messenger{
		api:        client.messages(),
		newRequest: openIDMessageRequest,
		logger:     logger,
	}
}

// openIDMessageRequest addresses body to an open_id receiver
func openIDMessageRequest(body *larkIm.CreateMessageReqBody) *larkIm.CreateMessageReq {
	return larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDTypeOpenID).
		Body(body).
		Build()
}

// textMessageBody builds a text message body for openID
func textMessageBody(openID, content string) (*larkIm.CreateMessageReqBody, error) {
	text, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return larkIm.NewCreateMessageReqBodyBuilder().
		ReceiveId(openID).
		MsgType(larkIm.MsgTypeText).
		Content(string(text)).
		Build(), nil
}

// SendMessage sends a text message to a user
func (m *Messenger) SendMessage(ctx context.Context, openID string, content string) error {
	if openID == "" {
		return errors.New("openID cannot be empty")
	}
	if content == "" {
		return errors.New("content cannot be empty")
	}

	body, err := textMessageBody(openID, content)
	if err != nil {
		return err
	}
	newRequest := m.newRequest
	if newRequest == nil {
		newRequest = openIDMessageRequest
	}

	resp, err := m.api.Create(ctx, newRequest(body))
	if err != nil {
		m.logger.Error("Failed to send message", zap.String("receive_id", openID), zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", openID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent", zap.String("message_id", messageID), zap.String("receive_id", openID))
	return nil
}

// LogSender records messages in the log instead of sending them.
// Used when Lark credentials are not configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only message sender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendMessage logs the message
func (s *LogSender) SendMessage(ctx context.Context, openID string, content string) error {
	s.logger.Info("Lark disabled, message not sent",
		zap.String("receive_id", openID),
		zap.String("content", content))
	return nil
}

var (
	_ port.MessageSender = (*Messenger)(nil)
	_ port.MessageSender = (*LogSender)(nil)
)
