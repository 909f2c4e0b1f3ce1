package port

import (
	"context"
	"io"

	"github.com/garyjia/travel-approval/internal/domain/approval"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// MessageSender delivers a text message to a Lark user
type MessageSender interface {
	SendMessage(ctx context.Context, openID string, content string) error
}

// ChainSnapshot is everything rendered into an approval chain export.
// Flows are used when present, otherwise the resolution chain is rendered.
type ChainSnapshot struct {
	Application *entity.TravelApplication
	Requester   *entity.User
	Resolution  *approval.Result
	Flows       []*entity.TravelApprovalFlow
	Users       map[int64]*entity.User
}

// ChainExporter renders an approval chain snapshot
type ChainExporter interface {
	Write(data ChainSnapshot, w io.Writer) error
}
