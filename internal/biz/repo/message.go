package repo

import (
	"context"
	"fmt"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

// OutboundMessage is one platform createMessage call
type OutboundMessage struct {
	ReceiveID string // chat id or user open id
	Format    domain.MsgFormat
	Content   string // JSON content for the given format
	UUID      string // idempotency key, reused across retries
}

// MessageRepo is the message repository interface
// Responsible for outbound writes to the Feishu API
type MessageRepo interface {
	// CreateMessage sends one message and returns the platform message id.
	// A non-zero platform result code is returned as *APIError.
	CreateMessage(ctx context.Context, msg OutboundMessage) (string, error)

	// AddReaction adds an emoji reaction and returns its reaction id
	AddReaction(ctx context.Context, msgID, emojiType string) (string, error)

	// RemoveReaction removes a reaction previously added by the bot
	RemoveReaction(ctx context.Context, msgID, reactionID string) error
}

// APIError is a platform call that completed with a non-zero result code
type APIError struct {
	Op   string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: code=%d msg=%s", e.Op, e.Code, e.Msg)
}
