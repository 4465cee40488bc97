package repo

import (
	"context"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

// DirectoryRepo is the read side of the Feishu API
// Every call is a remote lookup; callers are expected to cache
type DirectoryRepo interface {
	// GetUserName resolves a user's display name by open_id
	GetUserName(ctx context.Context, openID string) (string, error)

	// GetChatMembers gets the list of chat members
	GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error)

	// GetBotIdentity gets the bot's own identity
	GetBotIdentity(ctx context.Context) (domain.BotIdentity, error)

	// GetImage downloads an image resource attached to a message
	GetImage(ctx context.Context, messageID, imageKey string) ([]byte, error)
}
