package data

import (
	"context"
	"errors"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
	"github.com/DevRickLin/feishu-relay/internal/infra/feishu"
)

// feishuRepo implements the message and directory repositories over the
// Feishu API client
type feishuRepo struct {
	client *feishu.Client
}

// FeishuRepo is both the outbound and the lookup side of one account
type FeishuRepo interface {
	repo.MessageRepo
	repo.DirectoryRepo
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client *feishu.Client) FeishuRepo {
	return &feishuRepo{client: client}
}

// CreateMessage sends one message
func (r *feishuRepo) CreateMessage(ctx context.Context, msg repo.OutboundMessage) (string, error) {
	id, err := r.client.CreateMessage(ctx, msg.ReceiveID, string(msg.Format), msg.Content, msg.UUID)
	return id, toRepoError(err)
}

// AddReaction adds an emoji reaction
func (r *feishuRepo) AddReaction(ctx context.Context, msgID, emojiType string) (string, error) {
	id, err := r.client.AddReaction(ctx, msgID, emojiType)
	return id, toRepoError(err)
}

// RemoveReaction removes a reaction by id
func (r *feishuRepo) RemoveReaction(ctx context.Context, msgID, reactionID string) error {
	return toRepoError(r.client.RemoveReaction(ctx, msgID, reactionID))
}

// GetUserName resolves a user's display name
func (r *feishuRepo) GetUserName(ctx context.Context, openID string) (string, error) {
	name, err := r.client.GetUserName(ctx, openID)
	return name, toRepoError(err)
}

// GetChatMembers gets chat member list
func (r *feishuRepo) GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error) {
	members, err := r.client.GetChatMembers(ctx, chatID)
	if err != nil {
		return nil, toRepoError(err)
	}

	result := make([]domain.Member, 0, len(members))
	for _, m := range members {
		result = append(result, domain.Member{
			UserID: m.MemberID,
			Name:   m.Name,
		})
	}
	return result, nil
}

// GetBotIdentity gets the bot's own identity
func (r *feishuRepo) GetBotIdentity(ctx context.Context) (domain.BotIdentity, error) {
	id, err := r.client.ProbeBot(ctx)
	return id, toRepoError(err)
}

// GetImage downloads an image attached to a message
func (r *feishuRepo) GetImage(ctx context.Context, messageID, imageKey string) ([]byte, error) {
	data, err := r.client.DownloadResource(ctx, messageID, imageKey, "image")
	return data, toRepoError(err)
}

// toRepoError maps platform result codes onto repo.APIError
func toRepoError(err error) error {
	var apiErr *feishu.APIError
	if errors.As(err, &apiErr) {
		return &repo.APIError{Op: apiErr.Op, Code: apiErr.Code, Msg: apiErr.Msg}
	}
	return err
}
