package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
)

// TypingEmoji is the reaction used as a typing indicator
const TypingEmoji = "Typing"

// SenderConfig configures outbound delivery
type SenderConfig struct {
	Capabilities domain.Capabilities
	ChunkLimit   int
	Retry        RetryPolicy
}

// Sender formats replies and delivers them with bounded retry
type Sender struct {
	messages repo.MessageRepo
	cfg      SenderConfig
	state    *AccountState
	observer Observer
	logger   *slog.Logger
}

// NewSender creates a sender. state and observer may be nil.
func NewSender(messages repo.MessageRepo, cfg SenderConfig, state *AccountState, observer Observer, logger *slog.Logger) *Sender {
	if cfg.ChunkLimit <= 0 {
		cfg.ChunkLimit = DefaultTextChunkLimit
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		messages: messages,
		cfg:      cfg,
		state:    state,
		observer: observer,
		logger:   logger.With("component", "sender"),
	}
}

// Capabilities returns the configured feature toggles
func (s *Sender) Capabilities() domain.Capabilities {
	return s.cfg.Capabilities
}

// Deliver renders reply and sends it to receiveID chunk by chunk.
// It stops at the first chunk whose retries are exhausted and returns
// the ids of the chunks sent so far together with the error.
func (s *Sender) Deliver(ctx context.Context, receiveID string, reply domain.ReplyPayload) ([]string, error) {
	if reply.Text == "" {
		return nil, nil
	}
	format := SelectFormat(reply, s.cfg.Capabilities)

	var ids []string
	for i, chunk := range SplitMessage(reply.Text, s.cfg.ChunkLimit) {
		content, err := BuildContent(format, chunk)
		if err != nil {
			s.recordError(err)
			return ids, err
		}
		msg := repo.OutboundMessage{
			ReceiveID: receiveID,
			Format:    format,
			Content:   content,
			UUID:      uuid.NewString(),
		}
		id, err := WithRetry(ctx, s.cfg.Retry, func(ctx context.Context, _ int) (string, error) {
			return s.messages.CreateMessage(ctx, msg)
		}, func(attempt int, err error) {
			s.observer.SendRetry()
			s.logger.Warn("send failed, retrying",
				"receive_id", receiveID, "chunk", i, "attempt", attempt, "error", err)
		})
		if err != nil {
			err = fmt.Errorf("send chunk %d: %w", i, err)
			s.recordError(err)
			return ids, err
		}
		ids = append(ids, id)
		s.observer.Outbound(string(format))
		if s.state != nil {
			s.state.RecordOutbound()
		}
	}
	return ids, nil
}

// React adds a reaction to msgID. Failures are logged and swallowed.
func (s *Sender) React(ctx context.Context, msgID, emoji string) {
	if !s.cfg.Capabilities.Reactions || msgID == "" || emoji == "" {
		return
	}
	if _, err := s.messages.AddReaction(ctx, msgID, emoji); err != nil {
		s.logger.Debug("reaction failed", "message_id", msgID, "emoji", emoji, "error", err)
		return
	}
	s.observer.Outbound("reaction")
}

// Typing marks msgID as being worked on when the typing toggle is on.
// The returned func clears the mark; it is always safe to call and
// failures to clear are logged and swallowed.
func (s *Sender) Typing(ctx context.Context, msgID string) (done func()) {
	noop := func() {}
	if !s.cfg.Capabilities.Typing || msgID == "" {
		return noop
	}
	reactionID, err := s.messages.AddReaction(ctx, msgID, TypingEmoji)
	if err != nil {
		s.logger.Debug("typing indicator failed", "message_id", msgID, "error", err)
		return noop
	}
	if reactionID == "" {
		return noop
	}
	return func() {
		if err := s.messages.RemoveReaction(ctx, msgID, reactionID); err != nil {
			s.logger.Debug("clear typing indicator failed", "message_id", msgID, "error", err)
		}
	}
}

func (s *Sender) recordError(err error) {
	s.observer.Error()
	if s.state != nil {
		s.state.RecordError(err)
	}
}
