package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
)

// SessionUsecase keeps the session routing registry current
type SessionUsecase struct {
	sessionRepo repo.SessionRepo
	now         func() time.Time
}

// NewSessionUsecase creates a new session usecase
func NewSessionUsecase(sessionRepo repo.SessionRepo) *SessionUsecase {
	return &SessionUsecase{sessionRepo: sessionRepo, now: time.Now}
}

// RecordTurn creates or updates the session a turn belongs to
func (uc *SessionUsecase) RecordTurn(ctx context.Context, turn *domain.Turn) (*domain.Session, error) {
	session, err := uc.sessionRepo.Get(ctx, turn.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		session = &domain.Session{
			Key:       turn.SessionKey,
			AccountID: turn.AccountID,
			ChatID:    turn.ChatID,
			ChatType:  turn.ChatType,
		}
	}
	// group sessions are shared, so the sender tracks the latest speaker
	session.SenderID = turn.Sender.ID
	session.RecordTurn(turn)

	if err := uc.sessionRepo.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// List lists recent sessions of an account, or of all accounts
func (uc *SessionUsecase) List(ctx context.Context, accountID string, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	return uc.sessionRepo.List(ctx, accountID, limit)
}

// CleanupStale removes sessions idle for longer than maxIdle
func (uc *SessionUsecase) CleanupStale(ctx context.Context, maxIdle time.Duration) (int64, error) {
	if maxIdle <= 0 {
		return 0, nil
	}
	return uc.sessionRepo.CleanupStale(ctx, uc.now().Add(-maxIdle))
}
