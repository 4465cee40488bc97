package repo

import (
	"context"
	"time"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

// SessionRepo is the session repository interface
// Responsible for session routing persistence (SQLite)
type SessionRepo interface {
	// Get gets a session by key, nil if absent
	Get(ctx context.Context, key string) (*domain.Session, error)

	// Save saves a session (create or update)
	Save(ctx context.Context, session *domain.Session) error

	// List lists sessions ordered by most recent activity.
	// An empty accountID lists every account.
	List(ctx context.Context, accountID string, limit int) ([]*domain.Session, error)

	// CleanupStale deletes sessions not updated since before
	CleanupStale(ctx context.Context, before time.Time) (int64, error)
}

// AccountStateRepo persists account snapshots for offline inspection
type AccountStateRepo interface {
	SaveSnapshot(ctx context.Context, snap domain.AccountSnapshot) error
	ListSnapshots(ctx context.Context) ([]domain.AccountSnapshot, error)
}
