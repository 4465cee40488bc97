package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
)

// sessionRepo implements the Session repository
type sessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates the sessions table if needed and returns the repository
func NewSessionRepo(db *sql.DB) (repo.SessionRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_key TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			chat_type TEXT NOT NULL,
			sender_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			last_message_id TEXT NOT NULL DEFAULT '',
			turn_count INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sessions_account_updated ON sessions(account_id, updated_at)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &sessionRepo{db: db}, nil
}

const sessionColumns = `session_key, account_id, chat_id, chat_type, sender_id, created_at, updated_at, last_message_id, turn_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	var chatType string
	var createdAt, updatedAt int64
	if err := row.Scan(&s.Key, &s.AccountID, &s.ChatID, &chatType, &s.SenderID,
		&createdAt, &updatedAt, &s.LastMessageID, &s.TurnCount); err != nil {
		return nil, err
	}
	s.ChatType = domain.ChatType(chatType)
	s.CreatedAt = time.UnixMilli(createdAt)
	s.UpdatedAt = time.UnixMilli(updatedAt)
	return &s, nil
}

// Get gets a session by key
func (r *sessionRepo) Get(ctx context.Context, key string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_key = ?`, key)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return s, nil
}

// Save saves a session
func (r *sessionRepo) Save(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.Key,
		s.AccountID,
		s.ChatID,
		string(s.ChatType),
		s.SenderID,
		s.CreatedAt.UnixMilli(),
		s.UpdatedAt.UnixMilli(),
		s.LastMessageID,
		s.TurnCount,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// List lists sessions, most recently active first
func (r *sessionRepo) List(ctx context.Context, accountID string, limit int) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []any
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// CleanupStale cleans up stale sessions
func (r *sessionRepo) CleanupStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup stale sessions: %w", err)
	}
	return result.RowsAffected()
}
