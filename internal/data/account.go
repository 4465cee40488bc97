package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
)

// accountRepo persists account snapshots
type accountRepo struct {
	db *sql.DB
}

// NewAccountRepo creates the account_snapshots table if needed
func NewAccountRepo(db *sql.DB) (repo.AccountStateRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS account_snapshots (
			account_id TEXT PRIMARY KEY,
			configured INTEGER NOT NULL DEFAULT 0,
			running INTEGER NOT NULL DEFAULT 0,
			connected INTEGER NOT NULL DEFAULT 0,
			last_inbound_at INTEGER NOT NULL DEFAULT 0,
			last_outbound_at INTEGER NOT NULL DEFAULT 0,
			last_start_at INTEGER NOT NULL DEFAULT 0,
			last_stop_at INTEGER NOT NULL DEFAULT 0,
			message_count INTEGER NOT NULL DEFAULT 0,
			error_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create account_snapshots table: %w", err)
	}
	return &accountRepo{db: db}, nil
}

// SaveSnapshot stores the latest snapshot of an account
func (r *accountRepo) SaveSnapshot(ctx context.Context, s domain.AccountSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO account_snapshots (
			account_id, configured, running, connected, last_inbound_at, last_outbound_at,
			last_start_at, last_stop_at, message_count, error_count, last_error, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.AccountID, s.Configured, s.Running, s.Connected,
		toMillis(s.LastInboundAt), toMillis(s.LastOutboundAt),
		toMillis(s.LastStartAt), toMillis(s.LastStopAt),
		s.MessageCount, s.ErrorCount, s.LastError, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save account snapshot: %w", err)
	}
	return nil
}

// ListSnapshots lists every stored snapshot ordered by account id
func (r *accountRepo) ListSnapshots(ctx context.Context) ([]domain.AccountSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, configured, running, connected, last_inbound_at, last_outbound_at,
			last_start_at, last_stop_at, message_count, error_count, last_error
		FROM account_snapshots
		ORDER BY account_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list account snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.AccountSnapshot
	for rows.Next() {
		var s domain.AccountSnapshot
		var inbound, outbound, start, stop int64
		if err := rows.Scan(&s.AccountID, &s.Configured, &s.Running, &s.Connected,
			&inbound, &outbound, &start, &stop, &s.MessageCount, &s.ErrorCount, &s.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan account snapshot: %w", err)
		}
		s.LastInboundAt = fromMillis(inbound)
		s.LastOutboundAt = fromMillis(outbound)
		s.LastStartAt = fromMillis(start)
		s.LastStopAt = fromMillis(stop)
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
