package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DevRickLin/feishu-relay/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// Repositories contains the shared repositories
type Repositories struct {
	Session repo.SessionRepo
	Account repo.AccountStateRepo
	Media   repo.MediaRepo

	db *sql.DB
}

// NewRepositories opens the state database and creates all shared repositories
func NewRepositories(dbPath, mediaDir string) (*Repositories, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}

	sessionRepo, err := NewSessionRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	accountRepo, err := NewAccountRepo(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Repositories{
		Session: sessionRepo,
		Account: accountRepo,
		Media:   NewMediaStore(mediaDir),
		db:      db,
	}, nil
}

// Close closes the database connection
func (r *Repositories) Close() error {
	return r.db.Close()
}

// OpenDB opens (creating if needed) the SQLite database at dbPath
func OpenDB(dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	return db, nil
}
