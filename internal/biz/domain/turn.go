package domain

import (
	"errors"
	"os"
	"time"
)

// Sender identifies who produced a turn
type Sender struct {
	ID   string
	Name string
}

// DisplayName returns the resolved name, falling back to the raw id
func (s Sender) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// MediaRef is a materialized media artifact referenced by a turn.
// The consumer of the turn owns its lifetime and calls Release once done;
// artifacts never released are removed by the periodic media sweep.
type MediaRef struct {
	Path     string
	MIMEType string
	Size     int64
}

// Release deletes the artifact. Releasing twice is not an error.
func (m MediaRef) Release() error {
	if m.Path == "" {
		return nil
	}
	if err := os.Remove(m.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Turn is one normalized unit of conversational input
type Turn struct {
	ID           string
	AccountID    string
	SessionKey   string
	ChatID       string
	ChatType     ChatType
	From         string
	To           string
	Sender       Sender
	RawBody      string // combined text as the user wrote it, mentions stripped
	Body         string // RawBody plus sender and member context
	Media        []MediaRef
	MessageID    string // last contributing message, target for reactions
	MessageIDs   []string
	Timestamp    time.Time
	WasMentioned bool
}

// ReleaseMedia releases every media artifact of the turn and returns the
// first error encountered.
func (t *Turn) ReleaseMedia() error {
	var first error
	for _, m := range t.Media {
		if err := m.Release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
