package domain

import "time"

// Session is the routing record of one conversation session.
// Only routing metadata is kept, never message bodies.
type Session struct {
	Key           string    `json:"session_key"`
	AccountID     string    `json:"account_id"`
	ChatID        string    `json:"chat_id"`
	ChatType      ChatType  `json:"chat_type"`
	SenderID      string    `json:"sender_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastMessageID string    `json:"last_message_id"`
	TurnCount     int64     `json:"turn_count"`
}

// IsStale checks whether the session has been idle longer than maxIdle
func (s *Session) IsStale(now time.Time, maxIdle time.Duration) bool {
	if maxIdle <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > maxIdle
}

// RecordTurn updates the session for a new turn
func (s *Session) RecordTurn(t *Turn) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = t.Timestamp
	}
	s.UpdatedAt = t.Timestamp
	s.LastMessageID = t.MessageID
	s.TurnCount++
}
