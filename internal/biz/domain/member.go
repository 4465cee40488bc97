package domain

import "fmt"

// Member represents a chat member (value object)
type Member struct {
	UserID string
	Name   string
}

// FormatDisplay formats for display
func (m *Member) FormatDisplay() string {
	if m.Name == "" {
		return m.UserID
	}
	return fmt.Sprintf("%s (user_id: %s)", m.Name, m.UserID)
}

// BotIdentity is the bot's own identity on the platform
type BotIdentity struct {
	OpenID string
	Name   string
}

// Known reports whether the identity lookup produced an id
func (b BotIdentity) Known() bool {
	return b.OpenID != ""
}
