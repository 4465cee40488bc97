package domain

// MsgFormat is the outbound message representation
type MsgFormat string

const (
	FormatText MsgFormat = "text"
	FormatPost MsgFormat = "post"
	FormatCard MsgFormat = "interactive"
)

// ReplyPayload is what the dispatcher hands back for delivery
type ReplyPayload struct {
	Text       string
	PreferCard bool
	Reaction   string // optional emoji tag for the source message
}

// Capabilities are the per-account outbound feature toggles
type Capabilities struct {
	Markdown  bool
	Cards     bool
	Reactions bool
	Typing    bool
}

// DefaultCapabilities returns the toggles used when nothing is configured
func DefaultCapabilities() Capabilities {
	return Capabilities{Markdown: true, Reactions: true, Typing: true}
}
