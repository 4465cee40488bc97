package domain

// ChatType represents the chat type
type ChatType string

const (
	ChatTypeGroup ChatType = "group"
	ChatTypeP2P   ChatType = "p2p"
)

// IsGroup reports whether the chat is multi-party
func (t ChatType) IsGroup() bool {
	return t == ChatTypeGroup
}

// ParseChatType maps a platform chat_type string to a ChatType.
// Anything that is not "group" is treated as a direct conversation.
func ParseChatType(s string) ChatType {
	if s == string(ChatTypeGroup) {
		return ChatTypeGroup
	}
	return ChatTypeP2P
}
