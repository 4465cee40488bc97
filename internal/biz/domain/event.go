package domain

import "time"

// MsgType is the platform message subtype
type MsgType string

const (
	MsgTypeText  MsgType = "text"
	MsgTypeImage MsgType = "image"
	MsgTypePost  MsgType = "post"
	MsgTypeOther MsgType = "other"
)

// ParseMsgType maps a platform message_type string to a MsgType
func ParseMsgType(s string) MsgType {
	switch MsgType(s) {
	case MsgTypeText, MsgTypeImage, MsgTypePost:
		return MsgType(s)
	default:
		return MsgTypeOther
	}
}

// BroadcastMentionKey is the placeholder key the platform uses for @all
const BroadcastMentionKey = "@_all"

// Mention is one entry of an event's mention list
type Mention struct {
	Key    string // placeholder in the text, e.g. @_user_1
	OpenID string
	Name   string
}

// IsBroadcast reports whether the mention addresses everyone
func (m Mention) IsBroadcast() bool {
	return m.Key == BroadcastMentionKey || m.OpenID == "all"
}

// RawEvent is one platform message event as delivered by the transport.
// It is read-only once handed to the pipeline.
type RawEvent struct {
	AccountID  string
	MessageID  string
	ChatID     string
	ChatType   ChatType
	SenderID   string
	SenderType string
	MsgType    MsgType
	Content    string // raw JSON content blob
	Mentions   []Mention
	RootID     string
	ParentID   string
	CreateTime time.Time
}

// InboundMessage is a RawEvent with its content parsed
type InboundMessage struct {
	Event     *RawEvent
	Text      string
	ImageKeys []string
}

// HasMedia reports whether the message carries images
func (m *InboundMessage) HasMedia() bool {
	return len(m.ImageKeys) > 0
}

// BufferEligible reports whether the message may be coalesced by the
// aggregator: plain text with non-empty parsed content only.
func (m *InboundMessage) BufferEligible() bool {
	return m.Event.MsgType == MsgTypeText && m.Text != ""
}
