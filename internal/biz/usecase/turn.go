package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
)

// ErrEmptyTurn is returned when a turn would carry neither text nor media
var ErrEmptyTurn = errors.New("empty turn")

const (
	channelName        = "feishu"
	defaultRoutePrefix = "agent"
	maxListedMembers   = 50
	imagePlaceholder   = "[image]"
)

// SessionKey derives the session key. Direct sessions are per sender,
// group sessions are shared by every sender of the chat.
func SessionKey(prefix, accountID string, chatType domain.ChatType, chatID, senderID string) string {
	if prefix == "" {
		prefix = defaultRoutePrefix
	}
	base := prefix + ":" + accountID
	if chatType.IsGroup() {
		return fmt.Sprintf("%s:%s:group:%s", base, channelName, chatID)
	}
	return fmt.Sprintf("%s:%s:%s", base, channelName, senderID)
}

// Addresses returns the from and to addresses of a conversation
func Addresses(chatType domain.ChatType, chatID, senderID string) (from, to string) {
	if chatType.IsGroup() {
		return channelName + ":group:" + chatID, "chat:" + chatID
	}
	return channelName + ":" + senderID, "user:" + senderID
}

// CombineText joins non-empty fragments oldest first, one per line
func CombineText(parts []string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return strings.Join(kept, "\n")
}

// TurnBuilder assembles turns from parsed messages
type TurnBuilder struct {
	dir         *Directory
	media       repo.MediaRepo
	routePrefix string
	logger      *slog.Logger
	now         func() time.Time
}

// NewTurnBuilder creates a turn builder
func NewTurnBuilder(dir *Directory, media repo.MediaRepo, routePrefix string, logger *slog.Logger) *TurnBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnBuilder{
		dir:         dir,
		media:       media,
		routePrefix: routePrefix,
		logger:      logger.With("component", "turn_builder"),
		now:         time.Now,
	}
}

// Build creates a turn from msgs, which share one conversation and sender.
// rawBody is the combined, mention-stripped text. Media is fetched and
// saved here; the returned turn owns the artifacts.
func (b *TurnBuilder) Build(ctx context.Context, msgs []*domain.InboundMessage, rawBody string, wasMentioned bool) (*domain.Turn, error) {
	if len(msgs) == 0 {
		return nil, ErrEmptyTurn
	}
	last := msgs[len(msgs)-1].Event

	media := b.materialize(ctx, msgs)
	if rawBody == "" && len(media) == 0 {
		return nil, ErrEmptyTurn
	}
	if rawBody == "" {
		rawBody = imagePlaceholder
	}

	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.Event.MessageID)
	}

	sender := domain.Sender{ID: last.SenderID, Name: b.dir.UserName(ctx, last.SenderID)}
	var members []domain.Member
	if last.ChatType.IsGroup() {
		members = b.dir.ChatMembers(ctx, last.ChatID)
	}

	from, to := Addresses(last.ChatType, last.ChatID, last.SenderID)
	ts := last.CreateTime
	if ts.IsZero() {
		ts = b.now()
	}

	return &domain.Turn{
		ID:           uuid.NewString(),
		AccountID:    last.AccountID,
		SessionKey:   SessionKey(b.routePrefix, last.AccountID, last.ChatType, last.ChatID, last.SenderID),
		ChatID:       last.ChatID,
		ChatType:     last.ChatType,
		From:         from,
		To:           to,
		Sender:       sender,
		RawBody:      rawBody,
		Body:         augmentBody(rawBody, sender, members),
		Media:        media,
		MessageID:    last.MessageID,
		MessageIDs:   ids,
		Timestamp:    ts,
		WasMentioned: wasMentioned,
	}, nil
}

// materialize downloads and saves every image of msgs. Failed images are
// logged and skipped.
func (b *TurnBuilder) materialize(ctx context.Context, msgs []*domain.InboundMessage) []domain.MediaRef {
	var refs []domain.MediaRef
	for _, m := range msgs {
		for _, key := range m.ImageKeys {
			data, err := b.dir.FetchImage(ctx, m.Event.MessageID, key)
			if err != nil {
				b.logger.Warn("image download failed", "message_id", m.Event.MessageID, "image_key", key, "error", err)
				continue
			}
			ref, err := b.media.Save(ctx, m.Event.AccountID, data)
			if err != nil {
				b.logger.Warn("image save failed", "message_id", m.Event.MessageID, "image_key", key, "error", err)
				continue
			}
			refs = append(refs, ref)
		}
	}
	return refs
}

// augmentBody appends sender identity and, for groups, the member list
func augmentBody(rawBody string, sender domain.Sender, members []domain.Member) string {
	var sb strings.Builder
	sb.WriteString(rawBody)
	sb.WriteString("\n\n---\n")
	self := domain.Member{UserID: sender.ID, Name: sender.Name}
	if sender.Name == sender.ID {
		self.Name = ""
	}
	sb.WriteString("Sender: ")
	sb.WriteString(self.FormatDisplay())
	if len(members) > 0 {
		sb.WriteString("\n")
		sb.WriteString(formatMemberList(members))
	}
	return sb.String()
}

func formatMemberList(members []domain.Member) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Chat members (%d):", len(members))
	for i, m := range members {
		if i == maxListedMembers {
			fmt.Fprintf(&sb, "\n- ... and %d more", len(members)-maxListedMembers)
			break
		}
		sb.WriteString("\n- ")
		sb.WriteString(m.FormatDisplay())
	}
	return sb.String()
}
