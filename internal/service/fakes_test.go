package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
	"github.com/DevRickLin/feishu-relay/internal/biz/usecase"
)

// stubFeishu implements repo.DirectoryRepo and repo.MessageRepo for testing
type stubFeishu struct {
	mu        sync.Mutex
	bot       domain.BotIdentity
	names     map[string]string
	images    map[string][]byte
	sent      []repo.OutboundMessage
	reactions []string
	removed   []string
	sendErr   error
}

func newStubFeishu() *stubFeishu {
	return &stubFeishu{
		bot:    domain.BotIdentity{OpenID: "ou_bot", Name: "Relay"},
		names:  map[string]string{"ou_alice": "Alice"},
		images: map[string][]byte{},
	}
}

func (s *stubFeishu) GetUserName(ctx context.Context, openID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.names[openID], nil
}

func (s *stubFeishu) GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error) {
	return []domain.Member{{UserID: "ou_alice", Name: "Alice"}}, nil
}

func (s *stubFeishu) GetBotIdentity(ctx context.Context) (domain.BotIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bot, nil
}

func (s *stubFeishu) GetImage(ctx context.Context, messageID, imageKey string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data, ok := s.images[imageKey]; ok {
		return data, nil
	}
	return nil, errors.New("not found")
}

func (s *stubFeishu) CreateMessage(ctx context.Context, msg repo.OutboundMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.sent = append(s.sent, msg)
	return fmt.Sprintf("om_reply_%d", len(s.sent)), nil
}

func (s *stubFeishu) AddReaction(ctx context.Context, msgID, emoji string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reactions = append(s.reactions, msgID+":"+emoji)
	return fmt.Sprintf("r_%d", len(s.reactions)), nil
}

func (s *stubFeishu) RemoveReaction(ctx context.Context, msgID, reactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, msgID+":"+reactionID)
	return nil
}

func (s *stubFeishu) reactionLog() (added, removed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.reactions...), append([]string(nil), s.removed...)
}

func (s *stubFeishu) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// stubMedia implements repo.MediaRepo for testing
type stubMedia struct {
	mu    sync.Mutex
	saved int
	swept []time.Time
}

func (m *stubMedia) Save(ctx context.Context, accountID string, data []byte) (domain.MediaRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved++
	return domain.MediaRef{Path: fmt.Sprintf("/nonexistent/%d.png", m.saved), MIMEType: "image/png", Size: int64(len(data))}, nil
}

func (m *stubMedia) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swept = append(m.swept, olderThan)
	return 0, nil
}

// recordingDispatcher captures turns and answers with a fixed reply
type recordingDispatcher struct {
	mu    sync.Mutex
	turns []*domain.Turn
	reply string
	err   error
	// hold, when set, blocks Dispatch until it is closed
	hold chan struct{}
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, turn *domain.Turn, sink repo.ReplySink) error {
	d.mu.Lock()
	d.turns = append(d.turns, turn)
	reply, err, hold := d.reply, d.err, d.hold
	d.mu.Unlock()

	if hold != nil {
		<-hold
	}

	if err != nil {
		return err
	}
	if reply != "" {
		return sink.Deliver(ctx, domain.ReplyPayload{Text: reply})
	}
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.turns)
}

func (d *recordingDispatcher) turn(i int) *domain.Turn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.turns[i]
}

// dropObserver records drop reasons
type dropObserver struct {
	usecase.NopObserver
	mu      sync.Mutex
	reasons []string
}

func (o *dropObserver) Dropped(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reasons = append(o.reasons, reason)
}

func (o *dropObserver) dropped() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.reasons...)
}
