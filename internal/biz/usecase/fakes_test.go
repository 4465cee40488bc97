package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
)

var errRemote = errors.New("remote unavailable")

// fakeDirectoryRepo implements repo.DirectoryRepo for testing
type fakeDirectoryRepo struct {
	mu          sync.Mutex
	names       map[string]string
	members     map[string][]domain.Member
	bot         domain.BotIdentity
	images      map[string][]byte
	fail        bool
	nameCalls   int
	memberCalls int
	botCalls    int
}

func newFakeDirectoryRepo() *fakeDirectoryRepo {
	return &fakeDirectoryRepo{
		names:   make(map[string]string),
		members: make(map[string][]domain.Member),
		images:  make(map[string][]byte),
	}
}

func (f *fakeDirectoryRepo) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeDirectoryRepo) GetUserName(ctx context.Context, openID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nameCalls++
	if f.fail {
		return "", errRemote
	}
	return f.names[openID], nil
}

func (f *fakeDirectoryRepo) GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberCalls++
	if f.fail {
		return nil, errRemote
	}
	return f.members[chatID], nil
}

func (f *fakeDirectoryRepo) GetBotIdentity(ctx context.Context) (domain.BotIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.botCalls++
	if f.fail {
		return domain.BotIdentity{}, errRemote
	}
	return f.bot, nil
}

func (f *fakeDirectoryRepo) GetImage(ctx context.Context, messageID, imageKey string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.images[imageKey]
	if !ok {
		return nil, fmt.Errorf("image %s: %w", imageKey, errRemote)
	}
	return data, nil
}

// fakeMediaRepo implements repo.MediaRepo for testing
type fakeMediaRepo struct {
	mu    sync.Mutex
	saved int
}

func (f *fakeMediaRepo) Save(ctx context.Context, accountID string, data []byte) (domain.MediaRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved++
	return domain.MediaRef{
		Path:     fmt.Sprintf("/nonexistent/%s/%d.png", accountID, f.saved),
		MIMEType: "image/png",
		Size:     int64(len(data)),
	}, nil
}

func (f *fakeMediaRepo) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

// fakeMessageRepo implements repo.MessageRepo for testing. The first
// failures calls to CreateMessage fail.
type fakeMessageRepo struct {
	mu        sync.Mutex
	failures  int
	sent      []repo.OutboundMessage
	attempts  int
	reactions []string
	removed   []string
}

func (f *fakeMessageRepo) CreateMessage(ctx context.Context, msg repo.OutboundMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return "", &repo.APIError{Op: "create message", Code: 99991400, Msg: "rate limited"}
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("om_sent_%d", len(f.sent)), nil
}

func (f *fakeMessageRepo) AddReaction(ctx context.Context, msgID, emoji string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, msgID+":"+emoji)
	return fmt.Sprintf("r_%d", len(f.reactions)), nil
}

func (f *fakeMessageRepo) RemoveReaction(ctx context.Context, msgID, reactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, msgID+":"+reactionID)
	return nil
}

// countingObserver records observer calls
type countingObserver struct {
	NopObserver
	mu       sync.Mutex
	retries  int
	outbound map[string]int
	errors   int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{outbound: make(map[string]int)}
}

func (o *countingObserver) SendRetry() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries++
}

func (o *countingObserver) Outbound(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outbound[kind]++
}

func (o *countingObserver) Error() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors++
}
