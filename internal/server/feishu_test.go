package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/usecase"
	"github.com/DevRickLin/feishu-relay/internal/infra/feishu"
)

type fakeSource struct {
	events []*domain.RawEvent
	err    error
}

func (f *fakeSource) Start(ctx context.Context, handler feishu.EventHandler, onConnected func()) error {
	onConnected()
	for _, ev := range f.events {
		handler(ev)
	}
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return nil
}

type recordingPipeline struct {
	mu     sync.Mutex
	seen   []string
	closed bool
}

func (p *recordingPipeline) HandleEvent(_ context.Context, ev *domain.RawEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, ev.MessageID)
	return nil
}

func (p *recordingPipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *recordingPipeline) handled() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

func TestFeishuServerDrainsInOrder(t *testing.T) {
	source := &fakeSource{events: []*domain.RawEvent{
		{MessageID: "om_1"}, {MessageID: "om_2"}, {MessageID: "om_3"},
	}}
	pipeline := &recordingPipeline{}
	state := usecase.NewAccountState("acct", true)
	srv := NewFeishuServer(source, pipeline, state, 8, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return len(pipeline.handled()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"om_1", "om_2", "om_3"}, pipeline.handled())

	snap := state.Snapshot()
	assert.True(t, snap.Running)
	assert.True(t, snap.Connected)

	cancel()
	require.NoError(t, <-done)

	snap = state.Snapshot()
	assert.False(t, snap.Running)
	assert.False(t, snap.Connected)
	assert.True(t, pipeline.closed)
}

func TestFeishuServerTransportError(t *testing.T) {
	source := &fakeSource{err: errors.New("handshake failed")}
	pipeline := &recordingPipeline{}
	state := usecase.NewAccountState("acct", true)
	srv := NewFeishuServer(source, pipeline, state, 0, nil)

	err := srv.Start(context.Background())
	require.Error(t, err)
	assert.True(t, pipeline.closed)
	assert.Equal(t, int64(1), state.Snapshot().ErrorCount)
	assert.Equal(t, "handshake failed", state.Snapshot().LastError)
}
