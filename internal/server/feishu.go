package server

import (
	"context"
	"log/slog"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/usecase"
	"github.com/DevRickLin/feishu-relay/internal/infra/feishu"
)

// DefaultEventBuffer is the capacity of the transport event queue
const DefaultEventBuffer = 256

// EventSource delivers transport events until ctx is done
type EventSource interface {
	Start(ctx context.Context, handler feishu.EventHandler, onConnected func()) error
}

// EventPipeline consumes transport events
type EventPipeline interface {
	HandleEvent(ctx context.Context, ev *domain.RawEvent) error
	Close()
}

// FeishuServer binds one account's event stream to its pipeline. Events
// are handed to the pipeline one at a time in arrival order.
type FeishuServer struct {
	source   EventSource
	pipeline EventPipeline
	state    *usecase.AccountState
	events   chan *domain.RawEvent
	logger   *slog.Logger
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(source EventSource, pipeline EventPipeline, state *usecase.AccountState, buffer int, logger *slog.Logger) *FeishuServer {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeishuServer{
		source:   source,
		pipeline: pipeline,
		state:    state,
		events:   make(chan *domain.RawEvent, buffer),
		logger:   logger.With("component", "server", "account", state.ID()),
	}
}

// Start runs the account until ctx is done or the transport fails. The
// pipeline is closed on return.
func (s *FeishuServer) Start(ctx context.Context) error {
	s.state.MarkStarted()
	defer func() {
		s.state.SetConnected(false)
		s.state.MarkStopped()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		s.drain(ctx)
	}()

	err := s.source.Start(ctx, func(ev *domain.RawEvent) { s.enqueue(ctx, ev) }, func() {
		s.state.SetConnected(true)
		s.logger.Info("connected")
	})
	if err != nil {
		s.state.RecordError(err)
		s.logger.Error("transport stopped", "error", err)
	}

	cancel()
	<-drained
	s.pipeline.Close()
	if n := len(s.events); n > 0 {
		s.logger.Info("discarded queued events", "count", n)
	}
	s.logger.Info("stopped")
	return err
}

// enqueue blocks while the queue is full so the transport is not ACKed
// for events that could not be accepted.
func (s *FeishuServer) enqueue(ctx context.Context, ev *domain.RawEvent) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *FeishuServer) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			if err := s.pipeline.HandleEvent(ctx, ev); err != nil {
				s.logger.Warn("event rejected", "message_id", ev.MessageID, "error", err)
			}
		}
	}
}
