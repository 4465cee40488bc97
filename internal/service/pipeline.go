package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
	"github.com/DevRickLin/feishu-relay/internal/biz/usecase"
)

// PipelineConfig contains the per-account pipeline settings
type PipelineConfig struct {
	AccountID       string
	DebounceWindow  time.Duration
	RoutePrefix     string
	MentionFallback usecase.MentionFallback
	// RequireMention reports whether a group chat needs the bot addressed.
	// Nil means always.
	RequireMention func(chatID string) bool
	Sender         usecase.SenderConfig
	Cache          usecase.CacheConfig
}

// PipelineDeps are the collaborators of a pipeline
type PipelineDeps struct {
	Directory  repo.DirectoryRepo
	Messages   repo.MessageRepo
	Media      repo.MediaRepo
	Dispatcher repo.Dispatcher
	Sessions   *usecase.SessionUsecase // optional
	State      *usecase.AccountState   // optional
	Observer   usecase.Observer        // optional
	Logger     *slog.Logger
}

// Pipeline turns raw events of one account into dispatched turns and
// delivers the replies.
type Pipeline struct {
	cfg        PipelineConfig
	caches     *usecase.CacheManager
	debouncer  *usecase.Debouncer
	mentions   *usecase.MentionResolver
	builder    *usecase.TurnBuilder
	sender     *usecase.Sender
	sessions   *usecase.SessionUsecase
	dispatcher repo.Dispatcher
	state      *usecase.AccountState
	observer   usecase.Observer
	logger     *slog.Logger

	// dispatch outlives the transport, so it runs on its own context
	dispatchCtx context.Context

	mu     sync.Mutex
	idle   *sync.Cond
	active int
	closed bool
}

// NewPipeline creates a pipeline. A nil dispatcher is a configuration error.
func NewPipeline(cfg PipelineConfig, deps PipelineDeps) (*Pipeline, error) {
	if deps.Dispatcher == nil {
		return nil, usecase.ErrNoDispatcher
	}
	if deps.Directory == nil || deps.Messages == nil || deps.Media == nil {
		return nil, errors.New("pipeline: directory, messages and media repos are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Observer == nil {
		deps.Observer = usecase.NopObserver{}
	}
	if deps.State == nil {
		deps.State = usecase.NewAccountState(cfg.AccountID, true)
	}
	if cfg.RequireMention == nil {
		cfg.RequireMention = func(string) bool { return true }
	}

	logger := deps.Logger.With("component", "pipeline", "account", cfg.AccountID)
	caches := usecase.NewCacheManager(deps.Directory, cfg.Cache, logger)

	p := &Pipeline{
		cfg:         cfg,
		caches:      caches,
		mentions:    usecase.NewMentionResolver(caches.Directory, cfg.MentionFallback),
		builder:     usecase.NewTurnBuilder(caches.Directory, deps.Media, cfg.RoutePrefix, logger),
		sender:      usecase.NewSender(deps.Messages, cfg.Sender, deps.State, deps.Observer, logger),
		sessions:    deps.Sessions,
		dispatcher:  deps.Dispatcher,
		state:       deps.State,
		observer:    deps.Observer,
		logger:      logger,
		dispatchCtx: context.Background(),
	}
	p.idle = sync.NewCond(&p.mu)
	p.debouncer = usecase.NewDebouncer(cfg.DebounceWindow, p.onFlush, p.onFlushError)
	p.debouncer.OnDetach(p.begin)
	return p, nil
}

// Caches returns the pipeline's cache manager
func (p *Pipeline) Caches() *usecase.CacheManager {
	return p.caches
}

// Sender returns the pipeline's outbound sender
func (p *Pipeline) Sender() *usecase.Sender {
	return p.sender
}

// HandleEvent feeds one transport event into the pipeline. Events must be
// handed over one at a time; the call returns once the event is buffered
// or its immediate processing has been started.
func (p *Pipeline) HandleEvent(ctx context.Context, ev *domain.RawEvent) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return usecase.ErrPipelineClosed
	}

	p.state.RecordInbound()
	p.observer.Inbound()

	if ev.MessageID == "" {
		p.drop("missing_id", ev, nil)
		return nil
	}
	if p.caches.Dedup.IsDuplicate(ev.MessageID) {
		p.observer.Duplicate()
		p.logger.Debug("duplicate message ignored", "message_id", ev.MessageID)
		return nil
	}

	msg, err := usecase.ParseContent(ev)
	if err != nil {
		p.drop("parse_error", ev, err)
		return nil
	}

	switch {
	case msg.BufferEligible():
		if err := p.debouncer.Enqueue(usecase.AggregationKey(ev), msg); err != nil {
			return fmt.Errorf("enqueue %s: %w", ev.MessageID, err)
		}
	case ev.MsgType == domain.MsgTypeImage || ev.MsgType == domain.MsgTypePost:
		done := p.begin()
		go func() {
			defer done()
			p.process([]*domain.InboundMessage{msg})
		}()
	case ev.MsgType == domain.MsgTypeText:
		p.drop("empty", ev, nil)
	default:
		p.drop("unsupported", ev, nil)
	}
	return nil
}

// onFlush is counted as in-flight from the moment its buffer is detached
func (p *Pipeline) onFlush(_ string, msgs []*domain.InboundMessage) {
	p.process(msgs)
}

func (p *Pipeline) onFlushError(key string, err error) {
	p.state.RecordError(err)
	p.observer.Error()
	p.logger.Error("flush failed", "key", key, "error", err)
}

// process runs mention gating, builds the turn and dispatches it
func (p *Pipeline) process(msgs []*domain.InboundMessage) {
	ctx := p.dispatchCtx
	last := msgs[len(msgs)-1].Event
	mentions := unionMentions(msgs)

	var (
		bot       domain.BotIdentity
		addressed bool
	)
	if last.ChatType.IsGroup() {
		var decision usecase.MentionDecision
		decision, bot = p.mentions.Resolve(ctx, mentions)
		addressed = decision.Addressed
		if !addressed && p.cfg.RequireMention(last.ChatID) {
			p.drop(decision.Reason, last, nil)
			return
		}
	} else if len(mentions) > 0 {
		bot = p.caches.Directory.BotIdentity(ctx)
	}

	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, usecase.StripMentions(m.Text, m.Event.Mentions, bot.OpenID))
	}
	rawBody := usecase.CombineText(texts)

	turn, err := p.builder.Build(ctx, msgs, rawBody, addressed)
	if errors.Is(err, usecase.ErrEmptyTurn) {
		p.drop("empty", last, nil)
		return
	}
	if err != nil {
		p.state.RecordError(err)
		p.observer.Error()
		p.logger.Error("build turn failed", "message_id", last.MessageID, "error", err)
		return
	}
	p.observer.Turn(len(msgs))

	if p.sessions != nil {
		if _, err := p.sessions.RecordTurn(ctx, turn); err != nil {
			p.logger.Warn("record session failed", "session", turn.SessionKey, "error", err)
		}
	}

	p.logger.Info("dispatching turn",
		"turn_id", turn.ID, "session", turn.SessionKey, "messages", len(turn.MessageIDs), "media", len(turn.Media))

	clearTyping := p.sender.Typing(ctx, turn.MessageID)
	sink := &turnSink{pipeline: p, turn: turn}
	err = p.dispatcher.Dispatch(ctx, turn, sink)
	clearTyping()
	if err != nil {
		sink.OnError(err)
	}
}

func (p *Pipeline) drop(reason string, ev *domain.RawEvent, err error) {
	p.observer.Dropped(reason)
	attrs := []any{"reason", reason, "message_id", ev.MessageID, "chat_id", ev.ChatID}
	if err != nil {
		p.logger.Warn("event dropped", append(attrs, "error", err)...)
		return
	}
	p.logger.Debug("event dropped", attrs...)
}

// begin marks one unit of work in flight and returns its completion func
func (p *Pipeline) begin() func() {
	p.mu.Lock()
	p.active++
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.active--
		if p.active == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

// Close stops accepting events and abandons pending aggregation buffers.
// Dispatches already running are left to finish.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	if dropped := p.debouncer.Close(); dropped > 0 {
		p.logger.Info("abandoned pending messages", "count", dropped)
	}
}

// Wait blocks until no turn is being processed or ctx is done
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.mu.Lock()
		for p.active > 0 {
			p.idle.Wait()
		}
		p.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// unionMentions merges the mention lists of a batch
func unionMentions(msgs []*domain.InboundMessage) []domain.Mention {
	var out []domain.Mention
	seen := make(map[string]bool)
	for _, m := range msgs {
		for _, mention := range m.Event.Mentions {
			k := mention.Key + "|" + mention.OpenID
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, mention)
		}
	}
	return out
}

// turnSink routes a dispatcher's replies for one turn back to the chat
type turnSink struct {
	pipeline *Pipeline
	turn     *domain.Turn
}

func (s *turnSink) Deliver(ctx context.Context, reply domain.ReplyPayload) error {
	p := s.pipeline
	if reply.Reaction != "" {
		p.sender.React(ctx, s.turn.MessageID, reply.Reaction)
	}
	if reply.Text == "" {
		return nil
	}
	ids, err := p.sender.Deliver(ctx, s.turn.ChatID, reply)
	if err != nil {
		p.logger.Error("reply delivery failed", "turn_id", s.turn.ID, "sent_chunks", len(ids), "error", err)
		return err
	}
	p.logger.Debug("reply delivered", "turn_id", s.turn.ID, "chunks", len(ids))
	return nil
}

func (s *turnSink) OnError(err error) {
	p := s.pipeline
	p.state.RecordError(err)
	p.observer.Error()
	p.logger.Error("dispatch failed", "turn_id", s.turn.ID, "session", s.turn.SessionKey, "error", err)
}

var _ repo.ReplySink = (*turnSink)(nil)
