package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
	"github.com/DevRickLin/feishu-relay/internal/biz/usecase"
)

// JanitorConfig contains the janitor intervals
type JanitorConfig struct {
	Interval       time.Duration // media sweep and snapshot flush
	MediaMaxAge    time.Duration
	SessionMaxIdle time.Duration // 0 keeps sessions forever
	CleanupEvery   time.Duration // session cleanup
}

// DefaultJanitorConfig returns the default janitor configuration
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Interval:       time.Minute,
		MediaMaxAge:    time.Hour,
		SessionMaxIdle: 30 * 24 * time.Hour,
		CleanupEvery:   6 * time.Hour,
	}
}

// Janitor owns the periodic housekeeping: it deletes media artifacts no
// consumer released, persists account snapshots and purges idle sessions.
type Janitor struct {
	media    repo.MediaRepo
	accounts repo.AccountStateRepo // optional
	registry *usecase.AccountRegistry
	sessions *usecase.SessionUsecase // optional
	config   JanitorConfig
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewJanitor creates a new janitor
func NewJanitor(
	media repo.MediaRepo,
	accounts repo.AccountStateRepo,
	registry *usecase.AccountRegistry,
	sessions *usecase.SessionUsecase,
	config JanitorConfig,
	logger *slog.Logger,
) *Janitor {
	def := DefaultJanitorConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.MediaMaxAge <= 0 {
		config.MediaMaxAge = def.MediaMaxAge
	}
	if config.CleanupEvery <= 0 {
		config.CleanupEvery = def.CleanupEvery
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		media:    media,
		accounts: accounts,
		registry: registry,
		sessions: sessions,
		config:   config,
		logger:   logger.With("component", "janitor"),
		now:      time.Now,
	}
}

// Start starts the janitor loops
func (j *Janitor) Start(ctx context.Context) {
	j.ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(2)
	go j.loop(j.config.Interval, j.tick)
	go j.loop(j.config.CleanupEvery, j.cleanupSessions)

	j.logger.Info("janitor started", "interval", j.config.Interval, "media_max_age", j.config.MediaMaxAge)
}

// Stop stops the loops and flushes the snapshots one last time
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
	j.flushSnapshots(context.Background())
	j.logger.Info("janitor stopped")
}

func (j *Janitor) loop(every time.Duration, fn func(ctx context.Context)) {
	defer j.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			fn(j.ctx)
		}
	}
}

func (j *Janitor) tick(ctx context.Context) {
	j.sweepMedia(ctx)
	j.flushSnapshots(ctx)
}

func (j *Janitor) sweepMedia(ctx context.Context) {
	if j.media == nil {
		return
	}
	n, err := j.media.Sweep(ctx, j.now().Add(-j.config.MediaMaxAge))
	if err != nil {
		j.logger.Warn("media sweep failed", "error", err)
		return
	}
	if n > 0 {
		j.logger.Info("swept stale media", "count", n)
	}
}

func (j *Janitor) flushSnapshots(ctx context.Context) {
	if j.accounts == nil || j.registry == nil {
		return
	}
	for _, snap := range j.registry.Snapshots() {
		if err := j.accounts.SaveSnapshot(ctx, snap); err != nil {
			j.logger.Warn("save snapshot failed", "account", snap.AccountID, "error", err)
		}
	}
}

func (j *Janitor) cleanupSessions(ctx context.Context) {
	if j.sessions == nil || j.config.SessionMaxIdle <= 0 {
		return
	}
	n, err := j.sessions.CleanupStale(ctx, j.config.SessionMaxIdle)
	if err != nil {
		j.logger.Warn("session cleanup failed", "error", err)
		return
	}
	if n > 0 {
		j.logger.Info("cleaned up stale sessions", "count", n)
	}
}
