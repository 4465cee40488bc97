package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
)

// DirectoryConfig configures directory lookups
type DirectoryConfig struct {
	NameTTL   time.Duration
	MemberTTL time.Duration
	BotTTL    time.Duration
	Capacity  int
	RateLimit rate.Limit // lookups per second
	Burst     int
}

// DefaultDirectoryConfig returns the default directory configuration
func DefaultDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{
		NameTTL:   10 * time.Minute,
		MemberTTL: 5 * time.Minute,
		BotTTL:    time.Hour,
		Capacity:  2048,
		RateLimit: 10,
		Burst:     20,
	}
}

const botCacheKey = "self"

// Directory resolves user names, chat members and the bot identity.
// Lookups never fail: a failed remote call degrades to a fallback value
// and nothing is cached for it, so the next read retries.
type Directory struct {
	repo    repo.DirectoryRepo
	names   *ttlCache[string]
	members *ttlCache[[]domain.Member]
	bot     *ttlCache[domain.BotIdentity]
	group   singleflight.Group
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewDirectory creates a directory over the given repo
func NewDirectory(dirRepo repo.DirectoryRepo, cfg DirectoryConfig, logger *slog.Logger) *Directory {
	return newDirectoryWithClock(dirRepo, cfg, logger, time.Now)
}

func newDirectoryWithClock(dirRepo repo.DirectoryRepo, cfg DirectoryConfig, logger *slog.Logger, now func() time.Time) *Directory {
	def := DefaultDirectoryConfig()
	if cfg.NameTTL <= 0 {
		cfg.NameTTL = def.NameTTL
	}
	if cfg.MemberTTL <= 0 {
		cfg.MemberTTL = def.MemberTTL
	}
	if cfg.BotTTL <= 0 {
		cfg.BotTTL = def.BotTTL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		repo:    dirRepo,
		names:   newTTLCache[string](cfg.Capacity, cfg.NameTTL, now),
		members: newTTLCache[[]domain.Member](cfg.Capacity, cfg.MemberTTL, now),
		bot:     newTTLCache[domain.BotIdentity](1, cfg.BotTTL, now),
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.Burst),
		logger:  logger.With("component", "directory"),
	}
}

// UserName returns the display name for openID, or openID itself when the
// lookup fails or returns nothing.
func (d *Directory) UserName(ctx context.Context, openID string) string {
	if openID == "" {
		return ""
	}
	if name, ok := d.names.get(openID); ok {
		return name
	}

	v, err, _ := d.group.Do("name:"+openID, func() (any, error) {
		if err := d.limiter.Wait(ctx); err != nil {
			return "", err
		}
		return d.repo.GetUserName(ctx, openID)
	})
	name, _ := v.(string)
	if err != nil || name == "" {
		if err != nil {
			d.logger.Warn("user name lookup failed", "open_id", openID, "error", err)
		}
		return openID
	}
	d.names.set(openID, name)
	return name
}

// ChatMembers returns the members of chatID, or nil when unavailable.
// Successful lookups also seed the user name cache.
func (d *Directory) ChatMembers(ctx context.Context, chatID string) []domain.Member {
	if members, ok := d.members.get(chatID); ok {
		return members
	}

	v, err, _ := d.group.Do("members:"+chatID, func() (any, error) {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return d.repo.GetChatMembers(ctx, chatID)
	})
	if err != nil {
		d.logger.Warn("chat member lookup failed", "chat_id", chatID, "error", err)
		return nil
	}
	members, _ := v.([]domain.Member)
	d.members.set(chatID, members)
	for _, m := range members {
		if m.UserID != "" && m.Name != "" {
			d.names.set(m.UserID, m.Name)
		}
	}
	return members
}

// BotIdentity returns the bot's own identity, or a zero identity when the
// lookup fails.
func (d *Directory) BotIdentity(ctx context.Context) domain.BotIdentity {
	if id, ok := d.bot.get(botCacheKey); ok {
		return id
	}

	v, err, _ := d.group.Do("bot", func() (any, error) {
		return d.repo.GetBotIdentity(ctx)
	})
	id, _ := v.(domain.BotIdentity)
	if err != nil || !id.Known() {
		if err != nil {
			d.logger.Warn("bot identity lookup failed", "error", err)
		}
		return domain.BotIdentity{}
	}
	d.bot.set(botCacheKey, id)
	return id
}

// SetBotIdentity seeds the bot identity, e.g. from a startup probe
func (d *Directory) SetBotIdentity(id domain.BotIdentity) {
	if id.Known() {
		d.bot.set(botCacheKey, id)
	}
}

// FetchImage downloads an image resource. Downloads are rate limited with
// the other lookups but never cached.
func (d *Directory) FetchImage(ctx context.Context, messageID, imageKey string) ([]byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return d.repo.GetImage(ctx, messageID, imageKey)
}
