package usecase

import (
	"context"
	"sort"
	"strings"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

// MentionFallback decides what happens when the bot's identity is unknown
// but the event mentions someone.
type MentionFallback string

const (
	// MentionFallbackOpen treats such events as addressed
	MentionFallbackOpen MentionFallback = "open"
	// MentionFallbackStrict drops them
	MentionFallbackStrict MentionFallback = "strict"
)

// ParseMentionFallback parses a policy name, defaulting to open
func ParseMentionFallback(s string) MentionFallback {
	if MentionFallback(strings.ToLower(strings.TrimSpace(s))) == MentionFallbackStrict {
		return MentionFallbackStrict
	}
	return MentionFallbackOpen
}

// MentionDecision is the outcome of mention gating
type MentionDecision struct {
	Addressed bool
	Reason    string
}

// DecideMention applies the gating rules in priority order:
// broadcast, exact bot match, unknown-bot fallback, otherwise not addressed.
func DecideMention(bot domain.BotIdentity, mentions []domain.Mention, fallback MentionFallback) MentionDecision {
	for _, m := range mentions {
		if m.IsBroadcast() {
			return MentionDecision{Addressed: true, Reason: "broadcast"}
		}
	}
	if bot.Known() {
		for _, m := range mentions {
			if m.OpenID == bot.OpenID {
				return MentionDecision{Addressed: true, Reason: "bot_mentioned"}
			}
		}
		return MentionDecision{Reason: "not_mentioned"}
	}
	if len(mentions) > 0 && fallback != MentionFallbackStrict {
		return MentionDecision{Addressed: true, Reason: "bot_unknown_fallback"}
	}
	return MentionDecision{Reason: "not_mentioned"}
}

// StripMentions removes the bot and broadcast placeholders from text and
// replaces every other placeholder with @Name. When botID is empty the bot
// cannot be told apart, so every placeholder is removed.
func StripMentions(text string, mentions []domain.Mention, botID string) string {
	if len(mentions) == 0 {
		return strings.TrimSpace(text)
	}
	// longest key first so @_user_1 never eats the prefix of @_user_10
	sorted := make([]domain.Mention, len(mentions))
	copy(sorted, mentions)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i].Key) > len(sorted[j].Key) })

	for _, m := range sorted {
		if m.Key == "" {
			continue
		}
		if botID == "" || m.IsBroadcast() || m.OpenID == botID || m.Name == "" {
			text = strings.ReplaceAll(text, m.Key+" ", "")
			text = strings.ReplaceAll(text, m.Key, "")
			continue
		}
		text = strings.ReplaceAll(text, m.Key, "@"+m.Name)
	}
	return strings.TrimSpace(text)
}

// MentionResolver gates group events on being addressed
type MentionResolver struct {
	dir      *Directory
	fallback MentionFallback
}

// NewMentionResolver creates a resolver backed by the directory's bot identity
func NewMentionResolver(dir *Directory, fallback MentionFallback) *MentionResolver {
	return &MentionResolver{dir: dir, fallback: fallback}
}

// Resolve decides whether the mentions address the bot and returns the bot
// identity used for the decision.
func (r *MentionResolver) Resolve(ctx context.Context, mentions []domain.Mention) (MentionDecision, domain.BotIdentity) {
	bot := r.dir.BotIdentity(ctx)
	return DecideMention(bot, mentions, r.fallback), bot
}
