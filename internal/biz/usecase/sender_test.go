package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
)

func testSenderConfig() SenderConfig {
	return SenderConfig{
		Capabilities: domain.DefaultCapabilities(),
		ChunkLimit:   100,
		Retry:        RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond},
	}
}

func TestSenderDeliverChunks(t *testing.T) {
	messages := &fakeMessageRepo{}
	state := NewAccountState("acct", true)
	obs := newCountingObserver()
	s := NewSender(messages, testSenderConfig(), state, obs, nil)

	text := strings.Repeat("a", 150)
	ids, err := s.Deliver(context.Background(), "oc_1", domain.ReplyPayload{Text: text})
	require.NoError(t, err)
	assert.Equal(t, []string{"om_sent_1", "om_sent_2"}, ids)

	require.Len(t, messages.sent, 2)
	assert.Equal(t, "oc_1", messages.sent[0].ReceiveID)
	assert.Equal(t, domain.FormatText, messages.sent[0].Format)
	assert.NotEqual(t, messages.sent[0].UUID, messages.sent[1].UUID, "each chunk has its own idempotency key")
	assert.Equal(t, 2, obs.outbound["text"])
	assert.False(t, state.Snapshot().LastOutboundAt.IsZero())
}

func TestSenderRetriesTransientFailures(t *testing.T) {
	messages := &fakeMessageRepo{failures: 2}
	obs := newCountingObserver()
	s := NewSender(messages, testSenderConfig(), nil, obs, nil)

	ids, err := s.Deliver(context.Background(), "oc_1", domain.ReplyPayload{Text: "hello"})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Equal(t, 3, messages.attempts)
	assert.Equal(t, 2, obs.retries)
}

func TestSenderGivesUp(t *testing.T) {
	messages := &fakeMessageRepo{failures: 10}
	state := NewAccountState("acct", true)
	obs := newCountingObserver()
	s := NewSender(messages, testSenderConfig(), state, obs, nil)

	ids, err := s.Deliver(context.Background(), "oc_1", domain.ReplyPayload{Text: "hello"})
	require.Error(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, 3, messages.attempts)

	var apiErr *repo.APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, int64(1), state.Snapshot().ErrorCount)
	assert.Equal(t, 1, obs.errors)
}

func TestSenderPostForCodeBlocks(t *testing.T) {
	messages := &fakeMessageRepo{}
	s := NewSender(messages, testSenderConfig(), nil, nil, nil)

	_, err := s.Deliver(context.Background(), "ou_1", domain.ReplyPayload{Text: "```go\nx := 1\n```"})
	require.NoError(t, err)
	require.Len(t, messages.sent, 1)
	assert.Equal(t, domain.FormatPost, messages.sent[0].Format)
	assert.Contains(t, messages.sent[0].Content, "code_block")
}

func TestSenderEmptyReply(t *testing.T) {
	messages := &fakeMessageRepo{}
	s := NewSender(messages, testSenderConfig(), nil, nil, nil)

	ids, err := s.Deliver(context.Background(), "oc_1", domain.ReplyPayload{})
	require.NoError(t, err)
	assert.Nil(t, ids)
	assert.Equal(t, 0, messages.attempts)
}

func TestSenderReactionsToggle(t *testing.T) {
	messages := &fakeMessageRepo{}
	cfg := testSenderConfig()
	s := NewSender(messages, cfg, nil, nil, nil)

	s.React(context.Background(), "om_1", "THUMBSUP")
	clearTyping := s.Typing(context.Background(), "om_1")
	assert.Equal(t, []string{"om_1:THUMBSUP", "om_1:" + TypingEmoji}, messages.reactions)
	assert.Empty(t, messages.removed)

	clearTyping()
	assert.Equal(t, []string{"om_1:r_2"}, messages.removed, "typing mark is removed by reaction id")

	cfg.Capabilities.Reactions = false
	cfg.Capabilities.Typing = false
	off := NewSender(messages, cfg, nil, nil, nil)
	off.React(context.Background(), "om_2", "THUMBSUP")
	off.Typing(context.Background(), "om_2")()
	assert.Len(t, messages.reactions, 2)
	assert.Len(t, messages.removed, 1)
}
