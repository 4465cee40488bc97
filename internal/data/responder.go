package data

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	openai "github.com/sashabaranov/go-openai"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
)

const (
	defaultResponderModel = "moonshot-v1-8k"
	defaultSystemPrompt   = "You are a helpful assistant in a Feishu chat. Reply concisely. Your text is sent to the chat as is."
	maxHistorySessions    = 512
)

// ResponderConfig contains the OpenAI-compatible responder configuration
type ResponderConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	HistoryLimit int // messages kept per session
	Timeout      time.Duration
}

// Responder is a dispatcher backed by an OpenAI-compatible chat API.
// It keeps a short in-memory history per session.
type Responder struct {
	client  *openai.Client
	cfg     ResponderConfig
	mu      sync.Mutex
	history *lru.Cache[string, []openai.ChatCompletionMessage]
	logger  *slog.Logger
}

// NewResponder creates a new responder
func NewResponder(cfg ResponderConfig, logger *slog.Logger) *Responder {
	if cfg.Model == "" {
		cfg.Model = defaultResponderModel
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	history, _ := lru.New[string, []openai.ChatCompletionMessage](maxHistorySessions)

	return &Responder{
		client:  openai.NewClientWithConfig(config),
		cfg:     cfg,
		history: history,
		logger:  logger.With("component", "responder"),
	}
}

// Dispatch answers one turn and delivers the reply. The turn's media is
// released once it has been read.
func (r *Responder) Dispatch(ctx context.Context, turn *domain.Turn, sink repo.ReplySink) error {
	user, err := r.userMessage(turn)
	if err != nil {
		return err
	}

	messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: r.cfg.SystemPrompt}}
	messages = append(messages, r.recall(turn.SessionKey)...)
	messages = append(messages, user)

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:    r.cfg.Model,
		Messages: messages,
	})
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("chat completion: no response choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	r.remember(turn.SessionKey,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.Body},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
	)
	if reply == "" {
		r.logger.Debug("empty reply", "turn_id", turn.ID)
		return nil
	}
	return sink.Deliver(ctx, domain.ReplyPayload{Text: reply})
}

// userMessage builds the user message, inlining images as data URIs
func (r *Responder) userMessage(turn *domain.Turn) (openai.ChatCompletionMessage, error) {
	defer func() {
		if err := turn.ReleaseMedia(); err != nil {
			r.logger.Debug("release media failed", "turn_id", turn.ID, "error", err)
		}
	}()

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(turn.Media) == 0 {
		msg.Content = turn.Body
		return msg, nil
	}

	msg.MultiContent = []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: turn.Body}}
	for _, m := range turn.Media {
		data, err := os.ReadFile(m.Path)
		if err != nil {
			return msg, fmt.Errorf("read media: %w", err)
		}
		msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: "data:" + m.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(data),
			},
		})
	}
	return msg, nil
}

func (r *Responder) recall(sessionKey string) []openai.ChatCompletionMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, _ := r.history.Get(sessionKey)
	return append([]openai.ChatCompletionMessage(nil), h...)
}

func (r *Responder) remember(sessionKey string, msgs ...openai.ChatCompletionMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, _ := r.history.Get(sessionKey)
	h = append(h, msgs...)
	if len(h) > r.cfg.HistoryLimit {
		h = h[len(h)-r.cfg.HistoryLimit:]
	}
	r.history.Add(sessionKey, h)
}

var _ repo.Dispatcher = (*Responder)(nil)
