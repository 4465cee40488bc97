package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

const (
	DomainFeishu = "https://open.feishu.cn"
	DomainLark   = "https://open.larksuite.com"
)

// ResolveDomain maps "feishu", "lark" or a URL to an API base URL
func ResolveDomain(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "", "feishu":
		return DomainFeishu
	case "lark":
		return DomainLark
	default:
		return strings.TrimRight(d, "/")
	}
}

// ResolveReceiveIDType infers the receive_id_type from an id prefix
func ResolveReceiveIDType(id string) string {
	switch {
	case strings.HasPrefix(id, "oc_"):
		return larkim.ReceiveIdTypeChatId
	case strings.HasPrefix(id, "ou_"):
		return larkim.ReceiveIdTypeOpenId
	case strings.HasPrefix(id, "on_"):
		return larkim.ReceiveIdTypeUnionId
	default:
		return larkim.ReceiveIdTypeChatId
	}
}

// APIError is a call that reached the platform and failed with a non-zero code
type APIError struct {
	Op   string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: code=%d msg=%s", e.Op, e.Code, e.Msg)
}

// Config contains the credentials of one app
type Config struct {
	AccountID string
	AppID     string
	AppSecret string
	Domain    string
	Logger    *slog.Logger
}

// EventHandler receives converted message events. It must return quickly:
// the SDK only ACKs the event after the handler returns.
type EventHandler func(ev *domain.RawEvent)

// ChatMember represents a member in a chat
type ChatMember struct {
	MemberID string
	Name     string
}

// Client is the Feishu API client for one account
type Client struct {
	cfg     Config
	domain  string
	larkCli *lark.Client
	logger  *slog.Logger
}

// NewClient creates a new Feishu client
func NewClient(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	base := ResolveDomain(cfg.Domain)
	logger := cfg.Logger.With("component", "feishu", "account", cfg.AccountID)
	return &Client{
		cfg:    cfg,
		domain: base,
		larkCli: lark.NewClient(cfg.AppID, cfg.AppSecret,
			lark.WithOpenBaseUrl(base),
			lark.WithLogger(NewLogger(logger)),
			lark.WithLogLevel(larkcore.LogLevelInfo),
		),
		logger: logger,
	}
}

// Start connects the event WebSocket and blocks until ctx is done or the
// connection fails for good. onConnected, if set, is called once the
// connection has been launched.
func (c *Client) Start(ctx context.Context, handler EventHandler, onConnected func()) error {
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
			if ev := ConvertEvent(c.cfg.AccountID, event); ev != nil {
				handler(ev)
			}
			return nil
		})

	wsCli := larkws.NewClient(c.cfg.AppID, c.cfg.AppSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithDomain(c.domain),
		larkws.WithLogger(NewLogger(c.logger)),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.logger.Info("starting websocket connection", "domain", c.domain)

	// the SDK's Start never returns on its own once connected
	errCh := make(chan error, 1)
	go func() { errCh <- wsCli.Start(ctx) }()
	if onConnected != nil {
		onConnected()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("websocket: %w", err)
		}
		return nil
	}
}

type botInfoResp struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Bot  struct {
		OpenID  string `json:"open_id"`
		AppName string `json:"app_name"`
	} `json:"bot"`
}

// ProbeBot fetches the bot's own identity. It doubles as a credential check.
func (c *Client) ProbeBot(ctx context.Context) (domain.BotIdentity, error) {
	resp, err := c.larkCli.Get(ctx, "/open-apis/bot/v3/info", nil, larkcore.AccessTokenTypeTenant)
	if err != nil {
		return domain.BotIdentity{}, fmt.Errorf("get bot info: %w", err)
	}
	var info botInfoResp
	if err := json.Unmarshal(resp.RawBody, &info); err != nil {
		return domain.BotIdentity{}, fmt.Errorf("decode bot info: %w", err)
	}
	if info.Code != 0 {
		return domain.BotIdentity{}, &APIError{Op: "get bot info", Code: info.Code, Msg: info.Msg}
	}
	return domain.BotIdentity{OpenID: info.Bot.OpenID, Name: info.Bot.AppName}, nil
}

// GetUserName resolves a user's display name by open_id
func (c *Client) GetUserName(ctx context.Context, openID string) (string, error) {
	req := larkcontact.NewGetUserReqBuilder().
		UserId(openID).
		UserIdType("open_id").
		Build()

	resp, err := c.larkCli.Contact.V3.User.Get(ctx, req)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	if !resp.Success() {
		return "", &APIError{Op: "get user", Code: resp.Code, Msg: resp.Msg}
	}
	if resp.Data == nil || resp.Data.User == nil || resp.Data.User.Name == nil {
		return "", nil
	}
	return *resp.Data.User.Name, nil
}

// GetChatMembers retrieves members of a chat, following every page
func (c *Client) GetChatMembers(ctx context.Context, chatID string) ([]ChatMember, error) {
	var members []ChatMember
	var pageToken string

	for {
		builder := larkim.NewGetChatMembersReqBuilder().
			MemberIdType("open_id").
			ChatId(chatID).
			PageSize(100)
		if pageToken != "" {
			builder = builder.PageToken(pageToken)
		}

		resp, err := c.larkCli.Im.ChatMembers.Get(ctx, builder.Build())
		if err != nil {
			return nil, fmt.Errorf("get chat members: %w", err)
		}
		if !resp.Success() {
			return nil, &APIError{Op: "get chat members", Code: resp.Code, Msg: resp.Msg}
		}
		if resp.Data == nil {
			break
		}

		for _, item := range resp.Data.Items {
			var m ChatMember
			if item.MemberId != nil {
				m.MemberID = *item.MemberId
			}
			if item.Name != nil {
				m.Name = *item.Name
			}
			members = append(members, m)
		}

		if resp.Data.PageToken == nil || *resp.Data.PageToken == "" {
			break
		}
		pageToken = *resp.Data.PageToken
	}

	c.logger.Debug("fetched chat members", "chat_id", chatID, "count", len(members))
	return members, nil
}

// DownloadResource downloads a message resource (image or file)
func (c *Client) DownloadResource(ctx context.Context, messageID, fileKey, resourceType string) ([]byte, error) {
	req := larkim.NewGetMessageResourceReqBuilder().
		MessageId(messageID).
		FileKey(fileKey).
		Type(resourceType).
		Build()

	resp, err := c.larkCli.Im.MessageResource.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get message resource: %w", err)
	}
	if !resp.Success() {
		return nil, &APIError{Op: "get message resource", Code: resp.Code, Msg: resp.Msg}
	}
	if resp.File == nil {
		return nil, fmt.Errorf("get message resource: empty body")
	}
	data, err := io.ReadAll(resp.File)
	if err != nil {
		return nil, fmt.Errorf("read message resource: %w", err)
	}
	return data, nil
}

// CreateMessage sends one message and returns its message id
func (c *Client) CreateMessage(ctx context.Context, receiveID, msgType, content, uuid string) (string, error) {
	body := larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(receiveID).
		MsgType(msgType).
		Content(content)
	if uuid != "" {
		body = body.Uuid(uuid)
	}
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(ResolveReceiveIDType(receiveID)).
		Body(body.Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}
	if !resp.Success() {
		return "", &APIError{Op: "create message", Code: resp.Code, Msg: resp.Msg}
	}
	if resp.Data == nil || resp.Data.MessageId == nil {
		return "", nil
	}
	return *resp.Data.MessageId, nil
}

// AddReaction adds an emoji reaction to a message and returns its reaction id
func (c *Client) AddReaction(ctx context.Context, messageID, emojiType string) (string, error) {
	req := larkim.NewCreateMessageReactionReqBuilder().
		MessageId(messageID).
		Body(larkim.NewCreateMessageReactionReqBodyBuilder().
			ReactionType(larkim.NewEmojiBuilder().EmojiType(emojiType).Build()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.MessageReaction.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("add reaction: %w", err)
	}
	if !resp.Success() {
		return "", &APIError{Op: "add reaction", Code: resp.Code, Msg: resp.Msg}
	}
	if resp.Data == nil || resp.Data.ReactionId == nil {
		return "", nil
	}
	return *resp.Data.ReactionId, nil
}

// RemoveReaction deletes a reaction the bot added
func (c *Client) RemoveReaction(ctx context.Context, messageID, reactionID string) error {
	req := larkim.NewDeleteMessageReactionReqBuilder().
		MessageId(messageID).
		ReactionId(reactionID).
		Build()

	resp, err := c.larkCli.Im.MessageReaction.Delete(ctx, req)
	if err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	if !resp.Success() {
		return &APIError{Op: "remove reaction", Code: resp.Code, Msg: resp.Msg}
	}
	return nil
}
