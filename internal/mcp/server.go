package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

// Backend is what the tools read from
type Backend interface {
	ListAccounts(ctx context.Context) ([]domain.AccountSnapshot, error)
	GetAccount(ctx context.Context, accountID string) (*domain.AccountSnapshot, error)
	ListSessions(ctx context.Context, accountID string, limit int) ([]domain.Session, error)
}

// Server exposes the relay's operational state as MCP tools
type Server struct {
	server  *mcp.Server
	backend Backend
}

// NewServer creates a new MCP server
func NewServer(backend Backend, version string) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "feishu-relay",
			Version: version,
		}, nil),
		backend: backend,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "relay_list_accounts",
		Description: "List every Feishu account of the relay with its connection state and counters.",
	}, s.listAccounts)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "relay_get_account",
		Description: "Get the runtime state of one Feishu account: running, connected, last activity, message and error counts.",
	}, s.getAccount)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "relay_list_sessions",
		Description: "List the most recently active conversation sessions, optionally for one account.",
	}, s.listSessions)
}

// Run starts the MCP server with stdio transport
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Account is the tool view of an account snapshot
type Account struct {
	AccountID      string `json:"account_id"`
	Configured     bool   `json:"configured"`
	Running        bool   `json:"running"`
	Connected      bool   `json:"connected"`
	LastInboundAt  string `json:"last_inbound_at,omitempty"`
	LastOutboundAt string `json:"last_outbound_at,omitempty"`
	LastStartAt    string `json:"last_start_at,omitempty"`
	LastStopAt     string `json:"last_stop_at,omitempty"`
	MessageCount   int64  `json:"message_count"`
	ErrorCount     int64  `json:"error_count"`
	LastError      string `json:"last_error,omitempty"`
}

// Session is the tool view of a session
type Session struct {
	SessionKey    string `json:"session_key"`
	AccountID     string `json:"account_id"`
	ChatID        string `json:"chat_id"`
	ChatType      string `json:"chat_type"`
	SenderID      string `json:"sender_id"`
	UpdatedAt     string `json:"updated_at"`
	LastMessageID string `json:"last_message_id"`
	TurnCount     int64  `json:"turn_count"`
}

func toAccount(s domain.AccountSnapshot) Account {
	return Account{
		AccountID:      s.AccountID,
		Configured:     s.Configured,
		Running:        s.Running,
		Connected:      s.Connected,
		LastInboundAt:  formatTime(s.LastInboundAt),
		LastOutboundAt: formatTime(s.LastOutboundAt),
		LastStartAt:    formatTime(s.LastStartAt),
		LastStopAt:     formatTime(s.LastStopAt),
		MessageCount:   s.MessageCount,
		ErrorCount:     s.ErrorCount,
		LastError:      s.LastError,
	}
}

func toSession(s domain.Session) Session {
	return Session{
		SessionKey:    s.Key,
		AccountID:     s.AccountID,
		ChatID:        s.ChatID,
		ChatType:      string(s.ChatType),
		SenderID:      s.SenderID,
		UpdatedAt:     formatTime(s.UpdatedAt),
		LastMessageID: s.LastMessageID,
		TurnCount:     s.TurnCount,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// ListAccountsInput is empty - no input needed
type ListAccountsInput struct{}

// ListAccountsOutput contains the account snapshots
type ListAccountsOutput struct {
	Accounts []Account `json:"accounts"`
}

func (s *Server) listAccounts(ctx context.Context, req *mcp.CallToolRequest, input ListAccountsInput) (*mcp.CallToolResult, ListAccountsOutput, error) {
	accounts, err := s.backend.ListAccounts(ctx)
	if err != nil {
		return nil, ListAccountsOutput{}, err
	}
	out := ListAccountsOutput{Accounts: make([]Account, 0, len(accounts))}
	for _, a := range accounts {
		out.Accounts = append(out.Accounts, toAccount(a))
	}
	return nil, out, nil
}

// GetAccountInput selects an account
type GetAccountInput struct {
	AccountID string `json:"account_id" jsonschema:"The account id as listed by relay_list_accounts"`
}

// GetAccountOutput contains one account snapshot
type GetAccountOutput struct {
	Account Account `json:"account"`
}

func (s *Server) getAccount(ctx context.Context, req *mcp.CallToolRequest, input GetAccountInput) (*mcp.CallToolResult, GetAccountOutput, error) {
	snap, err := s.backend.GetAccount(ctx, input.AccountID)
	if err != nil {
		return nil, GetAccountOutput{}, err
	}
	return nil, GetAccountOutput{Account: toAccount(*snap)}, nil
}

// ListSessionsInput filters the session listing
type ListSessionsInput struct {
	AccountID string `json:"account_id,omitempty" jsonschema:"Only list sessions of this account"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Maximum number of sessions to return (default 50)"`
}

// ListSessionsOutput contains the sessions
type ListSessionsOutput struct {
	Sessions []Session `json:"sessions"`
}

func (s *Server) listSessions(ctx context.Context, req *mcp.CallToolRequest, input ListSessionsInput) (*mcp.CallToolResult, ListSessionsOutput, error) {
	sessions, err := s.backend.ListSessions(ctx, input.AccountID, input.Limit)
	if err != nil {
		return nil, ListSessionsOutput{}, err
	}
	out := ListSessionsOutput{Sessions: make([]Session, 0, len(sessions))}
	for _, sess := range sessions {
		out.Sessions = append(out.Sessions, toSession(sess))
	}
	return nil, out, nil
}
