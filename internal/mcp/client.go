package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
)

// Client is the HTTP client of the relay's local API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ListAccounts returns every account's snapshot
func (c *Client) ListAccounts(ctx context.Context) ([]domain.AccountSnapshot, error) {
	var result struct {
		Accounts []domain.AccountSnapshot `json:"accounts"`
	}
	if err := c.get(ctx, "/api/accounts", &result); err != nil {
		return nil, err
	}
	return result.Accounts, nil
}

// GetAccount returns one account's snapshot
func (c *Client) GetAccount(ctx context.Context, accountID string) (*domain.AccountSnapshot, error) {
	var snap domain.AccountSnapshot
	if err := c.get(ctx, "/api/accounts/"+url.PathEscape(accountID), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListSessions returns recent sessions, optionally of one account
func (c *Client) ListSessions(ctx context.Context, accountID string, limit int) ([]domain.Session, error) {
	q := url.Values{}
	if accountID != "" {
		q.Set("account", accountID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/sessions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result struct {
		Sessions []domain.Session `json:"sessions"`
	}
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Sessions, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP GET failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
