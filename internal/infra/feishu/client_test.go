package feishu

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

// newOpenAPIServer fakes the open platform: token endpoints always succeed,
// everything else is answered by routes keyed on "METHOD path".
func newOpenAPIServer(t *testing.T, routes map[string]string) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var seen []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "/auth/v3/") {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code":                0,
				"msg":                 "ok",
				"tenant_access_token": "test-token",
				"app_access_token":    "test-token",
				"expire":              7200,
			})
			return
		}

		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
		mu.Unlock()

		resp, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"code":404,"msg":"not found"}`)
			return
		}
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), seen...)
	}
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{AccountID: "work", AppID: "cli_test", AppSecret: "secret", Domain: srv.URL})
}

func TestResolveDomain(t *testing.T) {
	assert.Equal(t, DomainFeishu, ResolveDomain(""))
	assert.Equal(t, DomainFeishu, ResolveDomain(" Feishu "))
	assert.Equal(t, DomainLark, ResolveDomain("lark"))
	assert.Equal(t, "https://open.example.com", ResolveDomain("https://open.example.com/"))
}

func TestResolveReceiveIDType(t *testing.T) {
	assert.Equal(t, larkim.ReceiveIdTypeChatId, ResolveReceiveIDType("oc_123"))
	assert.Equal(t, larkim.ReceiveIdTypeOpenId, ResolveReceiveIDType("ou_123"))
	assert.Equal(t, larkim.ReceiveIdTypeUnionId, ResolveReceiveIDType("on_123"))
	assert.Equal(t, larkim.ReceiveIdTypeChatId, ResolveReceiveIDType("anything"))
}

func TestProbeBot(t *testing.T) {
	srv, _ := newOpenAPIServer(t, map[string]string{
		"GET /open-apis/bot/v3/info": `{"code":0,"msg":"ok","bot":{"open_id":"ou_bot","app_name":"Relay"}}`,
	})

	bot, err := newTestClient(srv).ProbeBot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ou_bot", bot.OpenID)
	assert.Equal(t, "Relay", bot.Name)
}

func TestProbeBotAPIError(t *testing.T) {
	srv, _ := newOpenAPIServer(t, map[string]string{
		"GET /open-apis/bot/v3/info": `{"code":99991663,"msg":"invalid app"}`,
	})

	_, err := newTestClient(srv).ProbeBot(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 99991663, apiErr.Code)
	assert.Equal(t, "get bot info", apiErr.Op)
}

func TestCreateMessage(t *testing.T) {
	srv, requests := newOpenAPIServer(t, map[string]string{
		"POST /open-apis/im/v1/messages": `{"code":0,"msg":"ok","data":{"message_id":"om_new"}}`,
	})

	id, err := newTestClient(srv).CreateMessage(context.Background(), "ou_alice", "text", `{"text":"hi"}`, "uuid-1")
	require.NoError(t, err)
	assert.Equal(t, "om_new", id)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Query, "receive_id_type=open_id")

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(reqs[0].Body), &body))
	assert.Equal(t, "ou_alice", body["receive_id"])
	assert.Equal(t, "text", body["msg_type"])
	assert.Equal(t, `{"text":"hi"}`, body["content"])
	assert.Equal(t, "uuid-1", body["uuid"])
}

func TestCreateMessageAPIError(t *testing.T) {
	srv, _ := newOpenAPIServer(t, map[string]string{
		"POST /open-apis/im/v1/messages": `{"code":230002,"msg":"bot not in chat"}`,
	})

	_, err := newTestClient(srv).CreateMessage(context.Background(), "oc_team", "text", `{"text":"hi"}`, "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 230002, apiErr.Code)
	assert.Contains(t, err.Error(), "bot not in chat")
}

func TestAddReaction(t *testing.T) {
	srv, requests := newOpenAPIServer(t, map[string]string{
		"POST /open-apis/im/v1/messages/om_1/reactions": `{"code":0,"msg":"ok","data":{"reaction_id":"r1"}}`,
	})

	id, err := newTestClient(srv).AddReaction(context.Background(), "om_1", "OK")
	require.NoError(t, err)
	assert.Equal(t, "r1", id)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Body, `"emoji_type":"OK"`)
}

func TestRemoveReaction(t *testing.T) {
	srv, requests := newOpenAPIServer(t, map[string]string{
		"DELETE /open-apis/im/v1/messages/om_1/reactions/r1": `{"code":0,"msg":"ok","data":{"reaction_id":"r1"}}`,
	})

	require.NoError(t, newTestClient(srv).RemoveReaction(context.Background(), "om_1", "r1"))
	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodDelete, reqs[0].Method)

	err := newTestClient(srv).RemoveReaction(context.Background(), "om_1", "r_missing")
	require.Error(t, err)
}
