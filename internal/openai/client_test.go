// ABOUTME: Tests for the Chat Completions client
// ABOUTME: Covers role mapping, auth header, error classification, and retry behavior

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/sms-gateway/internal/chat"
	"github.com/2389/sms-gateway/internal/conversation"
)

func newTestClient(t *testing.T, srv *httptest.Server, retries int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		APIKey:     "sk-test",
		Model:      "gpt-4o",
		BaseURL:    srv.URL,
		MaxRetries: retries,
	}, nil)
	require.NoError(t, err)
	return c
}

func completionResponse(content string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` + mustJSON(content) + `}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestComplete_Success(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse("Hi there!")))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	text, err := c.Complete(context.Background(), []chat.Message{
		{Role: conversation.RoleSystem, Content: "be brief"},
		{Role: conversation.RoleUser, Content: "Hello"},
		{Role: conversation.RoleAssistant, Content: "earlier reply"},
		{Role: conversation.RoleUser, Content: "again"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", text)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o", gotReq.Model)

	require.Len(t, gotReq.Messages, 4)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Equal(t, "assistant", gotReq.Messages[2].Role)
	assert.Equal(t, "user", gotReq.Messages[3].Role)
}

func TestComplete_RateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limit"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	_, err := c.Complete(context.Background(), []chat.Message{{Role: conversation.RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, chat.ErrBackendUnavailable)
}

func TestComplete_BadRequestIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	_, err := c.Complete(context.Background(), []chat.Message{{Role: conversation.RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, chat.ErrBackendRejected)
	assert.NotErrorIs(t, err, chat.ErrBackendUnavailable)
}

func TestComplete_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "upstream", http.StatusBadGateway)
			return
		}
		w.Write([]byte(completionResponse("recovered")))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 1)
	text, err := c.Complete(context.Background(), []chat.Message{{Role: conversation.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 2, calls)
}

func TestComplete_NoRetryOnPermanent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 3)
	_, err := c.Complete(context.Background(), []chat.Message{{Role: conversation.RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, chat.ErrBackendRejected)
	assert.Equal(t, 1, calls, "permanent failures are not retried")
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	_, err := c.Complete(context.Background(), []chat.Message{{Role: conversation.RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, chat.ErrBackendUnavailable)
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.Error(t, err)
}
