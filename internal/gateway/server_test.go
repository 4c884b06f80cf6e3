// ABOUTME: Tests for the webhook endpoint
// ABOUTME: Covers acceptance, signature enforcement, bad payloads, and async handoff

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/sms-gateway/internal/bridge"
	"github.com/2389/sms-gateway/internal/conversation"
	"github.com/2389/sms-gateway/internal/twilio"
)

// mockHandler records inbound events.
type mockHandler struct {
	mu     sync.Mutex
	events []bridge.InboundEvent
	done   chan struct{}
}

func newMockHandler() *mockHandler {
	return &mockHandler{done: make(chan struct{}, 16)}
}

func (m *mockHandler) HandleInbound(ctx context.Context, ev bridge.InboundEvent) error {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func (m *mockHandler) wait(t *testing.T) bridge.InboundEvent {
	t.Helper()
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[len(m.events)-1]
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Handler == nil {
		opts.Handler = newMockHandler()
	}
	if opts.Store == nil {
		opts.Store = conversation.NewMemoryStore()
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func webhookForm() url.Values {
	return url.Values{
		"MessageSid": {"SM123"},
		"From":       {"+15550001111"},
		"Body":       {"Hello"},
	}
}

func postWebhook(handler http.Handler, form url.Values, sign func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhook/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sign != nil {
		sign(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_AcceptsAndDispatches(t *testing.T) {
	h := newMockHandler()
	s := newTestServer(t, Options{Handler: h})

	rec := postWebhook(s.Routes(), webhookForm(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Response>")

	ev := h.wait(t)
	assert.Equal(t, "+15550001111", ev.Sender)
	assert.Equal(t, "Hello", ev.Text)
	assert.Equal(t, "SM123", ev.MessageSID)
	assert.False(t, ev.ReceivedAt.IsZero())
}

func TestWebhook_RejectsMissingSender(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := postWebhook(s.Routes(), url.Values{"Body": {"hi"}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_SignatureEnforced(t *testing.T) {
	publicURL := "https://sms.example.com/webhook/sms"
	h := newMockHandler()
	s := newTestServer(t, Options{
		Handler:           h,
		ValidateSignature: true,
		TwilioAuthToken:   "secret",
		PublicURL:         publicURL,
	})

	// Unsigned request is refused.
	rec := postWebhook(s.Routes(), webhookForm(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Properly signed request passes.
	form := webhookForm()
	rec = postWebhook(s.Routes(), form, func(req *http.Request) {
		req.Header.Set(twilio.SignatureHeader, twilio.Signature("secret", publicURL, form))
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	h.wait(t)
}

func TestWebhook_GetNotAllowed(t *testing.T) {
	s := newTestServer(t, Options{})
	req := httptest.NewRequest("GET", "/webhook/sms", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, Options{})
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestNew_RequiresHandlerAndStore(t *testing.T) {
	_, err := New(Options{Store: conversation.NewMemoryStore()})
	assert.Error(t, err)
	_, err = New(Options{Handler: newMockHandler()})
	assert.Error(t, err)
}
