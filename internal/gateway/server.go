// ABOUTME: HTTP server wiring the Twilio webhook to the orchestrator
// ABOUTME: Acknowledges webhooks immediately; processing runs on a detached context

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/2389/sms-gateway/internal/auth"
	"github.com/2389/sms-gateway/internal/bridge"
	"github.com/2389/sms-gateway/internal/conversation"
	"github.com/2389/sms-gateway/internal/twilio"
)

// emptyTwiML tells Twilio the webhook was accepted and no synchronous
// reply is needed; replies go out through the REST API instead.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// defaultHandleTimeout bounds one inbound event's processing, backend call
// included.
const defaultHandleTimeout = 2 * time.Minute

// InboundHandler is what the server needs from the orchestration layer.
type InboundHandler interface {
	HandleInbound(ctx context.Context, ev bridge.InboundEvent) error
}

// Options configures the server.
type Options struct {
	HTTPAddr string

	// PublicURL is the externally visible webhook URL; required when
	// ValidateSignature is set.
	PublicURL         string
	ValidateSignature bool
	TwilioAuthToken   string

	Handler InboundHandler
	Store   conversation.Store

	// Verifier guards the admin API. Nil disables it entirely.
	Verifier *auth.JWTVerifier

	HandleTimeout time.Duration
	Logger        *slog.Logger
}

// Server is the gateway's HTTP front.
type Server struct {
	opts     Options
	logger   *slog.Logger
	inFlight sync.WaitGroup
}

// New creates a Server.
func New(opts Options) (*Server, error) {
	if opts.Handler == nil {
		return nil, errors.New("gateway: inbound handler is required")
	}
	if opts.Store == nil {
		return nil, errors.New("gateway: conversation store is required")
	}
	if opts.HandleTimeout <= 0 {
		opts.HandleTimeout = defaultHandleTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		opts:   opts,
		logger: logger.With("component", "gateway"),
	}, nil
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/sms", s.handleWebhook)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.opts.Verifier != nil {
		guard := auth.Middleware(s.opts.Verifier)
		mux.Handle("GET /api/conversations", guard(http.HandlerFunc(s.handleListConversations)))
		mux.Handle("GET /api/conversations/{id}", guard(http.HandlerFunc(s.handleGetConversation)))
	}
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully and waits
// for in-flight webhook processing to finish.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.HTTPAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.opts.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.inFlight.Wait()
	return nil
}

// handleWebhook accepts one inbound SMS webhook from the provider.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	msg, err := twilio.ParseWebhook(r)
	if err != nil {
		s.logger.Warn("webhook rejected", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if s.opts.ValidateSignature {
		if err := twilio.ValidateRequest(r, s.opts.TwilioAuthToken, s.opts.PublicURL); err != nil {
			s.logger.Warn("webhook signature rejected", "sid", msg.MessageSID)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	ev := bridge.InboundEvent{
		Sender:     msg.From,
		Text:       msg.Body,
		MessageSID: msg.MessageSID,
		ReceivedAt: time.Now(),
	}

	// Detached from the request context: Twilio disconnecting must not
	// cancel a backend call mid-flight.
	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.HandleTimeout)
		defer cancel()

		if err := s.opts.Handler.HandleInbound(ctx, ev); err != nil {
			s.logger.Error("inbound handling failed",
				"sender", ev.Sender,
				"sid", ev.MessageSID,
				"transient", bridge.IsTransient(err),
				"error", err)
		}
	}()

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, emptyTwiML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}
