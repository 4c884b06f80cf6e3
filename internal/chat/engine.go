// ABOUTME: ChatEngine: history assembly, FIFO context window, backend invocation
// ABOUTME: The conversation lock is never held across the backend call

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/sms-gateway/internal/conversation"
)

// Backend failure taxonomy. Adapters wrap their errors with one of these so
// the orchestrator can tell a retryable fault from a rejected input.
var (
	// ErrBackendUnavailable marks transient faults: timeouts, rate
	// limits, upstream 5xx. Retrying the same input may succeed.
	ErrBackendUnavailable = errors.New("chat backend unavailable")

	// ErrBackendRejected marks permanent faults: invalid requests or
	// content-policy refusals. Retrying the same input will not help.
	ErrBackendRejected = errors.New("chat backend rejected request")
)

// DefaultHistoryLimit is the default turn budget for the context window.
const DefaultHistoryLimit = 40

// DefaultSystemPrompt seeds every new conversation.
const DefaultSystemPrompt = "You are a helpful assistant. Please keep your responses concise."

// Message is one entry of a backend request.
type Message struct {
	Role    conversation.Role
	Content string
}

// Backend is the language-model collaborator.
type Backend interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Config tunes the engine.
type Config struct {
	// HistoryLimit is the turn budget; oldest turns are evicted first
	// when history exceeds it. Zero or below means DefaultHistoryLimit.
	HistoryLimit int

	// SystemPrompt is prepended to every new conversation. Empty means
	// DefaultSystemPrompt; seeding is skipped only if set to whitespace.
	SystemPrompt string
}

// Engine drives one backend. It reads and writes conversation state only
// through the store's Apply, and deliberately releases the per-conversation
// lock while the backend call is in flight so one slow completion cannot
// pile up unrelated work.
type Engine struct {
	store        conversation.Store
	backend      Backend
	historyLimit int
	systemPrompt string
	logger       *slog.Logger
}

// New creates an Engine.
func New(store conversation.Store, backend Backend, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = ""
	}
	return &Engine{
		store:        store,
		backend:      backend,
		historyLimit: limit,
		systemPrompt: prompt,
		logger:       logger.With("component", "chat"),
	}
}

// Respond appends the user turn, asks the backend for a completion, and on
// success appends the assistant turn and returns its text. On failure the
// history keeps the user turn but gains no assistant turn, and the returned
// error matches ErrBackendUnavailable or ErrBackendRejected.
func (e *Engine) Respond(ctx context.Context, id conversation.ID, userText string, now time.Time) (string, error) {
	var request []Message
	err := e.store.Apply(ctx, id, func(st *conversation.State) error {
		if len(st.History) == 0 && e.systemPrompt != "" {
			st.History = append(st.History, conversation.Turn{
				Role:      conversation.RoleSystem,
				Text:      e.systemPrompt,
				Timestamp: now,
			})
		}
		st.History = append(st.History, conversation.Turn{
			Role:      conversation.RoleUser,
			Text:      userText,
			Timestamp: now,
		})
		st.History = evict(st.History, e.historyLimit)
		request = buildRequest(st.History)
		return nil
	})
	if err != nil {
		return "", err
	}

	reply, err := e.backend.Complete(ctx, request)
	if err != nil {
		err = classify(err)
		e.logger.Warn("backend call failed",
			"conversation", string(id),
			"transient", errors.Is(err, ErrBackendUnavailable),
			"error", err)
		return "", err
	}
	reply = strings.TrimSpace(reply)

	err = e.store.Apply(ctx, id, func(st *conversation.State) error {
		st.History = append(st.History, conversation.Turn{
			Role:      conversation.RoleAssistant,
			Text:      reply,
			Timestamp: time.Now(),
		})
		st.History = evict(st.History, e.historyLimit)
		st.Stats.RecordReply()
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// evict drops the oldest turns until history fits the budget. A leading
// system turn is pinned: it carries the assistant's standing instructions
// and must survive eviction.
func evict(history []conversation.Turn, limit int) []conversation.Turn {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	if history[0].Role == conversation.RoleSystem {
		keep := limit - 1
		return append(history[:1], history[len(history)-keep:]...)
	}
	return history[len(history)-limit:]
}

// buildRequest copies history, oldest first, into backend messages.
func buildRequest(history []conversation.Turn) []Message {
	out := make([]Message, len(history))
	for i, turn := range history {
		out[i] = Message{Role: turn.Role, Content: turn.Text}
	}
	return out
}

// classify maps arbitrary backend errors onto the taxonomy. Errors already
// tagged by an adapter pass through; everything else (timeouts, transport
// faults, untagged errors) is treated as transient.
func classify(err error) error {
	if errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrBackendRejected) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
