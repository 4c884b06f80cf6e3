// ABOUTME: Admin JSON API for inspecting conversations
// ABOUTME: Read-only snapshots from the store; guarded by bearer auth in Routes

package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/sms-gateway/internal/conversation"
)

// conversationSummary is the list-view shape.
type conversationSummary struct {
	ID               string    `json:"id"`
	Turns            int       `json:"turns"`
	MessageCount     int       `json:"message_count"`
	AssistantReplies int       `json:"assistant_replies"`
	TotalReceived    int       `json:"total_received"`
	TotalSent        int       `json:"total_sent"`
	EstimatedCost    float64   `json:"estimated_cost"`
	CreatedAt        time.Time `json:"created_at"`
	LastActiveAt     time.Time `json:"last_active_at"`
}

// conversationDetail adds the turn history.
type conversationDetail struct {
	conversationSummary
	History []turnView `json:"history"`
}

type turnView struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func summarize(st *conversation.State) conversationSummary {
	return conversationSummary{
		ID:               string(st.ID),
		Turns:            len(st.History),
		MessageCount:     st.Stats.MessageCount,
		AssistantReplies: st.Stats.AssistantReplies,
		TotalReceived:    st.Stats.TotalReceived,
		TotalSent:        st.Stats.TotalSent,
		EstimatedCost:    st.Stats.EstimatedCost(),
		CreatedAt:        st.Stats.CreatedAt,
		LastActiveAt:     st.Stats.LastActiveAt,
	}
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	states, err := s.opts.Store.List(r.Context())
	if err != nil {
		s.logger.Error("listing conversations failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	out := make([]conversationSummary, 0, len(states))
	for _, st := range states {
		out = append(out, summarize(st))
	}
	writeJSON(w, s.logger, map[string]any{"conversations": out})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := conversation.ID(r.PathValue("id"))
	st, err := s.opts.Store.Get(r.Context(), id)
	if errors.Is(err, conversation.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("loading conversation failed", "id", string(id), "error", err)
		writeJSONError(w, http.StatusInternalServerError, "store unavailable")
		return
	}

	detail := conversationDetail{conversationSummary: summarize(st)}
	detail.History = make([]turnView, len(st.History))
	for i, turn := range st.History {
		detail.History[i] = turnView{
			Role:      string(turn.Role),
			Text:      turn.Text,
			Timestamp: turn.Timestamp,
		}
	}
	writeJSON(w, s.logger, detail)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encoding response failed", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
