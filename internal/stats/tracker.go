// ABOUTME: Usage counters for a single conversation
// ABOUTME: Records inbound/outbound traffic, the daily quota window, and renders the !stats summary

package stats

import (
	"fmt"
	"time"
)

// costPerMessage is the informational per-chat-message cost estimate in USD.
// It is deliberately coarse; nothing enforces limits based on it.
const costPerMessage = 0.01

// quotaWindow is the length of the daily quota window. The window opens on
// the first message received after the previous window expires, matching the
// rolling-reset behavior users see in the quota reply.
const quotaWindow = 24 * time.Hour

// Usage holds the counters for one conversation. All counters except
// ReceivedToday only ever increase.
type Usage struct {
	// MessageCount counts inbound plain-text chat messages. Commands and
	// quota-blocked messages do not contribute.
	MessageCount int `json:"message_count"`

	// AssistantReplies counts assistant turns actually produced by the
	// backend. Failed backend calls do not contribute.
	AssistantReplies int `json:"assistant_replies"`

	// TotalReceived counts every inbound message, commands included.
	TotalReceived int `json:"total_received"`

	// TotalSent counts outbound segments handed to the transport.
	TotalSent int `json:"total_sent"`

	// ReceivedToday counts inbound messages in the current quota window.
	ReceivedToday int       `json:"received_today"`
	WindowStart   time.Time `json:"window_start"`

	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// New returns zeroed usage with both timestamps and the quota window
// anchored at now.
func New(now time.Time) Usage {
	return Usage{
		WindowStart:  now,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// RecordInbound counts one inbound message of any kind and rolls the daily
// window forward if it has expired.
func (u *Usage) RecordInbound(now time.Time) {
	if now.Sub(u.WindowStart) >= quotaWindow {
		u.ReceivedToday = 0
		u.WindowStart = now
	}
	u.ReceivedToday++
	u.TotalReceived++
	u.LastActiveAt = now
}

// RecordChat counts one inbound message that entered the chat path.
func (u *Usage) RecordChat() {
	u.MessageCount++
}

// RecordReply counts one assistant reply produced by the backend.
func (u *Usage) RecordReply() {
	u.AssistantReplies++
}

// RecordOutbound counts n outbound segments handed to the transport.
func (u *Usage) RecordOutbound(now time.Time, n int) {
	u.TotalSent += n
	u.LastActiveAt = now
}

// OverLimit reports whether the current window has reached the daily
// message limit. A limit of zero or below disables the quota.
func (u *Usage) OverLimit(limit int) bool {
	return limit > 0 && u.ReceivedToday >= limit
}

// WindowResetAt returns when the current quota window expires.
func (u *Usage) WindowResetAt() time.Time {
	return u.WindowStart.Add(quotaWindow)
}

// EstimatedCost returns the informational cost estimate in USD. It is a
// deterministic function of the chat message count.
func (u *Usage) EstimatedCost() float64 {
	return float64(u.MessageCount) * costPerMessage
}

// Render formats the summary returned by the !stats command. limit is the
// configured daily message limit; zero or below means unlimited.
func (u *Usage) Render(limit int) string {
	today := fmt.Sprintf("%d", u.ReceivedToday)
	if limit > 0 {
		today = fmt.Sprintf("%d of %d", u.ReceivedToday, limit)
	}
	return fmt.Sprintf(
		"Messages received: %d. Replies sent: %d. Messages today: %s. Estimated cost: $%.2f.",
		u.TotalReceived, u.TotalSent, today, u.EstimatedCost())
}
