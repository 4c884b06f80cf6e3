// ABOUTME: ConversationOrchestrator: inbound event -> route -> reply -> segment -> deliver
// ABOUTME: Stats update on every branch; apology segment on chat failure, never a retry

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/sms-gateway/internal/chat"
	"github.com/2389/sms-gateway/internal/command"
	"github.com/2389/sms-gateway/internal/conversation"
	"github.com/2389/sms-gateway/internal/dedupe"
	"github.com/2389/sms-gateway/internal/segment"
)

// ErrTransport marks outbound delivery failures. The core does not retry
// them; the inbound side of the event has already been recorded.
var ErrTransport = errors.New("outbound delivery failed")

// HelpText is the !help reply.
const HelpText = "Commands: !help, !stats"

// Apology texts sent when the chat path fails, so the user is not left
// silent.
const (
	apologyTransient = "Sorry, I couldn't reply just now. Please try again in a minute."
	apologyPermanent = "Sorry, I can't respond to that message."
)

// MessagingClient is the outbound transport capability. Implementations
// must preserve submission order for segments of one reply.
type MessagingClient interface {
	Send(ctx context.Context, destination, text string) error
}

// Responder is the chat engine capability.
type Responder interface {
	Respond(ctx context.Context, id conversation.ID, userText string, now time.Time) (string, error)
}

// InboundEvent is one message arriving from the transport.
type InboundEvent struct {
	Sender     string
	Text       string
	MessageSID string
	ReceivedAt time.Time
}

// Config tunes the orchestrator.
type Config struct {
	// DailyLimit caps inbound messages per conversation per rolling day.
	// Zero or below disables the quota.
	DailyLimit int

	// MaxSegmentLength is the outbound segment size in bytes. Zero or
	// below means segment.DefaultMaxLength.
	MaxSegmentLength int
}

// Orchestrator wires the conversation core together.
type Orchestrator struct {
	store      conversation.Store
	responder  Responder
	client     MessagingClient
	seen       *dedupe.Cache // optional
	dailyLimit int
	maxSegment int
	logger     *slog.Logger
}

// New creates an Orchestrator. seen may be nil to disable webhook dedupe.
func New(store conversation.Store, responder Responder, client MessagingClient, seen *dedupe.Cache, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	maxSeg := cfg.MaxSegmentLength
	if maxSeg <= 0 {
		maxSeg = segment.DefaultMaxLength
	}
	return &Orchestrator{
		store:      store,
		responder:  responder,
		client:     client,
		seen:       seen,
		dailyLimit: cfg.DailyLimit,
		maxSegment: maxSeg,
		logger:     logger.With("component", "bridge"),
	}
}

// branch is the path an event takes after routing.
type branch int

const (
	branchChat branch = iota
	branchCommand
	branchQuota
)

// HandleInbound processes one inbound event end to end. The returned error
// is nil when a reply (including a command or quota reply) was delivered;
// otherwise it wraps one of the taxonomy errors so the caller can tell
// transient from permanent failure.
func (o *Orchestrator) HandleInbound(ctx context.Context, ev InboundEvent) error {
	if o.seen != nil && ev.MessageSID != "" && o.seen.CheckAndMark(ev.MessageSID) {
		o.logger.Debug("duplicate delivery dropped", "sid", ev.MessageSID, "sender", ev.Sender)
		return nil
	}

	id := conversation.IDFromAddress(ev.Sender)
	now := ev.ReceivedAt
	if now.IsZero() {
		now = time.Now()
	}

	// Routed: record the inbound message, check the quota, and decide the
	// branch, all under one mutation.
	var (
		path  branch
		reply string
	)
	err := o.store.Apply(ctx, id, func(st *conversation.State) error {
		st.Stats.RecordInbound(now)

		if st.Stats.OverLimit(o.dailyLimit) {
			path = branchQuota
			reply = fmt.Sprintf(
				"You have reached the daily message limit of %d. Your quota will reset at %s.",
				o.dailyLimit,
				st.Stats.WindowResetAt().UTC().Format(time.RFC1123))
			return nil
		}

		cmd := command.Parse(ev.Text)
		switch cmd.Kind {
		case command.KindHelp:
			path = branchCommand
			reply = HelpText
		case command.KindStats:
			path = branchCommand
			reply = st.Stats.Render(o.dailyLimit)
		default:
			path = branchChat
			st.Stats.RecordChat()
		}
		return nil
	})
	if err != nil {
		return err
	}

	if path == branchChat {
		reply, err = o.responder.Respond(ctx, id, ev.Text, now)
		if err != nil {
			o.apologize(ctx, id, ev.Sender, err)
			return err
		}
		reply = segment.Flatten(reply)
	}

	return o.deliver(ctx, id, ev.Sender, reply)
}

// deliver segments the reply and sends the segments in order, recording
// each successful send. A failed segment aborts the rest of the reply.
func (o *Orchestrator) deliver(ctx context.Context, id conversation.ID, destination, reply string) error {
	segs := segment.Split(reply, o.maxSegment)
	for i, seg := range segs {
		if err := o.client.Send(ctx, destination, seg); err != nil {
			o.logger.Error("segment delivery failed",
				"sender", destination,
				"segment", i+1,
				"of", len(segs),
				"error", err)
			return fmt.Errorf("%w: segment %d of %d: %v", ErrTransport, i+1, len(segs), err)
		}
		if err := o.recordOutbound(ctx, id, 1); err != nil {
			return err
		}
	}
	return nil
}

// apologize sends a best-effort error segment after a chat failure. Its own
// delivery failure is only logged; the original chat error is what the
// caller needs to see.
func (o *Orchestrator) apologize(ctx context.Context, id conversation.ID, destination string, cause error) {
	text := apologyTransient
	if errors.Is(cause, chat.ErrBackendRejected) {
		text = apologyPermanent
	}
	if err := o.client.Send(ctx, destination, text); err != nil {
		o.logger.Error("apology delivery failed", "sender", destination, "error", err)
		return
	}
	if err := o.recordOutbound(ctx, id, 1); err != nil {
		o.logger.Error("recording apology failed", "sender", destination, "error", err)
	}
}

func (o *Orchestrator) recordOutbound(ctx context.Context, id conversation.ID, n int) error {
	return o.store.Apply(ctx, id, func(st *conversation.State) error {
		st.Stats.RecordOutbound(time.Now(), n)
		return nil
	})
}

// IsTransient reports whether err is worth retrying at a supervisor layer.
func IsTransient(err error) bool {
	return errors.Is(err, chat.ErrBackendUnavailable) ||
		errors.Is(err, conversation.ErrStoreUnavailable)
}
