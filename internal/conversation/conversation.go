// ABOUTME: Conversation identity, turn history types, and the Store contract
// ABOUTME: State is mutated only under a store's per-conversation Apply

package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/2389/sms-gateway/internal/stats"
)

// ErrStoreUnavailable wraps storage faults from durable backends. Callers
// may retry the whole inbound event.
var ErrStoreUnavailable = errors.New("conversation store unavailable")

// ErrNotFound is returned by read-only lookups for unknown conversations.
// Apply never returns it; conversations are created lazily there.
var ErrNotFound = errors.New("conversation not found")

// ID identifies one conversation. It is derived from the sender's transport
// address and stable for the conversation's lifetime.
type ID string

// IDFromAddress derives a conversation ID from a sender address such as a
// phone number. Surrounding whitespace is not part of the identity.
func IDFromAddress(addr string) ID {
	return ID(strings.TrimSpace(addr))
}

// Role says who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message in a conversation's history. Turns are immutable once
// appended; insertion order defines the prompt context.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the full mutable state of one conversation. It is owned by the
// store; callers only touch it inside Apply.
type State struct {
	ID      ID
	History []Turn
	Stats   stats.Usage
}

// Clone returns a deep copy safe to read outside the store's lock.
func (s *State) Clone() *State {
	out := &State{ID: s.ID, Stats: s.Stats}
	out.History = make([]Turn, len(s.History))
	copy(out.History, s.History)
	return out
}

// Store is the persistence contract the orchestration layer requires.
type Store interface {
	// Apply runs fn against the conversation's state under exclusive
	// access, creating empty state on first contact. At most one mutation
	// is in flight per ID at a time; distinct IDs proceed in parallel.
	Apply(ctx context.Context, id ID, fn func(*State) error) error

	// Get returns a read-only snapshot, or ErrNotFound if the sender has
	// never messaged.
	Get(ctx context.Context, id ID) (*State, error)

	// List returns read-only snapshots of every conversation.
	List(ctx context.Context) ([]*State, error)

	Close() error
}
