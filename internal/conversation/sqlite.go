// ABOUTME: SQLite-backed Store using modernc.org/sqlite with automatic schema creation
// ABOUTME: One row per conversation, write-through after every mutation, WAL mode

package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/2389/sms-gateway/internal/stats"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	history TEXT NOT NULL DEFAULT '[]',
	message_count INTEGER NOT NULL DEFAULT 0,
	assistant_replies INTEGER NOT NULL DEFAULT 0,
	total_received INTEGER NOT NULL DEFAULT 0,
	total_sent INTEGER NOT NULL DEFAULT 0,
	received_today INTEGER NOT NULL DEFAULT 0,
	window_start INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	last_active_at INTEGER NOT NULL
)`

// SQLiteStore persists conversation snapshots to SQLite. In-flight state
// lives in per-conversation cells exactly like MemoryStore; the database is
// written through after every successful mutation so a restart picks up
// where the process left off.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cells map[ID]*cell
}

// NewSQLiteStore opens (creating if needed) the database at path. Parent
// directories are created automatically.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps readers (admin API) from blocking the write path
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("sqlite store opened", "path", path)
	return &SQLiteStore{
		db:     db,
		logger: logger,
		now:    time.Now,
		cells:  make(map[ID]*cell),
	}, nil
}

// Apply implements Store. The conversation's state is loaded from the
// database on first touch, mutated under the cell lock, then written back.
// Storage faults surface as ErrStoreUnavailable; the mutation's own error
// passes through unchanged and skips the write-back.
func (s *SQLiteStore) Apply(ctx context.Context, id ID, fn func(*State) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := s.lookupOrLoad(ctx, id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Mutate a clone and commit only after the write-through succeeds, so
	// a failed mutation or storage fault leaves the cached state untouched
	// and the whole event can be retried.
	next := c.state.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.save(ctx, next); err != nil {
		return err
	}
	c.state = next
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id ID) (*State, error) {
	s.mu.RLock()
	c, ok := s.cells[id]
	s.mu.RUnlock()
	if ok {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.state.Clone(), nil
	}

	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrNotFound
	}
	return state, nil
}

// List implements Store. Reads straight from the database: it is
// write-through, so rows are as fresh as the last completed mutation.
func (s *SQLiteStore) List(ctx context.Context) ([]*State, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, history, message_count, assistant_replies, total_received,
		       total_sent, received_today, window_start, created_at, last_active_at
		FROM conversations ORDER BY last_active_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing conversations: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []*State
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing conversations: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// lookupOrLoad returns the cell for id, hydrating it from the database the
// first time the conversation is touched in this process.
func (s *SQLiteStore) lookupOrLoad(ctx context.Context, id ID) (*cell, error) {
	s.mu.RLock()
	c, ok := s.cells[id]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	// Load outside the map lock; a racing loader for the same id is
	// resolved below.
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &State{ID: id, Stats: stats.New(s.now())}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cells[id]; ok {
		return c, nil
	}
	c = &cell{state: state}
	s.cells[id] = c
	return c, nil
}

// load fetches one conversation row, returning (nil, nil) when absent.
func (s *SQLiteStore) load(ctx context.Context, id ID) (*State, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, history, message_count, assistant_replies, total_received,
		       total_sent, received_today, window_start, created_at, last_active_at
		FROM conversations WHERE id = ?`, string(id))
	state, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// save upserts the conversation snapshot.
func (s *SQLiteStore) save(ctx context.Context, state *State) error {
	history, err := json.Marshal(state.History)
	if err != nil {
		return fmt.Errorf("%w: encoding history: %v", ErrStoreUnavailable, err)
	}

	u := state.Stats
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, history, message_count, assistant_replies,
			total_received, total_sent, received_today, window_start, created_at, last_active_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			history = excluded.history,
			message_count = excluded.message_count,
			assistant_replies = excluded.assistant_replies,
			total_received = excluded.total_received,
			total_sent = excluded.total_sent,
			received_today = excluded.received_today,
			window_start = excluded.window_start,
			last_active_at = excluded.last_active_at`,
		string(state.ID), string(history), u.MessageCount, u.AssistantReplies,
		u.TotalReceived, u.TotalSent, u.ReceivedToday,
		u.WindowStart.Unix(), u.CreatedAt.Unix(), u.LastActiveAt.Unix())
	if err != nil {
		return fmt.Errorf("%w: saving conversation: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (*State, error) {
	var (
		id      string
		history string
		u       stats.Usage
		window  int64
		created int64
		active  int64
	)
	err := row.Scan(&id, &history, &u.MessageCount, &u.AssistantReplies,
		&u.TotalReceived, &u.TotalSent, &u.ReceivedToday, &window, &created, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading conversation: %v", ErrStoreUnavailable, err)
	}

	state := &State{ID: ID(id), Stats: u}
	if err := json.Unmarshal([]byte(history), &state.History); err != nil {
		return nil, fmt.Errorf("%w: decoding history: %v", ErrStoreUnavailable, err)
	}
	state.Stats.WindowStart = time.Unix(window, 0).UTC()
	state.Stats.CreatedAt = time.Unix(created, 0).UTC()
	state.Stats.LastActiveAt = time.Unix(active, 0).UTC()
	return state, nil
}
