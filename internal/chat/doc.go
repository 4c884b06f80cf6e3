// Package chat turns conversation history plus a new user message into a
// backend request and records what actually happened.
//
// The engine appends the user turn, builds the request from history oldest
// first under a FIFO turn budget, and appends an assistant turn only when
// the backend succeeds. Failures are classified transient
// (ErrBackendUnavailable) or permanent (ErrBackendRejected) so callers can
// decide whether a retry is worthwhile.
package chat
