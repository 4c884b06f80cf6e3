// Package stats tracks per-conversation usage counters: messages exchanged,
// the rolling daily quota window, and an informational cost estimate.
// Counters are monotonic; the only value that resets is the daily window.
package stats
