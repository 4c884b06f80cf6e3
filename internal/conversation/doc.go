// Package conversation owns per-sender conversation state: the ordered turn
// history and its usage counters.
//
// All mutation goes through a Store's Apply method, which serializes
// mutations per conversation while letting unrelated conversations proceed
// in parallel. State is created lazily on first contact and never deleted.
// Two implementations are provided: an in-memory store for tests and
// ephemeral deployments, and a SQLite-backed store that snapshots each
// conversation after every mutation.
package conversation
