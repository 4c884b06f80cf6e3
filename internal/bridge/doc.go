// Package bridge is the conversation orchestration layer. It receives an
// inbound message event, resolves it to a per-sender conversation, runs
// quota and command handling, forwards ordinary text to the chat engine,
// segments the reply, and delivers the segments in order through the
// messaging transport.
//
// The orchestrator depends only on capability interfaces: any messaging
// provider able to send a text segment and any backend the chat engine can
// call slot in without touching this package.
package bridge
