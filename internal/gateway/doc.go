// Package gateway is the HTTP surface of sms-gateway: the provider webhook
// that feeds inbound messages to the orchestrator, a health endpoint, and a
// token-guarded admin API for inspecting conversations.
//
// Webhook handling is acknowledged immediately and processed on a detached
// context, so a slow backend call neither times out the provider's webhook
// nor gets cancelled when the provider disconnects.
package gateway
