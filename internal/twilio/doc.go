// Package twilio adapts the Twilio SMS provider to the gateway's messaging
// capability: outbound sends through the Messages REST endpoint, and inbound
// webhook parsing with request signature validation.
package twilio
