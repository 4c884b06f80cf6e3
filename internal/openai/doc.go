// Package openai implements the chat backend capability against an
// OpenAI-compatible Chat Completions endpoint. Rate limits, upstream 5xx,
// and transport faults are reported as transient; other 4xx as permanent.
package openai
