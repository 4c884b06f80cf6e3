// ABOUTME: Inbound webhook parsing and X-Twilio-Signature validation
// ABOUTME: Signature is HMAC-SHA1 over the request URL plus sorted form params

package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// SignatureHeader carries Twilio's request signature.
const SignatureHeader = "X-Twilio-Signature"

// Webhook parse errors.
var (
	ErrMissingSender = errors.New("webhook missing From")
	ErrBadSignature  = errors.New("webhook signature mismatch")
)

// InboundMessage is the decoded form of one inbound SMS webhook.
type InboundMessage struct {
	MessageSID string
	From       string
	Body       string
}

// ParseWebhook decodes the form-encoded webhook body Twilio posts for an
// inbound SMS.
func ParseWebhook(r *http.Request) (*InboundMessage, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	msg := &InboundMessage{
		MessageSID: r.PostForm.Get("MessageSid"),
		From:       r.PostForm.Get("From"),
		Body:       r.PostForm.Get("Body"),
	}
	if msg.From == "" {
		return nil, ErrMissingSender
	}
	return msg, nil
}

// ValidateRequest checks the request's signature header against the auth
// token. publicURL is the full external URL Twilio posted to (the gateway
// usually sits behind a proxy, so it cannot be reconstructed from the
// request alone). The request form must already be parsed.
func ValidateRequest(r *http.Request, authToken, publicURL string) error {
	want := Signature(authToken, publicURL, r.PostForm)
	got := r.Header.Get(SignatureHeader)
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return ErrBadSignature
	}
	return nil
}

// Signature computes the expected X-Twilio-Signature value: the full URL
// with each POST parameter's key and value appended in key order, HMAC-SHA1
// signed with the auth token, base64 encoded.
func Signature(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		for _, v := range form[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
