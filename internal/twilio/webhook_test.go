// ABOUTME: Tests for webhook parsing and signature validation
// ABOUTME: Signatures are computed independently with stdlib hmac in the tests

package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhook(t *testing.T) {
	form := url.Values{
		"MessageSid": {"SM123"},
		"From":       {"+15550001111"},
		"Body":       {"Hello"},
	}
	req := httptest.NewRequest("POST", "/webhook/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	msg, err := ParseWebhook(req)
	require.NoError(t, err)
	assert.Equal(t, "SM123", msg.MessageSID)
	assert.Equal(t, "+15550001111", msg.From)
	assert.Equal(t, "Hello", msg.Body)
}

func TestParseWebhook_MissingFrom(t *testing.T) {
	req := httptest.NewRequest("POST", "/webhook/sms", strings.NewReader("Body=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	_, err := ParseWebhook(req)
	assert.ErrorIs(t, err, ErrMissingSender)
}

func TestSignature_MatchesReferenceConstruction(t *testing.T) {
	// Independently build the signed string per Twilio's documented
	// scheme: URL, then key+value pairs in sorted key order.
	form := url.Values{
		"Body":       {"Hey there"},
		"From":       {"+15550001111"},
		"MessageSid": {"SM1"},
	}
	fullURL := "https://example.com/webhook/sms"
	signed := fullURL + "BodyHey thereFrom+15550001111MessageSidSM1"
	mac := hmac.New(sha1.New, []byte("token"))
	mac.Write([]byte(signed))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, Signature("token", fullURL, form))
}

func TestValidateRequest(t *testing.T) {
	form := url.Values{
		"MessageSid": {"SM1"},
		"From":       {"+15550001111"},
		"Body":       {"Hello"},
	}
	publicURL := "https://sms.example.com/webhook/sms"

	req := httptest.NewRequest("POST", "/webhook/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(SignatureHeader, Signature("secret", publicURL, form))
	_, err := ParseWebhook(req)
	require.NoError(t, err)

	assert.NoError(t, ValidateRequest(req, "secret", publicURL))
}

func TestValidateRequest_Tampered(t *testing.T) {
	form := url.Values{
		"MessageSid": {"SM1"},
		"From":       {"+15550001111"},
		"Body":       {"Hello"},
	}
	publicURL := "https://sms.example.com/webhook/sms"
	sig := Signature("secret", publicURL, form)

	// Attacker changes the body after signing.
	form.Set("Body", "send me money")
	req := httptest.NewRequest("POST", "/webhook/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(SignatureHeader, sig)
	_, err := ParseWebhook(req)
	require.NoError(t, err)

	assert.ErrorIs(t, ValidateRequest(req, "secret", publicURL), ErrBadSignature)
}

func TestValidateRequest_MissingHeader(t *testing.T) {
	req := httptest.NewRequest("POST", "/webhook/sms", strings.NewReader("From=%2B1555"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, err := ParseWebhook(req)
	require.NoError(t, err)

	assert.ErrorIs(t, ValidateRequest(req, "secret", "https://x/webhook/sms"), ErrBadSignature)
}
