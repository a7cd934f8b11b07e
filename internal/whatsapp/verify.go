package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the HMAC-SHA256 of the body keyed by the app secret.
const SignatureHeader = "X-Hub-Signature-256"

var (
	ErrMissingVerifyParams = errors.New("missing hub.mode or hub.verify_token")
	ErrVerifyTokenMismatch = errors.New("verify token mismatch")
)

// ValidSignature checks a "sha256=<hex>" signature of body.
func ValidSignature(body []byte, header, secret string) bool {
	header = strings.TrimSpace(header)
	if header == "" || secret == "" {
		return false
	}
	sig := strings.TrimPrefix(header, "sha256=")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(sig)), []byte(expected))
}

// Sign returns the signature header value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// CheckSubscription validates the subscription handshake parameters.
func CheckSubscription(mode, token, configured string) error {
	if mode == "" || token == "" {
		return ErrMissingVerifyParams
	}
	if mode != "subscribe" || configured == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(configured)) != 1 {
		return ErrVerifyTokenMismatch
	}
	return nil
}
