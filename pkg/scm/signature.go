package scm

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingSecret     = errors.New("webhook secret is required")
	ErrMissingSignature  = errors.New("signature header is missing")
	ErrSignatureMismatch = errors.New("signature mismatch")
)

// VerifyHmacSha256Hex checks a hex encoded HMAC-SHA256 of body, optionally prefixed (e.g. "sha256=").
func VerifyHmacSha256Hex(body []byte, secret, headerValue, headerPrefix string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ErrMissingSecret
	}
	if strings.TrimSpace(headerValue) == "" {
		return ErrMissingSignature
	}

	got := strings.TrimSpace(headerValue)
	if headerPrefix != "" && strings.HasPrefix(got, headerPrefix) {
		got = strings.TrimPrefix(got, headerPrefix)
	}
	got = strings.TrimSpace(got)

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := mac.Sum(nil)

	gotBytes, err := hex.DecodeString(got)
	if err != nil {
		return fmt.Errorf("%w: invalid signature encoding", ErrSignatureMismatch)
	}
	if !hmac.Equal(expected, gotBytes) {
		return ErrSignatureMismatch
	}
	return nil
}

// SignHmacSha256Hex returns the GitHub style "sha256=<hex>" signature of body.
func SignHmacSha256Hex(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
