package scm

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
)

func TestVerifyHmacSha256Hex_GitHubStyle(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	secret := "s3cr3t"
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if err := VerifyHmacSha256Hex(body, secret, sig, "sha256="); err != nil {
		t.Fatalf("expected ok, got error: %v", err)
	}
	if sig != SignHmacSha256Hex(body, secret) {
		t.Fatalf("expected SignHmacSha256Hex to match %s", sig)
	}
}

func TestVerifyHmacSha256Hex_NoPrefix(t *testing.T) {
	body := []byte("abc")
	secret := "k"
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	if err := VerifyHmacSha256Hex(body, secret, sig, ""); err != nil {
		t.Fatalf("expected ok, got error: %v", err)
	}
}

func TestVerifyHmacSha256Hex_Errors(t *testing.T) {
	body := []byte("payload")
	if err := VerifyHmacSha256Hex(body, "", "sha256=00", "sha256="); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if err := VerifyHmacSha256Hex(body, "k", " ", "sha256="); !errors.Is(err, ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
	if err := VerifyHmacSha256Hex(body, "k", "sha256=zz", "sha256="); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch for bad hex, got %v", err)
	}
	if err := VerifyHmacSha256Hex(body, "k", SignHmacSha256Hex(body, "other"), "sha256="); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}
