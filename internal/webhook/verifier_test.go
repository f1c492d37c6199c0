package webhook

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strconv"
	"testing"
	"time"
)

func newKeyPair(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	return base64.StdEncoding.EncodeToString(pub), priv
}

func TestVerifier_ValidSignature(t *testing.T) {
	pubB64, priv := newKeyPair(t)
	v, err := NewVerifier(pubB64, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	body := []byte(`{"event_type":"call.answered","call_id":"pcc-1"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := SignPayload(priv, ts, body)

	if err := v.Verify(ts, body, sig); err != nil {
		t.Errorf("expected valid signature to verify, got %v", err)
	}
}

func TestVerifier_TamperedBody(t *testing.T) {
	pubB64, priv := newKeyPair(t)
	v, err := NewVerifier(pubB64, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := SignPayload(priv, ts, []byte(`{"call_id":"pcc-1"}`))

	if err := v.Verify(ts, []byte(`{"call_id":"pcc-2"}`), sig); !errors.Is(err, ErrBadSignature) {
		t.Errorf("expected ErrBadSignature for tampered body, got %v", err)
	}
}

func TestVerifier_WrongKey(t *testing.T) {
	pubB64, _ := newKeyPair(t)
	_, otherPriv := newKeyPair(t)
	v, err := NewVerifier(pubB64, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	body := []byte(`{"call_id":"pcc-1"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := SignPayload(otherPriv, ts, body)

	if err := v.Verify(ts, body, sig); !errors.Is(err, ErrBadSignature) {
		t.Errorf("expected ErrBadSignature for wrong key, got %v", err)
	}
}

func TestVerifier_Timestamp(t *testing.T) {
	pubB64, priv := newKeyPair(t)
	v, err := NewVerifier(pubB64, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	now := time.Now()
	v.now = func() time.Time { return now }

	tests := []struct {
		name    string
		ts      string
		wantErr error
	}{
		{"current", strconv.FormatInt(now.Unix(), 10), nil},
		{"within tolerance", strconv.FormatInt(now.Add(-4*time.Minute).Unix(), 10), nil},
		{"too old", strconv.FormatInt(now.Add(-6*time.Minute).Unix(), 10), ErrStaleTimestamp},
		{"too far in future", strconv.FormatInt(now.Add(6*time.Minute).Unix(), 10), ErrStaleTimestamp},
		{"not a number", "yesterday", ErrStaleTimestamp},
		{"empty", "", ErrStaleTimestamp},
	}

	body := []byte(`{"call_id":"pcc-1"}`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := SignPayload(priv, tt.ts, body)
			err := v.Verify(tt.ts, body, sig)
			if tt.wantErr == nil && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestVerifier_GarbageSignature(t *testing.T) {
	pubB64, _ := newKeyPair(t)
	v, err := NewVerifier(pubB64, 5*time.Minute)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	if err := v.Verify(ts, []byte(`{}`), "%%%not-base64%%%"); !errors.Is(err, ErrBadSignature) {
		t.Errorf("expected ErrBadSignature for undecodable signature, got %v", err)
	}
}

func TestNewVerifier_InvalidKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"not base64", "%%%"},
		{"wrong length", base64.StdEncoding.EncodeToString([]byte("short"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewVerifier(tt.key, time.Minute); err == nil {
				t.Error("expected error for invalid public key")
			}
		})
	}
}

func TestNewVerifier_EmptyKey_DisablesVerification(t *testing.T) {
	v, err := NewVerifier("", time.Minute)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	if err := v.Verify("", []byte(`{}`), ""); err != nil {
		t.Errorf("expected disabled verifier to accept anything, got %v", err)
	}
}
