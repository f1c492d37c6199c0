// Package webhook receives and verifies provider webhooks and dispatches the
// normalized events into the pipeline.
package webhook

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"call-translation-service/internal/observability/logging"
)

// Signature headers set by the telephony provider on every webhook.
const (
	HeaderSignature = "X-Provider-Signature"
	HeaderTimestamp = "X-Provider-Timestamp"
)

// Verification errors. All of them map to a 401 at the HTTP layer; the body
// is never processed.
var (
	ErrBadSignature   = errors.New("webhook: signature verification failed")
	ErrStaleTimestamp = errors.New("webhook: timestamp outside tolerance")
)

// Verifier checks provider webhook signatures. The provider signs
// "<timestamp>|<body>" with its ed25519 key and sends the base64 signature
// and the unix timestamp as headers.
type Verifier struct {
	publicKey ed25519.PublicKey
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a verifier from the provider's base64-encoded ed25519
// public key. An empty key disables verification; that mode exists for local
// development only and is logged loudly.
func NewVerifier(publicKeyB64 string, tolerance time.Duration) (*Verifier, error) {
	v := &Verifier{
		tolerance: tolerance,
		now:       time.Now,
	}
	if publicKeyB64 == "" {
		lg := logging.WithComponent("webhook")
		lg.Warn().
			Msg("No webhook public key configured, signature verification DISABLED")
		return v, nil
	}

	key, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return nil, fmt.Errorf("webhook: decode public key: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("webhook: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(key))
	}
	v.publicKey = ed25519.PublicKey(key)
	return v, nil
}

// Verify checks the signature and timestamp for one webhook delivery.
func (v *Verifier) Verify(timestamp string, body []byte, signatureB64 string) error {
	if v.publicKey == nil {
		return nil
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrStaleTimestamp
	}
	if v.tolerance > 0 {
		age := v.now().Sub(time.Unix(ts, 0))
		if age > v.tolerance || age < -v.tolerance {
			return ErrStaleTimestamp
		}
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return ErrBadSignature
	}

	signed := make([]byte, 0, len(timestamp)+1+len(body))
	signed = append(signed, timestamp...)
	signed = append(signed, '|')
	signed = append(signed, body...)

	if !ed25519.Verify(v.publicKey, signed, sig) {
		return ErrBadSignature
	}
	return nil
}

// SignPayload produces the signature headers for a payload. It exists for the
// dev client and tests; the real provider signs on its side.
func SignPayload(privateKey ed25519.PrivateKey, timestamp string, body []byte) string {
	signed := make([]byte, 0, len(timestamp)+1+len(body))
	signed = append(signed, timestamp...)
	signed = append(signed, '|')
	signed = append(signed, body...)
	return base64.StdEncoding.EncodeToString(ed25519.Sign(privateKey, signed))
}
