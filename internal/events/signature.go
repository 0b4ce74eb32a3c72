package events

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header names used by the identity provider's webhook deliveries.
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

const (
	secretPrefix       = "whsec_"
	defaultTolerance   = 5 * time.Minute
	signatureVersionV1 = "v1"
)

var (
	ErrMissingHeaders   = errors.New("webhook: missing signature headers")
	ErrStaleTimestamp   = errors.New("webhook: timestamp outside tolerance")
	ErrInvalidSignature = errors.New("webhook: signature mismatch")
)

// Verifier checks webhook signatures: HMAC-SHA256 over "id.timestamp.body"
// keyed with the base64 secret, compared against every v1 entry of the
// signature header.
type Verifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier decodes secret, with or without its "whsec_" prefix.
func NewVerifier(secret string) (*Verifier, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(secret), secretPrefix)
	if raw == "" {
		return nil, errors.New("webhook: secret is empty")
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("webhook: decode secret: %w", err)
	}
	return &Verifier{key: key, tolerance: defaultTolerance, now: time.Now}, nil
}

// Sign returns the v1 signature header value for a delivery.
func (v *Verifier) Sign(id string, ts time.Time, body []byte) string {
	return signatureVersionV1 + "," + v.mac(id, strconv.FormatInt(ts.Unix(), 10), body)
}

func (v *Verifier) mac(id, ts string, body []byte) string {
	h := hmac.New(sha256.New, v.key)
	h.Write([]byte(id))
	h.Write([]byte{'.'})
	h.Write([]byte(ts))
	h.Write([]byte{'.'})
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Verify authenticates one delivery.
func (v *Verifier) Verify(id, timestamp, signature string, body []byte) error {
	if id == "" || timestamp == "" || signature == "" {
		return ErrMissingHeaders
	}
	sec, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrStaleTimestamp
	}
	skew := v.now().Sub(time.Unix(sec, 0))
	if skew > v.tolerance || skew < -v.tolerance {
		return ErrStaleTimestamp
	}

	expected := []byte(v.mac(id, timestamp, body))
	for _, entry := range strings.Fields(signature) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != signatureVersionV1 {
			continue
		}
		if hmac.Equal([]byte(sig), expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}
