// Package collectors turns platform events into ingestion items. Webhook
// handlers only verify and enqueue; all heavy work happens in the ingestion
// pipeline.
package collectors

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// maxSignatureSkew bounds how old (or future-dated) a signed webhook may be.
const maxSignatureSkew = 5 * time.Minute

// signatureVersion prefixes the signed base string and the signature header.
const signatureVersion = "v0"

// ErrBadSignature covers every verification failure: missing, malformed,
// stale, or mismatched. Handlers map it to 401 without detail.
var ErrBadSignature = errors.New("webhook signature verification failed")

// VerifySignature checks an HMAC-SHA256 webhook signature computed over
// "v0:{timestamp}:{body}". Comparison is constant-time.
func VerifySignature(secret, timestamp, signature string, body []byte) error {
	if secret == "" {
		return fmt.Errorf("%w: no signing secret configured", ErrBadSignature)
	}
	if timestamp == "" || signature == "" {
		return fmt.Errorf("%w: missing headers", ErrBadSignature)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed timestamp", ErrBadSignature)
	}
	if skew := time.Since(time.Unix(ts, 0)); skew > maxSignatureSkew || skew < -maxSignatureSkew {
		return fmt.Errorf("%w: timestamp outside allowed skew", ErrBadSignature)
	}

	want := ComputeSignature(secret, timestamp, body)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return fmt.Errorf("%w: signature mismatch", ErrBadSignature)
	}
	return nil
}

// ComputeSignature produces "v0=<hex hmac>" for the given timestamp and body.
func ComputeSignature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
