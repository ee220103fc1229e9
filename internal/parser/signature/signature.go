// Package signature implements shared-secret webhook authentication:
// a keyed hash over the exact raw request body, carried in a header as
// "<algorithm>=<hex digest>".
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"
)

// Algo selects the HMAC hash.
type Algo string

const (
	SHA1   Algo = "sha1"
	SHA256 Algo = "sha256"
)

func newHash(a Algo) func() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New
	default:
		return sha1.New
	}
}

// Compute returns the header-formatted signature "<algo>=<hex digest>"
// of rawBody under secret.
func Compute(a Algo, rawBody []byte, secret string) string {
	mac := hmac.New(newHash(a), []byte(secret))
	mac.Write(rawBody)
	return string(a) + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the supplied header value against the expected signature.
//
// Policy:
//   - secret unset: passes with no signature check (fail-open), matching the
//     sources' documented behavior.
//   - secret set, header missing or not of the form "<algo>=<hex>": fails.
//   - otherwise: constant-time comparison of the digests.
func Verify(a Algo, rawBody []byte, secret, header string) bool {
	if secret == "" {
		return true
	}
	header = strings.TrimSpace(header)
	prefix := string(a) + "="
	if header == "" || !strings.HasPrefix(strings.ToLower(header), prefix) {
		return false
	}
	got := strings.ToLower(header[len(prefix):])
	want := Compute(a, rawBody, secret)[len(prefix):]
	return hmac.Equal([]byte(got), []byte(want))
}
