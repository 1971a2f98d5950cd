package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// verifySignature checks Meta's X-Hub-Signature-256 header against the raw
// request body. The header carries "sha256=<hex hmac>" computed over the
// body with the app secret. Comparison is constant-time.
func verifySignature(body []byte, header, secret string) error {
	if header == "" {
		return fmt.Errorf("missing X-Hub-Signature-256 header")
	}

	scheme, gotHex, ok := strings.Cut(header, "=")
	if !ok || scheme != "sha256" {
		return fmt.Errorf("malformed signature header")
	}

	got, err := hex.DecodeString(gotHex)
	if err != nil {
		return fmt.Errorf("malformed signature hex: %w", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
