package httphandler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// signaturePrefix is the scheme tag GitHub puts in the X-Hub-Signature-256
// header.
const signaturePrefix = "sha256="

// VerifySignature checks an X-Hub-Signature-256 header against the HMAC-SHA256
// of the raw request body. The MAC is computed before any header inspection so
// every call does the same amount of work regardless of how the header is
// malformed. Returns false for an empty secret, a missing prefix, or
// undecodable hex; it never errors.
func VerifySignature(secret string, body []byte, header string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	if secret == "" || !strings.HasPrefix(header, signaturePrefix) {
		return false
	}

	received, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}

	return hmac.Equal(expected, received)
}

// SignBody produces the X-Hub-Signature-256 header value for a body, used by
// tests and diagnostic tooling.
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
