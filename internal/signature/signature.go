// Package signature verifies webhook HMAC signatures for both platforms.
// Both checks are pure functions over the raw request body; verifying a
// re-serialized body would reject valid signatures.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const prefix = "sha256="

func digest(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyGitHub checks an X-Hub-Signature-256 header. GitHub always sends
// "sha256=<hex>"; any other shape is rejected. The comparison is
// constant-time after an explicit length check.
func VerifyGitHub(body []byte, secret, header string) bool {
	expected := prefix + digest(body, secret)
	if len(expected) != len(header) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(header)) == 1
}

// VerifyGitea checks an X-Gitea-Signature header. Gitea may send either the
// bare lowercase hex digest or the "sha256=<hex>" form; the prefix is
// stripped before the constant-time comparison.
func VerifyGitea(body []byte, secret, header string) bool {
	expected := digest(body, secret)
	normalized := strings.TrimPrefix(header, prefix)
	if len(expected) != len(normalized) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(normalized)) == 1
}
