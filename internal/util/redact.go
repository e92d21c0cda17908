// Package util holds small shared helpers.
package util

import "regexp"

var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ghp_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`gho_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{22,}`),
	regexp.MustCompile(`https?://[^@\s]+@`),
}

// Redact strips access tokens and credential-bearing URLs from a string
// before it reaches logs or outbound comments. Git remotes embed tokens in
// their URLs, so any error text that mentions a remote must pass through here.
func Redact(value string) string {
	for _, p := range tokenPatterns {
		value = p.ReplaceAllString(value, "***REDACTED***")
	}
	return value
}
