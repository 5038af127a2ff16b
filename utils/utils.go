package utils

import (
	"fmt"
	"strings"
)

// SanitizeHost is a helper function that sanitizes the given input server
// name, stripping away surrounding whitespace and quotes, a leading scheme
// and a trailing slash, leaving a bare hostname.
func SanitizeHost(host string) string {
	host = strings.TrimSpace(host)
	host = strings.Trim(host, "\"")
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "imap://")
	host = strings.TrimPrefix(host, "smtp://")
	host = strings.TrimSuffix(host, "/")
	return host
}

// MaskSecret renders a secret for log output, keeping just enough of it to
// recognize which secret is in play.
func MaskSecret(secret string) string {
	if len(secret) <= 10 {
		return strings.Repeat("*", len(secret))
	}
	return fmt.Sprintf("%s...%s", secret[:5], secret[len(secret)-5:])
}
