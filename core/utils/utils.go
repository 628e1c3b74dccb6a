package utils

import (
	"net/url"
	"strings"
)

// Pointer pointer
func Pointer[Value any](v Value) *Value {
	return &v
}

// Hostname returns the lower-cased hostname of rawURL, or "" when it does not parse
func Hostname(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Hostname())
}
