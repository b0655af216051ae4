// ringside/utils/security.go
package utils

import (
	"net"
	"net/http"
	"regexp"
	"strings"
)

// GetIPAddress extracts the real IP address from a request, trusting
// proxy-set headers in order of specificity.
func GetIPAddress(r *http.Request) string {
	if cf := r.Header.Get("CF-Connecting-IP"); cf != "" {
		return cf
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	upperRe    = regexp.MustCompile(`[A-Z]`)
	lowerRe    = regexp.MustCompile(`[a-z]`)
	digitRe    = regexp.MustCompile(`\d`)
)

// ValidUsername reports whether a username is letters and digits only.
func ValidUsername(username string) bool {
	return usernameRe.MatchString(username)
}

// ValidEmail reports whether an address looks like an email.
func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// ValidPassword enforces the complexity rule: at least 8 characters with
// upper case, lower case, and a digit.
func ValidPassword(password string) bool {
	return len(password) >= 8 &&
		upperRe.MatchString(password) &&
		lowerRe.MatchString(password) &&
		digitRe.MatchString(password)
}

// MaskUsername hides the middle of a username for account recovery.
func MaskUsername(username string) string {
	runes := []rune(username)
	n := len(runes)
	if n <= 2 {
		return username
	}
	if n > 4 {
		return string(runes[:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
	}
	return string(runes[:1]) + strings.Repeat("*", n-2) + string(runes[n-1:])
}
