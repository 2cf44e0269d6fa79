package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller address with the port stripped, or "" when the
// request carries none. Run chi's RealIP first so proxy headers are honored.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
