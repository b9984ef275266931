package middleware

import (
	"net"
	"net/http"
)

// ClientIP returns the caller address without its port. chi's RealIP only
// rewrites RemoteAddr when a forwarding header is present, so the raw
// host:port form still shows up for direct connections.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
