package middleware

import (
	"net/http"
	"strings"
)

type SecurityHeadersMiddleware struct {
	isProduction bool
	csp          string
}

// NewSecurityHeadersMiddleware builds the header set once. Photos are only
// loaded from 'self' and the given asset hosts.
func NewSecurityHeadersMiddleware(isProduction bool, assetHosts []string) *SecurityHeadersMiddleware {
	imgSrc := []string{"'self'", "data:"}
	for _, host := range assetHosts {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		if !strings.Contains(host, "://") {
			host = "https://" + host
		}
		imgSrc = append(imgSrc, host)
	}

	csp := "default-src 'self'; " +
		"script-src 'self' 'unsafe-inline'; " +
		"style-src 'self' 'unsafe-inline'; " +
		"img-src " + strings.Join(imgSrc, " ") + "; " +
		"font-src 'self'; " +
		"connect-src 'self'; " +
		"frame-ancestors 'none'; " +
		"base-uri 'self'; " +
		"form-action 'self'"

	return &SecurityHeadersMiddleware{isProduction: isProduction, csp: csp}
}

func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", m.csp)

		if m.isProduction {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}
