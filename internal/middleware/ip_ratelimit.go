package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yearbook/picker-server-go/internal/audit"
	apperrors "github.com/yearbook/picker-server-go/internal/errors"
	"github.com/yearbook/picker-server-go/internal/httputil"
	"github.com/yearbook/picker-server-go/internal/service"
)

type Limiter interface {
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) service.RateLimitResult
}

// RejectionObserver is told about every request a limiter turns away.
type RejectionObserver interface {
	ObserveRateLimited(limiter string)
}

// IPRateLimitMiddleware throttles requests per client IP through a shared
// limiter. It relies on chi's RealIP having set RemoteAddr.
type IPRateLimitMiddleware struct {
	limiter  Limiter
	observer RejectionObserver
	limit    int
	window   time.Duration
	prefix   string
}

func NewIPRateLimitMiddleware(limiter Limiter, observer RejectionObserver, limit int, window time.Duration, prefix string) *IPRateLimitMiddleware {
	return &IPRateLimitMiddleware{
		limiter:  limiter,
		observer: observer,
		limit:    limit,
		window:   window,
		prefix:   prefix,
	}
}

func (m *IPRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		key := fmt.Sprintf("ip:%s:%s", m.prefix, ip)
		res := m.limiter.CheckLimit(r.Context(), key, m.limit, m.window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			secondsLeft := int(time.Until(res.ResetAt).Seconds()) + 1
			if secondsLeft < 1 {
				secondsLeft = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secondsLeft))

			log.Warn().Str("ip", ip).Str("limiter", m.prefix).Msg("rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"limiter": m.prefix},
			})
			if m.observer != nil {
				m.observer.ObserveRateLimited(m.prefix)
			}

			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
