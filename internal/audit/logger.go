package audit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventCodeAccepted    EventType = "code_accepted"
	EventCodeRejected    EventType = "code_rejected"
	EventChoiceConfirmed EventType = "choice_confirmed"
	EventChoiceFailed    EventType = "choice_failed"
	EventLoginSuccess    EventType = "admin_login_success"
	EventLoginFailure    EventType = "admin_login_failure"
	EventLogout          EventType = "admin_logout"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
	EventCSRFFailure     EventType = "csrf_failure"
	EventSessionCreate   EventType = "session_create"
	EventSessionEvict    EventType = "session_evict"
)

type Event struct {
	Type      EventType
	SessionID string
	StudentID string
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.SessionID != "" {
		logger = logger.With().Str("session_id", event.SessionID).Logger()
	}
	if event.StudentID != "" {
		logger = logger.With().Str("student_id", event.StudentID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case error:
		return e.AnErr(key, v)
	default:
		return e.Interface(key, v)
	}
}

// LogFromRequest fills in client details from r. RemoteAddr is expected to
// have passed through chi's RealIP; a trailing port is dropped.
func LogFromRequest(r *http.Request, event Event) {
	event.IP = r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		event.IP = host
	}
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}
