package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yearbook/picker-server-go/internal/metrics"
	"github.com/yearbook/picker-server-go/internal/selection"
	"github.com/yearbook/picker-server-go/internal/util"
)

// BrowserSession is one visitor's selection workflow. It lives only in this
// process and is gone after a restart or idle eviction.
type BrowserSession struct {
	ID         string
	Controller *selection.Controller
	CreatedAt  time.Time

	mu         sync.Mutex
	lastAccess time.Time
}

func (b *BrowserSession) touch(now time.Time) {
	b.mu.Lock()
	b.lastAccess = now
	b.mu.Unlock()
}

// LastAccess is when the session was last looked up.
func (b *BrowserSession) LastAccess() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastAccess
}

// SessionService maps opaque cookie tokens to browser sessions. Tokens are
// only kept as HMAC hashes.
type SessionService struct {
	store       selection.RecordStore
	secret      string
	idleTimeout time.Duration
	metrics     *metrics.Metrics
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*BrowserSession
}

func NewSessionService(
	store selection.RecordStore,
	secret string,
	idleTimeout time.Duration,
	m *metrics.Metrics,
) *SessionService {
	return &SessionService{
		store:       store,
		secret:      secret,
		idleTimeout: idleTimeout,
		metrics:     m,
		now:         time.Now,
		sessions:    make(map[string]*BrowserSession),
	}
}

// Create starts a new session and returns the raw token for the cookie.
func (s *SessionService) Create() (string, *BrowserSession, error) {
	token, err := util.GenerateToken()
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	now := s.now()
	sess := &BrowserSession{
		ID:         uuid.NewString(),
		Controller: selection.NewController(s.store),
		CreatedAt:  now,
		lastAccess: now,
	}

	s.mu.Lock()
	s.sessions[s.hash(token)] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(count)

	log.Debug().
		Str("sessionId", sess.ID).
		Int("activeSessions", count).
		Msg("browser session created")

	return token, sess, nil
}

// Get returns the session for token and marks it used, or nil if the token
// is unknown or was evicted.
func (s *SessionService) Get(token string) *BrowserSession {
	if token == "" {
		return nil
	}

	s.mu.RLock()
	sess := s.sessions[s.hash(token)]
	s.mu.RUnlock()

	if sess != nil {
		sess.touch(s.now())
	}
	return sess
}

func (s *SessionService) Delete(token string) {
	s.mu.Lock()
	delete(s.sessions, s.hash(token))
	count := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(count)
}

// DeleteIdle evicts sessions not used within the idle timeout. Sessions with
// a store call still in flight are kept until the next pass.
func (s *SessionService) DeleteIdle(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.idleTimeout)

	s.mu.Lock()
	var evicted int64
	for key, sess := range s.sessions {
		if err := ctx.Err(); err != nil {
			s.mu.Unlock()
			return evicted, err
		}
		if sess.LastAccess().After(cutoff) || sess.Controller.Snapshot().IsBusy {
			continue
		}
		delete(s.sessions, key)
		evicted++
	}
	count := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(count)
	return evicted, nil
}

func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionService) hash(token string) string {
	return util.HmacSHA256(s.secret, token)
}
