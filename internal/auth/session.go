package auth

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionCookie carries the session id of clients that send no bearer token.
const SessionCookie = "taskflow_session"

const DefaultSessionTTL = 30 * 24 * time.Hour

// Sessions keeps one IdentityProvider per client session, so every session
// has its own pseudo identity. Sessions idle for longer than the TTL are
// forgotten; a returning client then starts a new one.
type Sessions struct {
	ttl  time.Duration
	now  func() time.Time
	mint func() string

	mu   sync.Mutex
	byID map[string]*session
}

type session struct {
	provider *IdentityProvider
	lastSeen time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{ttl: ttl, now: time.Now, mint: NewPseudoID, byID: make(map[string]*session)}
}

// Resolve returns the provider of session id. An empty, unknown or expired id
// starts a new session; started reports that a new id was issued.
func (s *Sessions) Resolve(id string) (sessionID string, provider *IdentityProvider, started bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.lookupLocked(id, now); ok {
		return id, sess.provider, false
	}

	s.sweepLocked(now)
	sessionID = uuid.NewString()
	sess := &session{provider: NewIdentityProviderWith(s.mint), lastSeen: now}
	s.byID[sessionID] = sess
	return sessionID, sess.provider, true
}

// Lookup returns the provider of a live session without starting one.
func (s *Sessions) Lookup(id string) (*IdentityProvider, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.lookupLocked(id, s.now())
	if !ok {
		return nil, false
	}
	return sess.provider, true
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Sessions) lookupLocked(id string, now time.Time) (*session, bool) {
	if id == "" {
		return nil, false
	}
	sess, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	if now.Sub(sess.lastSeen) > s.ttl {
		delete(s.byID, id)
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

func (s *Sessions) sweepLocked(now time.Time) {
	for id, sess := range s.byID {
		if now.Sub(sess.lastSeen) > s.ttl {
			delete(s.byID, id)
		}
	}
}

// FromRequest resolves the session named by the request cookie and sets a
// cookie on w when a new session was started.
func (s *Sessions) FromRequest(w http.ResponseWriter, r *http.Request) *IdentityProvider {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sessionID, provider, started := s.Resolve(id)
	if started {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sessionID,
			Path:     "/",
			MaxAge:   int(s.ttl / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return provider
}

// providerFromCookie returns the provider of an existing session, if any.
func (s *Sessions) providerFromCookie(r *http.Request) (*IdentityProvider, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	return s.Lookup(c.Value)
}
