// ringside/models/services.go
package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// --- Stateful Services ---

type RateLimiter struct {
	Mu       sync.RWMutex
	Limiters map[string]*rate.Limiter
	LastSeen map[string]time.Time

	every  time.Duration
	burst  int
	expire time.Duration
}

// NewRateLimiter creates and starts a new per-IP rate limiter.
func NewRateLimiter(every time.Duration, burst int, prune, expire time.Duration) *RateLimiter {
	rl := &RateLimiter{
		Limiters: make(map[string]*rate.Limiter),
		LastSeen: make(map[string]time.Time),
		every:    every,
		burst:    burst,
		expire:   expire,
	}
	go rl.cleanup(prune)
	return rl
}

// GetLimiter retrieves or creates a rate limiter for a given IP address.
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.Mu.Lock()
	defer rl.Mu.Unlock()
	limiter, exists := rl.Limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(rl.every), rl.burst)
		rl.Limiters[ip] = limiter
	}
	rl.LastSeen[ip] = time.Now()
	return limiter
}

// cleanup periodically removes old entries from the rate limiter maps.
func (rl *RateLimiter) cleanup(prune time.Duration) {
	for range time.Tick(prune) {
		rl.Mu.Lock()
		cutoff := time.Now().Add(-rl.expire)
		for ip, lastSeen := range rl.LastSeen {
			if lastSeen.Before(cutoff) {
				delete(rl.Limiters, ip)
				delete(rl.LastSeen, ip)
			}
		}
		rl.Mu.Unlock()
	}
}

// --- Session Store ---

// Session is the in-memory snapshot of an authenticated (or anonymous-flow)
// browser session. Verification grants for anonymous content live here and
// nowhere else, so they disappear with the session.
type Session struct {
	Token     string
	UserID    int64
	Username  string
	Nickname  string
	IsAdmin   bool
	VIPTier   int
	CreatedAt time.Time

	mu            sync.Mutex
	verifications map[string]time.Time // content key -> verified_at
}

// LoggedIn reports whether the session carries an authenticated account.
func (s *Session) LoggedIn() bool {
	return s != nil && s.UserID != 0
}

// GrantVerification records a successful anonymous-secret check for a piece
// of content.
func (s *Session) GrantVerification(key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verifications == nil {
		s.verifications = make(map[string]time.Time)
	}
	s.verifications[key] = at
}

// VerificationAt returns when the session last verified the given content,
// if it has.
func (s *Session) VerificationAt(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.verifications[key]
	return at, ok
}

// ConsumeVerification removes a grant after the privileged action completes.
func (s *Session) ConsumeVerification(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.verifications, key)
}

// SessionStore keeps live sessions in memory, keyed by an opaque token.
type SessionStore struct {
	Mu       sync.RWMutex
	Sessions map[string]*Session
	ttl      time.Duration
}

// NewSessionStore creates and starts a new session store.
func NewSessionStore(ttl time.Duration) *SessionStore {
	ss := &SessionStore{
		Sessions: make(map[string]*Session),
		ttl:      ttl,
	}
	go ss.cleanup()
	return ss
}

// Create starts a new session for a user and returns it.
func (ss *SessionStore) Create(user *User) *Session {
	sess := &Session{
		Token:     uuid.New().String(),
		UserID:    user.ID,
		Username:  user.Username,
		Nickname:  user.Nickname,
		IsAdmin:   user.IsAdmin,
		VIPTier:   user.VIPTier,
		CreatedAt: time.Now(),
	}
	ss.Mu.Lock()
	ss.Sessions[sess.Token] = sess
	ss.Mu.Unlock()
	return sess
}

// CreateGuest starts a session with no account attached. Guests need one so
// anonymous verification grants have somewhere session-scoped to live.
func (ss *SessionStore) CreateGuest() *Session {
	sess := &Session{
		Token:     uuid.New().String(),
		CreatedAt: time.Now(),
	}
	ss.Mu.Lock()
	ss.Sessions[sess.Token] = sess
	ss.Mu.Unlock()
	return sess
}

// Get returns the live session for a token, if any.
func (ss *SessionStore) Get(token string) (*Session, bool) {
	ss.Mu.RLock()
	sess, ok := ss.Sessions[token]
	ss.Mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(sess.CreatedAt) > ss.ttl {
		ss.Destroy(token)
		return nil, false
	}
	return sess, true
}

// Destroy removes a session.
func (ss *SessionStore) Destroy(token string) {
	ss.Mu.Lock()
	delete(ss.Sessions, token)
	ss.Mu.Unlock()
}

// cleanup periodically drops expired sessions.
func (ss *SessionStore) cleanup() {
	for range time.Tick(1 * time.Hour) {
		ss.Mu.Lock()
		for token, sess := range ss.Sessions {
			if time.Since(sess.CreatedAt) > ss.ttl {
				delete(ss.Sessions, token)
			}
		}
		ss.Mu.Unlock()
	}
}
