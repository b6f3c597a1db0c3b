package intake

import (
	"sync"
	"time"

	"docproc/constants"
	"docproc/internal/entity"
)

// SessionStore keeps per-sender conversational state. Sessions are
// short-lived and safe to lose on restart; an expired or missing session just
// means the sender starts from idle.
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*entity.Session
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{
		ttl:      ttl,
		sessions: make(map[string]*entity.Session),
		now:      time.Now,
	}
}

// Load returns the sender's session, creating an idle one when none exists
// or the previous one has expired.
func (s *SessionStore) Load(sender string) *entity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sender]
	if ok && s.now().Sub(sess.UpdatedAt) <= s.ttl {
		cp := *sess
		return &cp
	}

	fresh := &entity.Session{
		ChannelIdentity: sender,
		State:           constants.SessionIdle,
		UpdatedAt:       s.now(),
	}
	s.sessions[sender] = fresh
	cp := *fresh
	return &cp
}

// Save persists the session under its sender key.
func (s *SessionStore) Save(sess *entity.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.UpdatedAt = s.now()
	cp := *sess
	s.sessions[sess.ChannelIdentity] = &cp
}

// Clear drops the sender's session entirely.
func (s *SessionStore) Clear(sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sender)
}

// Sweep removes expired sessions; call periodically from a housekeeping loop.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	cutoff := s.now().Add(-s.ttl)
	for sender, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, sender)
			removed++
		}
	}
	return removed
}
