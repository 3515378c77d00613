package inmem

import (
	crand "crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/junpoanalyze/chips"
)

const DefaultSessionTTL = 2 * time.Hour

// SessionStore keeps authenticated upstream sessions in process memory.
// Sessions hold live HTTP clients, so they are never persisted.
type SessionStore struct {
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]chips.Session
	mutex    sync.Mutex
}

var _ chips.SessionStore = (*SessionStore)(nil)

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]chips.Session),
	}
}

func (s *SessionStore) Create(emailHash string, client chips.Upstream) (chips.Session, error) {
	id, err := generateSessionId()
	if err != nil {
		return chips.Session{}, fmt.Errorf("generate session id: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.sessions[id]; ok {
		return chips.Session{}, fmt.Errorf("session id collision '%s'", chips.ShortHash(id))
	}
	session := chips.NewSession(id, emailHash, client, s.now())
	s.sessions[id] = session
	return session, nil
}

func (s *SessionStore) Get(id string) (chips.Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return chips.Session{}, chips.ErrSessionNotFound
	}
	now := s.now()
	if session.Expired(now, s.ttl) {
		delete(s.sessions, id)
		return chips.Session{}, chips.ErrSessionExpired
	}
	session.LastAccessedAt = now
	s.sessions[id] = session
	return session, nil
}

func (s *SessionStore) Delete(id string) error {
	s.mutex.Lock()
	delete(s.sessions, id)
	s.mutex.Unlock()
	return nil
}

func (s *SessionStore) SweepExpired() []chips.Session {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	expired := make([]chips.Session, 0)
	for id, session := range s.sessions {
		if session.Expired(now, s.ttl) {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	return expired
}

func (s *SessionStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.sessions)
}

func generateSessionId() (string, error) {
	const idBytes = 32
	rawId := make([]byte, idBytes)
	// crypto/rand - getentropy(2)
	bytesRead, err := crand.Read(rawId)
	if err != nil {
		return "", fmt.Errorf("rand read: %w", err)
	}
	if bytesRead != idBytes {
		return "", fmt.Errorf("bytes read %d / required %d", bytesRead, idBytes)
	}
	return base64.RawURLEncoding.EncodeToString(rawId), nil
}
