package chips

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExpired is reported when a session existed but was idle for longer
// than the store TTL. It matches ErrSessionNotFound with errors.Is.
var ErrSessionExpired = fmt.Errorf("%w: expired", ErrSessionNotFound)

// Session is one authenticated upstream identity. Sessions are passed by value;
// all copies share the same upstream client and its lease.
type Session struct {
	Id             string
	EmailHash      string
	CreatedAt      time.Time
	LastAccessedAt time.Time

	lease *clientLease
}

type clientLease struct {
	upstream Upstream
	sem      *semaphore.Weighted
}

func NewSession(id string, emailHash string, client Upstream, now time.Time) Session {
	return Session{
		Id:             id,
		EmailHash:      emailHash,
		CreatedAt:      now,
		LastAccessedAt: now,
		lease: &clientLease{
			upstream: client,
			sem:      semaphore.NewWeighted(1),
		},
	}
}

// Use runs fn with exclusive access to the session's upstream client.
// Concurrent callers on the same session wait for each other.
func (s Session) Use(ctx context.Context, fn func(client Upstream) error) error {
	if s.lease == nil {
		return ErrSessionNotFound
	}
	if err := s.lease.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire session lease: %w", err)
	}
	defer s.lease.sem.Release(1)
	return fn(s.lease.upstream)
}

func (s Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastAccessedAt) > ttl
}

// LogId is the session id prefix that is safe to write to logs.
func (s Session) LogId() string {
	return ShortHash(s.Id)
}

func ShortHash(value string) string {
	if len(value) <= 8 {
		return value
	}
	return value[:8] + "..."
}

type SessionStore interface {
	Create(emailHash string, client Upstream) (Session, error)

	// Get returns ErrSessionNotFound for unknown ids and ErrSessionExpired
	// (after removing the session) for idle ones.
	Get(id string) (Session, error)

	Delete(id string) error

	// SweepExpired removes every expired session and returns the removed ones.
	SweepExpired() []Session
}
