// Package sweeper periodically drops idle sessions.
package sweeper

import (
	"context"
	"time"

	"github.com/junpoanalyze/chips"
	"github.com/sirupsen/logrus"
)

const DefaultInterval = time.Hour

type Sweeper struct {
	Store    chips.SessionStore
	Audit    chips.AuditStore
	Interval time.Duration
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logrus.WithField("interval", interval).Debugln("Session sweeper started.")
	for {
		select {
		case <-ctx.Done():
			logrus.Debugln("Session sweeper stopped.")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep removes expired sessions once and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	expired := s.Store.SweepExpired()
	for _, session := range expired {
		if s.Audit == nil {
			continue
		}
		err := s.Audit.AddEntry(ctx, session.EmailHash, chips.Audit{
			Name: chips.AuditSessionExpired,
			Data: map[string]interface{}{"session": session.LogId()},
		})
		if err != nil {
			logrus.WithError(err).WithField("session", session.LogId()).Warningln("Could not add audit entry.")
		}
	}
	if len(expired) > 0 {
		logrus.WithField("sessions", len(expired)).Infoln("Swept expired sessions.")
	}
	return len(expired)
}
