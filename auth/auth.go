// Package auth performs the upstream login handshake and turns its outcome
// into sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/junpoanalyze/chips"
	"github.com/junpoanalyze/chips/scrape"
	"github.com/junpoanalyze/chips/upstream"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPageTimeout   = 10 * time.Second
	DefaultSignInTimeout = 15 * time.Second
)

// Path fragments of pages only a signed in player is redirected to.
var landingMarkers = []string{"store_visit_applications", "players"}

type Authenticator struct {
	NewUpstream func() (chips.Upstream, error)
	Sessions    chips.SessionStore
	Audit       chips.AuditStore

	PageTimeout   time.Duration
	SignInTimeout time.Duration
}

var _ chips.Authenticator = (*Authenticator)(nil)

func (a *Authenticator) Login(ctx context.Context, email string, password string) (chips.Session, error) {
	emailHash := chips.HashEmail(email)
	log := logrus.WithField("email", chips.ShortHash(emailHash))

	client, err := a.NewUpstream()
	if err != nil {
		err = &chips.AuthError{Kind: chips.ErrAuthUnknown, Err: fmt.Errorf("new upstream client: %w", err)}
		a.failed(ctx, log, emailHash, err)
		return chips.Session{}, err
	}

	if err := a.handshake(ctx, client, email, password); err != nil {
		a.failed(ctx, log, emailHash, err)
		return chips.Session{}, err
	}

	session, err := a.Sessions.Create(emailHash, client)
	if err != nil {
		err = &chips.AuthError{Kind: chips.ErrAuthUnknown, Err: fmt.Errorf("create session: %w", err)}
		a.failed(ctx, log, emailHash, err)
		return chips.Session{}, err
	}
	a.audit(ctx, log, emailHash, chips.Audit{Name: chips.AuditLoginSucceeded, Data: map[string]interface{}{
		"session": session.LogId(),
	}})
	log.WithField("session", session.LogId()).Infoln("Login successful.")
	return session, nil
}

func (a *Authenticator) handshake(ctx context.Context, client chips.Upstream, email string, password string) error {
	pageCtx, cancel := context.WithTimeout(ctx, orDefault(a.PageTimeout, DefaultPageTimeout))
	page, err := client.SignInPage(pageCtx)
	cancel()
	if err != nil {
		return transportError("sign in page", err)
	}

	token, ok := scrape.AuthenticityToken(page)
	if !ok {
		return &chips.AuthError{
			Kind: chips.ErrProtocolChanged,
			Err:  errors.New("authenticity_token field missing from sign in page"),
		}
	}

	signInCtx, cancel := context.WithTimeout(ctx, orDefault(a.SignInTimeout, DefaultSignInTimeout))
	landing, err := client.SignIn(signInCtx, url.Values{
		"authenticity_token": {token},
		"user[email]":        {email},
		"user[password]":     {password},
	})
	cancel()
	if err != nil {
		return transportError("sign in", err)
	}

	switch {
	case landing.StatusCode == http.StatusOK && signedInArea(landing.URL):
		return nil
	case landing.StatusCode >= http.StatusInternalServerError:
		return &chips.AuthError{
			Kind: chips.ErrAuthUnknown,
			Err:  fmt.Errorf("sign in landed on HTTP %d", landing.StatusCode),
		}
	default:
		return &chips.AuthError{Kind: chips.ErrInvalidCredentials}
	}
}

func signedInArea(u *url.URL) bool {
	if u == nil {
		return false
	}
	for _, marker := range landingMarkers {
		if strings.Contains(u.Path, marker) {
			return true
		}
	}
	return false
}

func transportError(step string, err error) error {
	if upstream.IsTimeout(err) {
		return &chips.AuthError{Kind: chips.ErrAuthTimeout, Err: fmt.Errorf("%s: %w", step, err)}
	}
	return &chips.AuthError{Kind: chips.ErrAuthUnknown, Err: fmt.Errorf("%s: %w", step, err)}
}

func (a *Authenticator) failed(ctx context.Context, log *logrus.Entry, emailHash string, err error) {
	reason := "unknown"
	var authErr *chips.AuthError
	if errors.As(err, &authErr) {
		reason = authErr.Kind.Error()
	}
	a.audit(ctx, log, emailHash, chips.Audit{Name: chips.AuditLoginFailed, Data: map[string]interface{}{
		"reason": reason,
	}})

	switch {
	case errors.Is(err, chips.ErrProtocolChanged):
		log.WithError(err).
			WithField("alert", "maintenance_required").
			Errorln("Upstream sign in page changed, login is broken.")
	case errors.Is(err, chips.ErrInvalidCredentials):
		log.Infoln("Upstream rejected credentials.")
	case errors.Is(err, chips.ErrAuthTimeout):
		log.WithError(err).Warningln("Upstream login timed out.")
	default:
		log.WithError(err).Errorln("Login failed.")
	}
}

func (a *Authenticator) audit(ctx context.Context, log *logrus.Entry, emailHash string, audit chips.Audit) {
	if a.Audit == nil {
		return
	}
	if err := a.Audit.AddEntry(ctx, emailHash, audit); err != nil {
		log.WithError(err).WithField("audit", audit.Name).Warningln("Could not add audit entry.")
	}
}

func orDefault(d time.Duration, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
