package rest

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/junpoanalyze/chips"
)

const (
	SessionHeader    = "X-Session-ID"
	sessionLocalsKey = "session"
)

var (
	errNotAuthenticated = fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
	errSessionExpired   = fiber.NewError(fiber.StatusUnauthorized, "Session expired")
)

// RequestAuthorizer resolves the session named by the X-Session-ID header and
// stores it in the request locals.
func RequestAuthorizer(store chips.SessionStore) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		id := ctx.Get(SessionHeader)
		if id == "" {
			return errNotAuthenticated
		}
		session, err := store.Get(id)
		if err != nil {
			if errors.Is(err, chips.ErrSessionNotFound) {
				requestLog(ctx).
					WithField("session", chips.ShortHash(id)).
					WithField("expired", errors.Is(err, chips.ErrSessionExpired)).
					Infoln("Rejected unknown session.")
				return errSessionExpired
			} else {
				return fmt.Errorf("get session: %w", err)
			}
		}

		requestLog(ctx).
			WithField("session", session.LogId()).
			Debugln("Authorized access.")

		ctx.Locals(sessionLocalsKey, session)
		return nil
	}
}

func sessionOf(ctx *fiber.Ctx) (chips.Session, bool) {
	session, ok := ctx.Locals(sessionLocalsKey).(chips.Session)
	return session, ok
}
