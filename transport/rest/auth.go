package rest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/junpoanalyze/chips"
)

type AuthController struct {
	Authenticator chips.Authenticator
	Sessions      chips.SessionStore
	Audit         chips.AuditStore
}

func (c *AuthController) InstallTo(app fiber.Router) {
	app.Post("/login", c.serveLogin)
	app.Post("/logout", c.serveLogout)
}

func (c *AuthController) serveLogin(ctx *fiber.Ctx) error {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{}
	if err := ctx.BodyParser(&body); err != nil {
		requestLog(ctx).WithError(err).Infoln("Invalid body.")
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	email := strings.TrimSpace(body.Email)
	if email == "" || body.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Email and password required")
	}
	if !validEmail(email) {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid email format")
	}
	if !validPassword(body.Password) {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid password length")
	}

	session, err := c.Authenticator.Login(ctx.UserContext(), email, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, chips.ErrAuthTimeout):
			return fiber.NewError(fiber.StatusGatewayTimeout, "Request timeout")
		case errors.Is(err, chips.ErrInvalidCredentials):
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
		default:
			return fiber.NewError(fiber.StatusInternalServerError, "Authentication failed")
		}
	}

	return ctx.JSON(fiber.Map{
		"success":    true,
		"session_id": session.Id,
		"message":    "Login successful",
	})
}

// serveLogout always succeeds, also for unknown or missing sessions.
func (c *AuthController) serveLogout(ctx *fiber.Ctx) error {
	if id := ctx.Get(SessionHeader); id != "" {
		session, getErr := c.Sessions.Get(id)
		if err := c.Sessions.Delete(id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if getErr == nil {
			c.auditLogout(ctx, session)
			requestLog(ctx).WithField("session", session.LogId()).Infoln("Logout successful.")
		}
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"message": "Logged out",
	})
}

func (c *AuthController) auditLogout(ctx *fiber.Ctx, session chips.Session) {
	if c.Audit == nil {
		return
	}
	err := c.Audit.AddEntry(ctx.UserContext(), session.EmailHash, chips.Audit{
		Name: chips.AuditSessionEnded,
		Data: map[string]interface{}{"session": session.LogId()},
	})
	if err != nil {
		requestLog(ctx).WithError(err).Warningln("Could not add audit entry.")
	}
}
