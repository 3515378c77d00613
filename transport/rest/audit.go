package rest

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/junpoanalyze/chips"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 100
)

// AuditController lists the audit trail of the signed in email.
type AuditController struct {
	Store chips.AuditStore
}

func (c *AuditController) InstallTo(requestAuthorizer fiber.Handler, app fiber.Router) {
	app.Get("/audit", combineHandlers(requestAuthorizer, c.serveAudit))
}

func (c *AuditController) serveAudit(ctx *fiber.Ctx) error {
	session, ok := sessionOf(ctx)
	if !ok {
		return errNotAuthenticated
	}
	beforeId := int64(-1)
	if raw := ctx.Query("before_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid before_id")
		}
		beforeId = id
	}
	limit := defaultAuditLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditLimit {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid limit")
		}
		limit = n
	}

	entries, err := c.Store.ByEmailHash(ctx.UserContext(), session.EmailHash, beforeId, int32(limit))
	if err != nil {
		return fmt.Errorf("get audit entries by email hash: %w", err)
	}

	type Entry struct {
		Id        int64                  `json:"id"`
		CreatedAt int64                  `json:"created_at"`
		Name      string                 `json:"name"`
		Data      map[string]interface{} `json:"data,omitempty"`
	}
	mapped := make([]Entry, len(entries))
	for i, entry := range entries {
		mapped[i] = Entry{Id: entry.Id, CreatedAt: entry.CreatedAt.Unix(), Name: entry.Name, Data: entry.Data}
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"entries": mapped,
	})
}
