package rest

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/junpoanalyze/chips"
)

const (
	defaultStoreId        = "6"
	defaultBatchLimit     = 24
	defaultRequestTimeout = 2 * time.Minute
)

type HistoryController struct {
	Service chips.HistoryService
	// Sessions, when set, drops sessions the upstream has signed out.
	Sessions   chips.SessionStore
	BatchLimit int
	// RequestTimeout bounds a whole request, including waiting for a session
	// that is busy with another request.
	RequestTimeout time.Duration
}

func (c *HistoryController) InstallTo(requestAuthorizer fiber.Handler, app fiber.Router) {
	app.Get("/chip_histories", combineHandlers(requestAuthorizer, c.serveChipHistories))
	app.Post("/chip_histories_batch", combineHandlers(requestAuthorizer, c.serveChipHistoriesBatch))
	app.Get("/stores", combineHandlers(requestAuthorizer, c.serveStores))
}

func (c *HistoryController) requestContext(ctx *fiber.Ctx) (context.Context, context.CancelFunc) {
	timeout := c.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(ctx.UserContext(), timeout)
}

func (c *HistoryController) serveChipHistories(ctx *fiber.Ctx) error {
	session, ok := sessionOf(ctx)
	if !ok {
		return errNotAuthenticated
	}
	storeId := ctx.Query("store_id", defaultStoreId)
	if !validStoreId(storeId) {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid store ID")
	}
	month := ctx.Query("month")
	if month != "" && !validPeriod(month) {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid month format")
	}

	reqCtx, cancel := c.requestContext(ctx)
	defer cancel()
	records, err := c.Service.FetchPeriod(reqCtx, session, chips.StoreId(storeId), chips.PeriodKey(month))
	if err != nil {
		return c.fetchFailure(ctx, err, "Failed to fetch data")
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"data":    nonNil(records),
	})
}

func (c *HistoryController) serveChipHistoriesBatch(ctx *fiber.Ctx) error {
	session, ok := sessionOf(ctx)
	if !ok {
		return errNotAuthenticated
	}
	body := struct {
		StoreId string   `json:"store_id"`
		Months  []string `json:"months"`
	}{}
	if err := ctx.BodyParser(&body); err != nil {
		requestLog(ctx).WithError(err).Infoln("Invalid body.")
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if body.StoreId == "" {
		body.StoreId = defaultStoreId
	}
	if !validStoreId(body.StoreId) {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid store ID")
	}
	if len(body.Months) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "No months provided")
	}
	limit := c.BatchLimit
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	if len(body.Months) > limit {
		return fiber.NewError(fiber.StatusBadRequest, "Too many months requested")
	}
	periods := make([]chips.PeriodKey, len(body.Months))
	for i, month := range body.Months {
		if !validPeriod(month) {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid month format: "+month)
		}
		periods[i] = chips.PeriodKey(month)
	}

	reqCtx, cancel := c.requestContext(ctx)
	defer cancel()
	records, err := c.Service.FetchBatch(reqCtx, session, chips.StoreId(body.StoreId), periods)
	if err != nil {
		if errors.Is(err, chips.ErrBatchTooLarge) {
			return fiber.NewError(fiber.StatusBadRequest, "Too many months requested")
		}
		return c.fetchFailure(ctx, err, "Failed to fetch data")
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"data":    nonNil(records),
	})
}

func (c *HistoryController) serveStores(ctx *fiber.Ctx) error {
	session, ok := sessionOf(ctx)
	if !ok {
		return errNotAuthenticated
	}
	reqCtx, cancel := c.requestContext(ctx)
	defer cancel()
	stores, err := c.Service.ListStores(reqCtx, session)
	if err != nil {
		return c.fetchFailure(ctx, err, "Failed to fetch stores")
	}
	if stores == nil {
		stores = []chips.Store{}
	}
	return ctx.JSON(fiber.Map{
		"success": true,
		"stores":  stores,
	})
}

// fetchFailure logs the cause and maps it to a client facing error.
func (c *HistoryController) fetchFailure(ctx *fiber.Ctx, err error, message string) error {
	requestLog(ctx).WithError(err).Warningln("Fetch failed.")
	switch {
	case errors.Is(err, chips.ErrFetchTimeout), errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "Request timeout")
	case errors.Is(err, chips.ErrSessionNotFound):
		return errSessionExpired
	case errors.Is(err, chips.ErrSignedOut):
		if session, ok := sessionOf(ctx); ok && c.Sessions != nil {
			if err := c.Sessions.Delete(session.Id); err != nil {
				requestLog(ctx).WithError(err).Warningln("Could not delete signed out session.")
			} else {
				requestLog(ctx).WithField("session", session.LogId()).Infoln("Deleted signed out session.")
			}
		}
		return errSessionExpired
	default:
		return fiber.NewError(fiber.StatusInternalServerError, message)
	}
}

func nonNil(records []chips.HistoryRecord) []chips.HistoryRecord {
	if records == nil {
		return []chips.HistoryRecord{}
	}
	return records
}
