package api

import (
	"time"

	"dashmail/composer"
	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
)

// ScheduleHandler handles the schedule dialog's preview and confirm steps
type ScheduleHandler struct {
	manager *composer.SessionManager
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(manager *composer.SessionManager) *ScheduleHandler {
	return &ScheduleHandler{manager: manager}
}

type scheduleRequest struct {
	Date          string `json:"date"`           // 2006-01-02 local wall clock
	Time          string `json:"time"`           // 15:04 local wall clock
	OffsetMinutes int    `json:"offset_minutes"` // minutes to add to local time to reach UTC
}

func (h *ScheduleHandler) getSession(c *fiber.Ctx) (*composer.Session, error) {
	session, ok := h.manager.Get(c.Params("session_id"), CurrentUserID(c))
	if !ok {
		return nil, utils.NotFoundError(Localize(c, "error_session_not_found"), nil)
	}
	return session, nil
}

// HandleOpen enters the scheduling sub-state
func (h *ScheduleHandler) HandleOpen(c *fiber.Ctx) error {
	session, err := h.getSession(c)
	if err != nil {
		return err
	}
	if err := session.OpenScheduler(); err != nil {
		return sessionError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "state": session.State().String()})
}

// HandlePreview converts a picked local date and time to its UTC instant
// without touching the draft, so the dialog can show the resolved instant
func (h *ScheduleHandler) HandlePreview(c *fiber.Ctx) error {
	var req scheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}

	instant, err := composer.ToUTCInstant(req.Date, req.Time, req.OffsetMinutes)
	if err != nil {
		return utils.BadRequestError(Localize(c, "error_invalid_schedule"), err)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"utc_instant": instant.UTC().Format(time.RFC3339),
	})
}

// HandleConfirm adopts the picked instant into the draft and returns to
// editing
func (h *ScheduleHandler) HandleConfirm(c *fiber.Ctx) error {
	session, err := h.getSession(c)
	if err != nil {
		return err
	}

	var req scheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}

	sel, err := composer.NewScheduleSelection(req.Date, req.Time, req.OffsetMinutes)
	if err != nil {
		return utils.BadRequestError(Localize(c, "error_invalid_schedule"), err)
	}
	if err := session.ConfirmSchedule(sel); err != nil {
		return sessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"state":       session.State().String(),
		"utc_instant": sel.UTCInstant.UTC().Format(time.RFC3339),
	})
}

// HandleCancel leaves the scheduling sub-state without adopting a schedule
func (h *ScheduleHandler) HandleCancel(c *fiber.Ctx) error {
	session, err := h.getSession(c)
	if err != nil {
		return err
	}
	if err := session.CancelScheduler(); err != nil {
		return sessionError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "state": session.State().String()})
}

// HandleClear reverts the draft to immediate delivery
func (h *ScheduleHandler) HandleClear(c *fiber.Ctx) error {
	session, err := h.getSession(c)
	if err != nil {
		return err
	}
	if err := session.ClearSchedule(); err != nil {
		return sessionError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
