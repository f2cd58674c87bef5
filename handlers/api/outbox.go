package api

import (
	"dashmail/storage"
	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
)

// OutboxHandler exposes the user's pending scheduled messages
type OutboxHandler struct {
	outbox *storage.Outbox
}

// NewOutboxHandler creates a new outbox handler
func NewOutboxHandler(outbox *storage.Outbox) *OutboxHandler {
	return &OutboxHandler{outbox: outbox}
}

// HandleList returns the user's queued scheduled messages, soonest first
func (h *OutboxHandler) HandleList(c *fiber.Ctx) error {
	jobs, err := h.outbox.List(CurrentUserID(c))
	if err != nil {
		return utils.InternalServerError("Failed to list scheduled messages", err)
	}

	type entry struct {
		ID       string `json:"id"`
		To       string `json:"to"`
		Subject  string `json:"subject"`
		RunAt    string `json:"run_at"`
		Attempts int    `json:"attempts"`
	}
	out := make([]entry, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, entry{
			ID:       job.ID,
			To:       job.Payload.To,
			Subject:  job.Payload.Subject,
			RunAt:    job.RunAt.Format("2006-01-02T15:04:05Z07:00"),
			Attempts: job.Attempts,
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"scheduled": out,
	})
}

// HandleCancel withdraws a queued scheduled message before delivery
func (h *OutboxHandler) HandleCancel(c *fiber.Ctx) error {
	userID := CurrentUserID(c)
	jobID := c.Params("job_id")

	jobs, err := h.outbox.List(userID)
	if err != nil {
		return utils.InternalServerError("Failed to list scheduled messages", err)
	}
	for _, job := range jobs {
		if job.ID != jobID {
			continue
		}
		if err := h.outbox.Delete(jobID); err != nil {
			return utils.InternalServerError("Failed to cancel scheduled message", err)
		}
		utils.Log.Info("Scheduled message cancelled: %s", jobID)
		return c.JSON(fiber.Map{"success": true})
	}
	return utils.NotFoundError(Localize(c, "error_job_not_found"), nil)
}
