package api

import (
	"errors"

	"dashmail/composer"
	"dashmail/dispatch"
	"dashmail/storage"
	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
)

// SubmitHandler validates and submits drafts. Immediate sends go through
// the direct transport; scheduled sends are queued for the dispatcher.
type SubmitHandler struct {
	manager       *composer.SessionManager
	outbox        *storage.Outbox
	direct        composer.Transport
	notifications *NotificationHandler
}

// NewSubmitHandler creates a new submit handler
func NewSubmitHandler(manager *composer.SessionManager, outbox *storage.Outbox, direct composer.Transport, notifications *NotificationHandler) *SubmitHandler {
	return &SubmitHandler{
		manager:       manager,
		outbox:        outbox,
		direct:        direct,
		notifications: notifications,
	}
}

// HandleSubmit submits the session's draft. Validation failures return
// field-level errors and make no transport call; transport failures keep
// the draft for retry.
func (h *SubmitHandler) HandleSubmit(c *fiber.Ctx) error {
	userID := CurrentUserID(c)
	session, ok := h.manager.Get(c.Params("session_id"), userID)
	if !ok {
		return utils.NotFoundError(Localize(c, "error_session_not_found"), nil)
	}

	recipient := session.Draft().Recipient
	transport := dispatch.NewRouter(h.outbox, h.direct, userID)
	outcome, err := session.Submit(transport)
	if err != nil {
		var verrs composer.ValidationErrors
		if errors.As(err, &verrs) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"success": false,
				"error":   Localize(c, "error_validation"),
				"fields":  verrs,
			})
		}
		if errors.Is(err, composer.ErrSubmitInFlight) || errors.Is(err, composer.ErrSessionClosed) {
			return sessionError(c, err)
		}

		// Transport failure: the draft is preserved so the user can retry
		utils.Log.Error("Submit failed for session %s: %v", session.ID, err)
		h.notifications.NotifyMessageFailed(recipient, err.Error())
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   Localize(c, "error_send_failed"),
			"retry":   true,
		})
	}

	switch outcome {
	case composer.OutcomeScheduled:
		h.notifications.NotifyMessageScheduled(recipient)
	case composer.OutcomeDiscarded:
		// The session was closed while the submit was in flight; the
		// user walked away from this composer, so nothing is announced.
	default:
		h.notifications.NotifyMessageSent(recipient)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"outcome": outcome,
		"state":   session.State().String(),
	})
}
