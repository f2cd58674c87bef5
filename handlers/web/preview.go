package web

import (
	"html/template"

	"dashmail/composer"
	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
)

// PreviewHandler renders a server-side preview of a session's draft
type PreviewHandler struct {
	manager *composer.SessionManager
}

// NewPreviewHandler creates a new preview handler
func NewPreviewHandler(manager *composer.SessionManager) *PreviewHandler {
	return &PreviewHandler{manager: manager}
}

// HandlePreview renders the draft as the recipient would see it
func (h *PreviewHandler) HandlePreview(c *fiber.Ctx) error {
	userID, _ := c.Locals("userId").(string)
	session, ok := h.manager.Get(c.Params("session_id"), userID)
	if !ok {
		return utils.NotFoundError("Composer session not found", nil)
	}

	draft := session.Draft()
	scheduled := ""
	if draft.ScheduledAt != nil {
		scheduled = draft.ScheduledAt.UTC().Format("Jan 02, 2006 15:04 MST")
	}
	return c.Render("preview", fiber.Map{
		"Title":       "Draft preview",
		"Recipient":   draft.Recipient,
		"Subject":     draft.Subject,
		"Important":   draft.Important,
		"Body":        template.HTML(utils.SanitizeHTML(draft.Body)),
		"Attachments": draft.Attachments,
		"ScheduledAt": scheduled,
	})
}
