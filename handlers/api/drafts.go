package api

import (
	"strconv"

	"dashmail/composer"
	"dashmail/models"
	"dashmail/storage"
	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
)

// DraftHandler persists parked drafts and restores them into sessions
type DraftHandler struct {
	manager *composer.SessionManager
	drafts  *storage.DraftStorage
}

// NewDraftHandler creates a new draft handler
func NewDraftHandler(manager *composer.SessionManager, drafts *storage.DraftStorage) *DraftHandler {
	return &DraftHandler{
		manager: manager,
		drafts:  drafts,
	}
}

// HandleSave parks the session's current draft. Staged attachments stay
// with the live session; only the text fields are persisted.
func (h *DraftHandler) HandleSave(c *fiber.Ctx) error {
	userID := CurrentUserID(c)
	session, ok := h.manager.Get(c.Params("session_id"), userID)
	if !ok {
		return utils.NotFoundError(Localize(c, "error_session_not_found"), nil)
	}

	draft := session.Draft()
	draftID := c.Query("draft_id")
	if err := h.drafts.SaveDraft(userID, draftID, &draft); err != nil {
		return utils.InternalServerError("Failed to save draft", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": Localize(c, "message_draft_saved"),
		"draft":   draft,
	})
}

// HandleList returns the user's saved drafts, paginated newest first
func (h *DraftHandler) HandleList(c *fiber.Ctx) error {
	userID := CurrentUserID(c)

	drafts, err := h.drafts.GetDrafts(userID)
	if err != nil {
		return utils.InternalServerError("Failed to list drafts", err)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	total := len(drafts)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return c.JSON(fiber.Map{
		"success": true,
		"result":  models.NewPaginatedDrafts(drafts[start:end], uint32(page), uint32(pageSize), uint32(total)),
	})
}

// HandleGet returns one saved draft
func (h *DraftHandler) HandleGet(c *fiber.Ctx) error {
	draft, err := h.drafts.GetDraft(CurrentUserID(c), c.Params("draft_id"))
	if err != nil {
		return utils.NotFoundError(Localize(c, "error_draft_not_found"), err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"draft":   draft,
	})
}

// HandleRestore loads a saved draft into an open session
func (h *DraftHandler) HandleRestore(c *fiber.Ctx) error {
	userID := CurrentUserID(c)
	session, ok := h.manager.Get(c.Params("session_id"), userID)
	if !ok {
		return utils.NotFoundError(Localize(c, "error_session_not_found"), nil)
	}

	draft, err := h.drafts.GetDraft(userID, c.Params("draft_id"))
	if err != nil {
		return utils.NotFoundError(Localize(c, "error_draft_not_found"), err)
	}
	if err := session.Restore(draft); err != nil {
		return sessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"draft":   session.Draft(),
	})
}

// HandleDelete deletes a saved draft
func (h *DraftHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.drafts.DeleteDraft(CurrentUserID(c), c.Params("draft_id")); err != nil {
		return utils.NotFoundError(Localize(c, "error_draft_not_found"), err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": Localize(c, "message_draft_deleted"),
	})
}
