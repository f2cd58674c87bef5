package api

import (
	"errors"

	"dashmail/composer"
	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
)

// ComposeHandler manages composition sessions
type ComposeHandler struct {
	manager   *composer.SessionManager
	templates *composer.Store
}

// NewComposeHandler creates a new compose handler
func NewComposeHandler(manager *composer.SessionManager, templates *composer.Store) *ComposeHandler {
	return &ComposeHandler{
		manager:   manager,
		templates: templates,
	}
}

// getSession resolves the :session_id route parameter for the current user
func (h *ComposeHandler) getSession(c *fiber.Ctx) (*composer.Session, error) {
	sessionID := c.Params("session_id")
	if sessionID == "" {
		return nil, utils.BadRequestError("Session id is required", nil)
	}
	session, ok := h.manager.Get(sessionID, CurrentUserID(c))
	if !ok {
		return nil, utils.NotFoundError(Localize(c, "error_session_not_found"), nil)
	}
	return session, nil
}

// sessionError maps composer errors to application errors
func sessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, composer.ErrSessionClosed):
		return utils.NotFoundError(Localize(c, "error_session_not_found"), err)
	case errors.Is(err, composer.ErrSubmitInFlight):
		return utils.NewAppError(409, Localize(c, "error_submit_in_flight"), err)
	case errors.Is(err, composer.ErrTemplateNotFound):
		return utils.NotFoundError(Localize(c, "error_template_not_found"), err)
	}
	var verr *composer.ValidationError
	if errors.As(err, &verr) {
		return utils.UnprocessableError(verr.Error(), err)
	}
	return utils.InternalServerError("Composer operation failed", err)
}

// HandleOpen starts a fresh composition session
func (h *ComposeHandler) HandleOpen(c *fiber.Ctx) error {
	session := h.manager.Open(CurrentUserID(c))
	utils.Log.Info("Composer session opened: %s", session.ID)
	return c.JSON(fiber.Map{
		"success":    true,
		"session_id": session.ID,
		"state":      session.State().String(),
		"draft":      session.Draft(),
	})
}

// HandleClose ends a session and releases its attachments
func (h *ComposeHandler) HandleClose(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	if !h.manager.Close(sessionID, CurrentUserID(c)) {
		return utils.NotFoundError(Localize(c, "error_session_not_found"), nil)
	}
	utils.Log.Info("Composer session closed: %s", sessionID)
	return c.JSON(fiber.Map{"success": true})
}

// HandleState returns the current session state and draft snapshot
func (h *ComposeHandler) HandleState(c *fiber.Ctx) error {
	session, err := h.getSession(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"state":   session.State().String(),
		"draft":   session.Draft(),
	})
}

// HandleSelectTemplate activates a template on the session. An unknown key
// leaves the draft untouched.
func (h *ComposeHandler) HandleSelectTemplate(c *fiber.Ctx) error {
	session, err := h.getSession(c)
	if err != nil {
		return err
	}

	var req struct {
		Key string `json:"key"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}

	rendered, err := session.SelectTemplate(h.templates, req.Key)
	if err != nil {
		return sessionError(c, err)
	}

	tpl, _ := h.templates.Lookup(req.Key)
	return c.JSON(fiber.Map{
		"success":  true,
		"template": tpl,
		"subject":  rendered.Subject,
		"body":     rendered.Body,
	})
}

// HandleField records a field edit and returns the re-rendered subject and
// body. The revision lets the client detect discarded stale edits.
func (h *ComposeHandler) HandleField(c *fiber.Ctx) error {
	session, err := h.getSession(c)
	if err != nil {
		return err
	}

	var req struct {
		Name     string `json:"name"`
		Value    string `json:"value"`
		Revision uint64 `json:"revision"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}
	if req.Name == "" {
		return utils.BadRequestError("Field name is required", nil)
	}

	rendered, applied, err := session.SetField(req.Name, req.Value, req.Revision)
	if err != nil {
		return sessionError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"applied": applied,
		"subject": rendered.Subject,
		"body":    rendered.Body,
	})
}

// HandleUpdate applies free-text edits to the draft
func (h *ComposeHandler) HandleUpdate(c *fiber.Ctx) error {
	session, err := h.getSession(c)
	if err != nil {
		return err
	}

	var req struct {
		Recipient *string `json:"recipient"`
		Subject   *string `json:"subject"`
		Body      *string `json:"body"`
		Important *bool   `json:"important"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}

	apply := func(err error) error {
		if err != nil {
			return sessionError(c, err)
		}
		return nil
	}
	if req.Recipient != nil {
		if err := apply(session.SetRecipient(*req.Recipient)); err != nil {
			return err
		}
	}
	if req.Subject != nil {
		if err := apply(session.SetSubject(*req.Subject)); err != nil {
			return err
		}
	}
	if req.Body != nil {
		if err := apply(session.SetBody(utils.SanitizeHTML(*req.Body))); err != nil {
			return err
		}
	}
	if req.Important != nil {
		if err := apply(session.SetImportant(*req.Important)); err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"draft":   session.Draft(),
	})
}
