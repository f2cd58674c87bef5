package api

import (
	"dashmail/composer"
	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
)

// TemplateHandler serves the bundled template catalog
type TemplateHandler struct {
	store *composer.Store
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(store *composer.Store) *TemplateHandler {
	return &TemplateHandler{store: store}
}

// ListTemplates returns the full catalog
func (h *TemplateHandler) ListTemplates(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":   true,
		"templates": h.store.List(),
	})
}

// GetTemplate returns a single template by key
func (h *TemplateHandler) GetTemplate(c *fiber.Ctx) error {
	key := c.Params("key")
	tpl, ok := h.store.Lookup(key)
	if !ok {
		return utils.NotFoundError(Localize(c, "error_template_not_found"), nil)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"template": tpl,
	})
}
