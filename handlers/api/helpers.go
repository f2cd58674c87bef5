package api

import (
	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// CurrentUserID returns the authenticated user's id from the request context
func CurrentUserID(c *fiber.Ctx) string {
	if id, ok := c.Locals("userId").(string); ok {
		return id
	}
	return ""
}

// IsAdmin reports whether the authenticated user has the admin role
func IsAdmin(c *fiber.Ctx) bool {
	role, ok := c.Locals("role").(string)
	return ok && role == "admin"
}

// Localize translates a message id using the request's localizer
func Localize(c *fiber.Ctx, messageID string) string {
	if localizer, ok := c.Locals("localizer").(*i18n.Localizer); ok {
		return utils.T(localizer, messageID)
	}
	return utils.T(utils.Localizer, messageID)
}
