package api

import (
	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
)

// I18nHandler handles i18n-related requests
type I18nHandler struct{}

// GetTranslations returns translations for the client-side dashboard
func (h *I18nHandler) GetTranslations(c *fiber.Ctx) error {
	lang := c.Params("lang")
	if lang == "" {
		lang = "en"
	}

	// Only allow supported languages
	if lang != "en" && lang != "ja" {
		lang = "en"
	}

	localizer := utils.GetLocalizer(lang)

	// Common translation keys for client-side use
	keys := []string{
		"message_sent_success",
		"message_scheduled_success",
		"message_draft_saved",
		"message_draft_deleted",
		"error_validation",
		"error_send_failed",
		"error_attachment_too_large",
		"error_attachment_fetch",
		"error_template_not_found",
		"error_invalid_schedule",
		"error_network",
		"error_404",
		"error_500",
		"confirm_discard_draft",
		"confirm_yes",
		"confirm_no",
	}
	translations := make(map[string]string, len(keys))
	for _, key := range keys {
		translations[key] = utils.T(localizer, key)
	}

	return c.JSON(translations)
}
