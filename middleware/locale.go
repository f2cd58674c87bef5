package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"dashmail/utils"
)

// LocaleMiddleware resolves the request language and stores a matching
// localizer in the request context. Resolution order: explicit ?lang
// query, the lang cookie, then the Accept-Language header. Anything
// outside the shipped catalogs falls back to English.
func LocaleMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lang := c.Query("lang")
		if lang == "" {
			lang = c.Cookies("lang")
		}
		if lang == "" {
			lang = preferredLanguage(c.Get("Accept-Language"))
		}
		if !utils.IsSupportedLanguage(lang) {
			lang = "en"
		}

		c.Locals("localizer", utils.GetLocalizer(lang))
		c.Locals("lang", lang)

		return c.Next()
	}
}

// preferredLanguage picks the first supported primary tag from an
// Accept-Language header value.
func preferredLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if i := strings.Index(tag, "-"); i > 0 {
			tag = tag[:i]
		}
		if utils.IsSupportedLanguage(tag) {
			return tag
		}
	}
	return "en"
}
