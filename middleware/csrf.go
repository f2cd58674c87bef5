package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"github.com/gofiber/fiber/v2"

	"dashmail/utils"
)

// CSRFConfig controls the double-submit cookie check applied to
// mutating compose and admin routes.
type CSRFConfig struct {
	TokenLength  int
	CookieName   string
	HeaderName   string
	ContextKey   string
	CookieMaxAge int
	// Skipper exempts a request from the check. The API uses it to
	// let bearer-token clients bypass cookie CSRF.
	Skipper func(*fiber.Ctx) bool
}

// DefaultCSRFConfig returns the configuration used when none is given.
func DefaultCSRFConfig() CSRFConfig {
	return CSRFConfig{
		TokenLength:  32,
		CookieName:   "csrf_token",
		HeaderName:   "X-CSRF-Token",
		ContextKey:   "csrf",
		CookieMaxAge: 3600,
	}
}

// CSRFProtection enforces the double-submit cookie scheme: the SPA
// fetches a token from /api/csrf and echoes it back in a header on
// every mutating request. Safe methods pass through untouched.
func CSRFProtection(config ...CSRFConfig) fiber.Handler {
	cfg := DefaultCSRFConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	return func(c *fiber.Ctx) error {
		if cfg.Skipper != nil && cfg.Skipper(c) {
			return c.Next()
		}

		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		cookieToken := c.Cookies(cfg.CookieName)
		headerToken := c.Get(cfg.HeaderName)
		if cookieToken == "" || headerToken == "" {
			return utils.NewAppError(fiber.StatusForbidden, "CSRF token missing", nil)
		}
		if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
			return utils.NewAppError(fiber.StatusForbidden, "CSRF token mismatch", nil)
		}

		return c.Next()
	}
}

// GenerateCSRFToken mints a fresh token, installs the cookie half of
// the double-submit pair, and returns the header half to the caller.
func GenerateCSRFToken(c *fiber.Ctx, config ...CSRFConfig) string {
	cfg := DefaultCSRFConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	buf := make([]byte, cfg.TokenLength)
	if _, err := rand.Read(buf); err != nil {
		utils.Log.Error("csrf token generation failed: %v", err)
		return ""
	}
	token := base64.URLEncoding.EncodeToString(buf)

	c.Cookie(&fiber.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		MaxAge:   cfg.CookieMaxAge,
		HTTPOnly: true,
		SameSite: "Strict",
	})
	c.Locals(cfg.ContextKey, token)

	return token
}
