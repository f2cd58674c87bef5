package api

import (
	"time"

	"dashmail/config"
	"dashmail/storage"
	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const sessionCookie = "dashmail_session"

// SessionClaims are the JWT claims carried by the session cookie
type SessionClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AuthHandler handles login and logout
type AuthHandler struct {
	config *config.Config
	users  *storage.UserStorage
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(cfg *config.Config, users *storage.UserStorage) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		users:  users,
	}
}

// HandleLogin verifies credentials and issues a session token
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}
	if req.Username == "" || req.Password == "" {
		return utils.BadRequestError("Username and password are required", nil)
	}

	user, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		return utils.UnauthorizedError("Invalid credentials", nil)
	}

	claims := SessionClaims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.config.JWT.Secret))
	if err != nil {
		return utils.InternalServerError("Failed to create session", err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    signed,
		MaxAge:   24 * 60 * 60,
		HTTPOnly: true,
		SameSite: "Strict",
	})

	utils.Log.Info("User logged in: %s", user.Username)
	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":           user.ID,
			"username":     user.Username,
			"display_name": user.DisplayName,
			"role":         user.Role,
		},
	})
}

// HandleLogout clears the session cookie
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		MaxAge:   -1,
		HTTPOnly: true,
		SameSite: "Strict",
	})
	return c.JSON(fiber.Map{"success": true})
}

// SessionMiddleware validates the session token and stores the user
// identity in the request context
func SessionMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(sessionCookie)
		if tokenString == "" {
			// Fall back to a bearer token for API clients
			auth := c.Get("Authorization")
			if len(auth) > 7 && auth[:7] == "Bearer " {
				tokenString = auth[7:]
			}
		}
		if tokenString == "" {
			return utils.UnauthorizedError("Missing session", nil)
		}

		claims := &SessionClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWT.Secret), nil
		})
		if err != nil || !token.Valid {
			return utils.UnauthorizedError("Invalid session", err)
		}

		c.Locals("userId", claims.Subject)
		c.Locals("username", claims.Username)
		c.Locals("role", claims.Role)
		return c.Next()
	}
}
