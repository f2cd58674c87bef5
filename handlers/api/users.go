package api

import (
	"dashmail/models"
	"dashmail/storage"
	"dashmail/utils"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles dashboard user administration
type UserHandler struct {
	users *storage.UserStorage
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *storage.UserStorage) *UserHandler {
	return &UserHandler{users: users}
}

// ListUsers returns all users (admin only)
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	if !IsAdmin(c) {
		return utils.ForbiddenError("Access denied", nil)
	}

	users, err := h.users.ListUsers()
	if err != nil {
		return utils.InternalServerError("Failed to list users", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"users":   users,
	})
}

// CreateUser creates a new user (admin only)
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	if !IsAdmin(c) {
		return utils.ForbiddenError("Access denied", nil)
	}

	var req struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}
	if req.Username == "" || req.Password == "" {
		return utils.BadRequestError("Username and password are required", nil)
	}
	if req.Role == "" {
		req.Role = "editor"
	}

	user := &models.User{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		Language:    "en",
	}
	if err := h.users.CreateUser(user, req.Password); err != nil {
		return utils.BadRequestError("Failed to create user", err)
	}

	utils.Log.Info("User created: %s (role=%s)", user.Username, user.Role)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

// UpdatePassword changes the caller's own password
func (h *UserHandler) UpdatePassword(c *fiber.Ctx) error {
	username, _ := c.Locals("username").(string)
	if username == "" {
		return utils.UnauthorizedError("Missing session", nil)
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}
	if len(req.NewPassword) < 8 {
		return utils.BadRequestError("Password must be at least 8 characters", nil)
	}

	if _, err := h.users.Authenticate(username, req.CurrentPassword); err != nil {
		return utils.UnauthorizedError("Current password is incorrect", nil)
	}
	if err := h.users.UpdatePassword(username, req.NewPassword); err != nil {
		return utils.InternalServerError("Failed to update password", err)
	}

	return c.JSON(fiber.Map{"success": true})
}
