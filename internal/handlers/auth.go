package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mediagen/backend/internal/middleware"
	"github.com/mediagen/backend/internal/services"
	"github.com/mediagen/backend/pkg/logger"
	"github.com/mediagen/backend/pkg/utils"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB    *gorm.DB
	Auth  *services.AuthService
	Audit *services.AuditService
}

func NewAuthHandler(db *gorm.DB, auth *services.AuthService, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{DB: db, Auth: auth, Audit: audit}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with email and password. A first-time user (or one
// flagged for reset) gets requirePasswordSetup back instead of a token.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email and password are required")
	}

	result, err := h.Auth.Login(req.Email, req.Password)
	if err != nil {
		logger.Warn("login_failed", map[string]interface{}{"email": req.Email})
		return serviceError(c, err)
	}

	if result.RequirePasswordSetup {
		return utils.Success(c, fiber.StatusOK, fiber.Map{
			"requirePasswordSetup": true,
			"user":                 result.User,
		})
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:    &result.User.ID,
		Action:    "auth.login",
		IPAddress: clientIP(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token": result.Token,
		"user":  result.User,
	})
}

// SetPassword completes first-time setup or an admin-forced reset. It
// verifies nothing beyond the email: the account must simply be in a state
// that still accepts a password.
func (h *AuthHandler) SetPassword(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email and password are required")
	}

	result, err := h.Auth.SetPassword(req.Email, req.Password)
	if err != nil {
		return serviceError(c, err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:    &result.User.ID,
		Action:    "auth.set_password",
		IPAddress: clientIP(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token": result.Token,
		"user":  result.User,
	})
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		return utils.Error(c, fiber.StatusBadRequest, "oldPassword and newPassword are required")
	}

	if err := h.Auth.ChangePassword(user.ID, req.OldPassword, req.NewPassword); err != nil {
		return serviceError(c, err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:    &user.ID,
		Action:    "auth.change_password",
		IPAddress: clientIP(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "password updated"})
}

// Logout revokes the presented session token. Revoking an already-dead
// token still succeeds.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token := middleware.BearerToken(c)
	if token != "" {
		if err := h.Auth.Logout(token); err != nil {
			return serviceError(c, err)
		}
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "logged out"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, middleware.GetCurrentUser(c))
}
