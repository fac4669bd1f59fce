package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mediagen/backend/internal/services"
	"github.com/mediagen/backend/pkg/utils"
	"gorm.io/gorm"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// clientIP resolves the caller address behind reverse proxies, for the
// abuse-tracking columns on media rows.
func clientIP(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	return c.IP()
}

// serviceError maps service sentinel errors onto the response envelope.
func serviceError(c *fiber.Ctx, err error) error {
	var denied *services.QuotaDeniedError

	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		return utils.Error(c, fiber.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, services.ErrSessionInvalid):
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired session token")
	case errors.Is(err, services.ErrAccountInactive):
		return utils.Error(c, fiber.StatusForbidden, "account is deactivated, contact an administrator")
	case errors.Is(err, services.ErrNotOwned):
		return utils.Error(c, fiber.StatusForbidden, "user is not managed by this admin")
	case errors.Is(err, services.ErrUserNotFound):
		return utils.Error(c, fiber.StatusNotFound, "user not found")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return utils.Error(c, fiber.StatusNotFound, "not found")
	case errors.Is(err, services.ErrPasswordAlreadySet):
		return utils.Error(c, fiber.StatusConflict, "password has already been set")
	case errors.As(err, &denied):
		return utils.Error(c, fiber.StatusTooManyRequests, denied.Error())
	case errors.Is(err, services.ErrQuotaExceeded):
		return utils.Error(c, fiber.StatusTooManyRequests, "quota exceeded")
	case errors.Is(err, services.ErrUpstreamGeneration):
		return utils.Error(c, fiber.StatusBadGateway, "generation failed, please try again later")
	case services.IsValidation(err):
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	default:
		return utils.Error(c, fiber.StatusInternalServerError, "internal error")
	}
}
