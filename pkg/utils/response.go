package utils

import "github.com/gofiber/fiber/v2"

// Every endpoint answers with the same envelope: {success, data} on the
// happy path, {success, error} otherwise. List endpoints add a pagination
// object via Paginated.

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// Created wraps a freshly stored resource, typically a media record.
func Created(c *fiber.Ctx, data interface{}) error {
	return Success(c, fiber.StatusCreated, data)
}

// Accepted acknowledges an async job that will complete in the background.
func Accepted(c *fiber.Ctx, data interface{}) error {
	return Success(c, fiber.StatusAccepted, data)
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

func Paginated(c *fiber.Ctx, data interface{}, page, limit int, total int64) error {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}
