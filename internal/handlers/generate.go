package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mediagen/backend/internal/gemini"
	"github.com/mediagen/backend/internal/middleware"
	"github.com/mediagen/backend/internal/services"
	"github.com/mediagen/backend/pkg/utils"
)

type GenerateHandler struct {
	Gen *services.GenerationService
}

func NewGenerateHandler(gen *services.GenerationService) *GenerateHandler {
	return &GenerateHandler{Gen: gen}
}

type imageGenerateRequest struct {
	Prompt          string   `json:"prompt"`
	Model           string   `json:"model"`
	AspectRatio     string   `json:"aspectRatio"`
	NegativePrompt  string   `json:"negativePrompt"`
	ReferenceImages []string `json:"referenceImages"`
}

// GenerateImage runs a synchronous image generation. Quota is checked
// before the upstream call and consumed only after the result is stored.
func (h *GenerateHandler) GenerateImage(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req imageGenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Prompt == "" {
		return utils.Error(c, fiber.StatusBadRequest, "prompt is required")
	}

	record, err := h.Gen.GenerateImage(c.Context(), user, gemini.ImageRequest{
		Prompt:          req.Prompt,
		Model:           req.Model,
		AspectRatio:     req.AspectRatio,
		NegativePrompt:  req.NegativePrompt,
		ReferenceImages: req.ReferenceImages,
	}, clientIP(c))
	if err != nil {
		return serviceError(c, err)
	}

	return utils.Created(c, record)
}

type imageEditRequest struct {
	Prompt       string   `json:"prompt"`
	Model        string   `json:"model"`
	SourceImages []string `json:"sourceImages"`
}

// EditImage transforms the supplied source images under their own edit
// quota bucket.
func (h *GenerateHandler) EditImage(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req imageEditRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Prompt == "" {
		return utils.Error(c, fiber.StatusBadRequest, "prompt is required")
	}
	if len(req.SourceImages) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "at least one source image is required")
	}

	record, err := h.Gen.EditImage(c.Context(), user, gemini.EditRequest{
		Prompt:       req.Prompt,
		Model:        req.Model,
		SourceImages: req.SourceImages,
	}, clientIP(c))
	if err != nil {
		return serviceError(c, err)
	}

	return utils.Created(c, record)
}

type musicGenerateRequest struct {
	Description     string `json:"description"`
	DurationSeconds int    `json:"durationSeconds"`
	Style           string `json:"style"`
}

// GenerateMusic produces an audio clip. Music has no quota bucket.
func (h *GenerateHandler) GenerateMusic(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req musicGenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Description == "" {
		return utils.Error(c, fiber.StatusBadRequest, "description is required")
	}

	record, err := h.Gen.GenerateMusic(c.Context(), user, gemini.MusicRequest{
		Description:     req.Description,
		DurationSeconds: req.DurationSeconds,
		Style:           req.Style,
	}, clientIP(c))
	if err != nil {
		return serviceError(c, err)
	}

	return utils.Created(c, record)
}
