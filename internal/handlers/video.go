package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mediagen/backend/internal/gemini"
	"github.com/mediagen/backend/internal/middleware"
	"github.com/mediagen/backend/internal/services"
	"github.com/mediagen/backend/pkg/utils"
)

type VideoHandler struct {
	Gen *services.GenerationService
}

func NewVideoHandler(gen *services.GenerationService) *VideoHandler {
	return &VideoHandler{Gen: gen}
}

type videoGenerateRequest struct {
	Prompt         string `json:"prompt"`
	Model          string `json:"model"`
	NegativePrompt string `json:"negativePrompt"`
	FirstFrame     string `json:"firstFrame"`
	LastFrame      string `json:"lastFrame"`
}

// Generate starts an asynchronous text-to-video job and returns it in
// queued state. Quota is checked up front but consumed only when the job
// completes.
func (h *VideoHandler) Generate(c *fiber.Ctx) error {
	return h.start(c, "generate", false)
}

// Animate starts an image-to-video job. The first frame is required.
func (h *VideoHandler) Animate(c *fiber.Ctx) error {
	return h.start(c, "animate", true)
}

func (h *VideoHandler) start(c *fiber.Ctx, mode string, frameRequired bool) error {
	user := middleware.GetCurrentUser(c)

	var req videoGenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Prompt == "" {
		return utils.Error(c, fiber.StatusBadRequest, "prompt is required")
	}
	if frameRequired && req.FirstFrame == "" {
		return utils.Error(c, fiber.StatusBadRequest, "firstFrame is required")
	}

	job, err := h.Gen.StartVideoJob(user, gemini.VideoRequest{
		Prompt:         req.Prompt,
		Model:          req.Model,
		NegativePrompt: req.NegativePrompt,
		FirstFrame:     req.FirstFrame,
		LastFrame:      req.LastFrame,
	}, mode, clientIP(c))
	if err != nil {
		return serviceError(c, err)
	}

	return utils.Accepted(c, job)
}

// GetJob returns one of the caller's jobs for status polling.
func (h *VideoHandler) GetJob(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	jobID, err := parseUUID(c.Params("jobId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid job ID")
	}

	job, err := h.Gen.GetJob(user.ID, jobID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, job)
}

func (h *VideoHandler) ListJobs(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	jobs, err := h.Gen.ListJobs(user.ID, 50)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, jobs)
}
