package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mediagen/backend/internal/config"
	"github.com/mediagen/backend/pkg/utils"
)

type MetaHandler struct {
	Config *config.Config
}

func NewMetaHandler(cfg *config.Config) *MetaHandler {
	return &MetaHandler{Config: cfg}
}

// AppConfig exposes the model catalog the frontend renders its pickers
// from. No secrets leave the server here.
func (h *MetaHandler) AppConfig(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"models": fiber.Map{
			"image": h.Config.Gemini.ImageModel,
			"video": h.Config.Gemini.VideoModel,
			"music": h.Config.Gemini.MusicModel,
		},
		"mediaRetentionDays": h.Config.Media.RetentionDays,
		"sessionTTLHours":    int(h.Config.Session.TTL.Hours()),
	})
}
