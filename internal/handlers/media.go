package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/mediagen/backend/internal/middleware"
	"github.com/mediagen/backend/internal/models"
	"github.com/mediagen/backend/internal/services"
	"github.com/mediagen/backend/pkg/logger"
	"github.com/mediagen/backend/pkg/mediatoken"
	"github.com/mediagen/backend/pkg/utils"
	"gorm.io/gorm"
)

type MediaHandler struct {
	DB      *gorm.DB
	Auth    *services.AuthService
	Admin   *services.AdminService
	Storage services.MediaStorage
	Audit   *services.AuditService
}

func NewMediaHandler(db *gorm.DB, auth *services.AuthService, admin *services.AdminService, storage services.MediaStorage, audit *services.AuditService) *MediaHandler {
	return &MediaHandler{DB: db, Auth: auth, Admin: admin, Storage: storage, Audit: audit}
}

// List returns the caller's gallery, newest first, optionally filtered by
// media type.
func (h *MediaHandler) List(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	params := utils.ParsePagination(c)

	query := h.DB.Model(&models.MediaRecord{}).Where("owner_id = ?", user.ID)
	if mediaType := c.Query("type"); mediaType != "" {
		query = query.Where("type = ?", mediaType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return serviceError(c, err)
	}

	var records []models.MediaRecord
	if err := utils.ApplyPagination(query.Order("created_at DESC"), params).Find(&records).Error; err != nil {
		return serviceError(c, err)
	}

	return utils.Paginated(c, records, params.Page, params.Limit, total)
}

// Get streams the stored bytes. Browsers load media through src attributes
// that cannot carry an Authorization header, so a short-lived signed token
// in the query string is accepted as an alternative to a bearer session.
func (h *MediaHandler) Get(c *fiber.Ctx) error {
	mediaID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid media ID")
	}

	var record models.MediaRecord
	if err := h.DB.First(&record, "id = ?", mediaID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "media not found")
		}
		return serviceError(c, err)
	}

	if err := h.authorizeViewer(c, &record); err != nil {
		return serviceError(c, err)
	}

	data, err := h.Storage.Fetch(c.Context(), record.StoragePath)
	if err != nil {
		logger.Error("media_fetch_failed", err, map[string]interface{}{
			"mediaID": record.ID.String(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed to load media")
	}

	c.Set("Content-Type", record.MimeType)
	c.Set("Cache-Control", "private, max-age=3600")
	return c.Send(data)
}

// URL mints a signed link for the media element, usable without a session
// header until the token expires.
func (h *MediaHandler) URL(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	mediaID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid media ID")
	}

	var record models.MediaRecord
	if err := h.DB.First(&record, "id = ?", mediaID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "media not found")
		}
		return serviceError(c, err)
	}
	if err := h.requireViewable(user, &record); err != nil {
		return serviceError(c, err)
	}

	token, err := mediatoken.Generate(record.ID)
	if err != nil {
		return serviceError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"url": fmt.Sprintf("/api/media/%s?token=%s", record.ID, token),
	})
}

// Delete removes a media record. The owner may delete their own media and
// a managing admin may delete their users' media. The stored object goes
// first; the row survives a failed object delete so a later sweep can retry.
func (h *MediaHandler) Delete(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	mediaID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid media ID")
	}

	var record models.MediaRecord
	if err := h.DB.First(&record, "id = ?", mediaID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "media not found")
		}
		return serviceError(c, err)
	}
	if err := h.requireViewable(user, &record); err != nil {
		return serviceError(c, err)
	}

	if err := h.Storage.Delete(c.Context(), record.StoragePath); err != nil {
		logger.Error("media_delete_failed", err, map[string]interface{}{
			"mediaID": record.ID.String(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed to delete media")
	}
	if err := h.DB.Delete(&record).Error; err != nil {
		return serviceError(c, err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:     &user.ID,
		Action:     "media.delete",
		ResourceID: &record.ID,
		IPAddress:  clientIP(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "media deleted"})
}

// authorizeViewer accepts either a signed media token bound to this record
// or a bearer session belonging to a permitted viewer.
func (h *MediaHandler) authorizeViewer(c *fiber.Ctx, record *models.MediaRecord) error {
	if token := c.Query("token"); token != "" {
		tokenMediaID, err := mediatoken.Validate(token)
		if err != nil || tokenMediaID != record.ID {
			return services.ErrSessionInvalid
		}
		return nil
	}

	token := middleware.BearerToken(c)
	if token == "" {
		return services.ErrSessionInvalid
	}
	user, err := h.Auth.ResolveSession(token)
	if err != nil {
		return err
	}
	return h.requireViewable(user, record)
}

// requireViewable permits the owner and any admin managing the owner.
func (h *MediaHandler) requireViewable(user *models.User, record *models.MediaRecord) error {
	if user.ID == record.OwnerID {
		return nil
	}
	if user.Role == models.UserRoleAdmin {
		owns, err := h.Admin.Owns(user.ID, record.OwnerID)
		if err != nil {
			return err
		}
		if owns {
			return nil
		}
	}
	return services.ErrNotOwned
}
