package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mediagen/backend/internal/middleware"
	"github.com/mediagen/backend/internal/models"
	"github.com/mediagen/backend/internal/services"
	"github.com/mediagen/backend/pkg/utils"
)

type QuotasHandler struct {
	Quotas *services.QuotaService
	Admin  *services.AdminService
	Audit  *services.AuditService
}

func NewQuotasHandler(quotas *services.QuotaService, admin *services.AdminService, audit *services.AuditService) *QuotasHandler {
	return &QuotasHandler{Quotas: quotas, Admin: admin, Audit: audit}
}

type quotaView struct {
	ResourceType models.ResourceType `json:"resourceType"`
	Mode         models.QuotaMode    `json:"mode"`
	Limit        int                 `json:"limit"`
	Used         int                 `json:"used"`
	Remaining    int                 `json:"remaining"`
}

func quotaViews(quotas []models.Quota) []quotaView {
	views := make([]quotaView, 0, len(quotas))
	for _, q := range quotas {
		views = append(views, quotaView{
			ResourceType: q.ResourceType,
			Mode:         q.Mode,
			Limit:        q.Limit,
			Used:         q.Used,
			Remaining:    q.Remaining(),
		})
	}
	return views
}

// Mine returns the caller's quota ledger, creating any missing rows with
// the configured defaults.
func (h *QuotasHandler) Mine(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	if err := h.Quotas.EnsureDefaults(user.ID); err != nil {
		return serviceError(c, err)
	}
	quotas, err := h.Quotas.List(user.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, quotaViews(quotas))
}

// AdminGet returns a managed user's quota ledger.
func (h *QuotasHandler) AdminGet(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user ID")
	}
	if err := h.Admin.RequireOwned(admin.ID, userID); err != nil {
		return serviceError(c, err)
	}

	if err := h.Quotas.EnsureDefaults(userID); err != nil {
		return serviceError(c, err)
	}
	quotas, err := h.Quotas.List(userID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, quotaViews(quotas))
}

type quotaUpdateRequest struct {
	ResourceType models.ResourceType `json:"resourceType"`
	Mode         models.QuotaMode    `json:"mode"`
	Limit        *int                `json:"limit"`
}

// AdminUpdate rewrites the mode and limit of one quota row. Switching to
// unlimited keeps the stored limit so a later switch back restores it.
func (h *QuotasHandler) AdminUpdate(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user ID")
	}
	if err := h.Admin.RequireOwned(admin.ID, userID); err != nil {
		return serviceError(c, err)
	}

	var req quotaUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	quota, err := h.Quotas.SetLimits(userID, req.ResourceType, req.Mode, req.Limit)
	if err != nil {
		return serviceError(c, err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &admin.ID,
		Action:       "quota.update",
		ResourceType: string(req.ResourceType),
		ResourceID:   &userID,
		Details: map[string]interface{}{
			"mode":  quota.Mode,
			"limit": quota.Limit,
		},
		IPAddress: clientIP(c),
	})

	return utils.Success(c, fiber.StatusOK, quotaViews([]models.Quota{*quota})[0])
}

type quotaResetRequest struct {
	ResourceType models.ResourceType `json:"resourceType"`
}

// AdminReset zeroes the used counter of one quota row.
func (h *QuotasHandler) AdminReset(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user ID")
	}
	if err := h.Admin.RequireOwned(admin.ID, userID); err != nil {
		return serviceError(c, err)
	}

	var req quotaResetRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	quota, err := h.Quotas.Reset(userID, req.ResourceType)
	if err != nil {
		return serviceError(c, err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &admin.ID,
		Action:       "quota.reset",
		ResourceType: string(req.ResourceType),
		ResourceID:   &userID,
		IPAddress:    clientIP(c),
	})

	return utils.Success(c, fiber.StatusOK, quotaViews([]models.Quota{*quota})[0])
}
