package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mediagen/backend/internal/middleware"
	"github.com/mediagen/backend/internal/models"
	"github.com/mediagen/backend/internal/services"
	"github.com/mediagen/backend/pkg/utils"
	"gorm.io/gorm"
)

type UsersHandler struct {
	DB     *gorm.DB
	Admin  *services.AdminService
	Quotas *services.QuotaService
	Audit  *services.AuditService
}

func NewUsersHandler(db *gorm.DB, admin *services.AdminService, quotas *services.QuotaService, audit *services.AuditService) *UsersHandler {
	return &UsersHandler{DB: db, Admin: admin, Quotas: quotas, Audit: audit}
}

type bulkCreateRequest struct {
	Emails        []string                                             `json:"emails"`
	DefaultQuotas map[models.ResourceType]services.DefaultQuotaSetting `json:"defaultQuotas"`
	DefaultTags   []string                                             `json:"defaultTags"`
}

// BulkCreate provisions one user per email under the calling admin.
// Individual failures are reported per entry; the batch never aborts.
func (h *UsersHandler) BulkCreate(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	var req bulkCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Emails) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "emails is required")
	}

	results := h.Admin.BulkCreate(admin.ID, req.Emails, req.DefaultQuotas, req.DefaultTags)

	created := 0
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		} else if r.IsNew {
			created++
		}
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID: &admin.ID,
		Action: "users.bulk_create",
		Details: map[string]interface{}{
			"requested": len(req.Emails),
			"created":   created,
			"failed":    failed,
		},
		IPAddress: clientIP(c),
	})

	return utils.Created(c, fiber.Map{
		"results": results,
		"created": created,
		"failed":  failed,
	})
}

type managedUserView struct {
	models.User
	Tags       []string    `json:"tags"`
	Quotas     []quotaView `json:"quotas"`
	SharedWith []string    `json:"sharedWith,omitempty"`
}

func (h *UsersHandler) managedView(adminID uuid.UUID, user models.User) (*managedUserView, error) {
	tags, err := h.Admin.ListTags(user.ID)
	if err != nil {
		return nil, err
	}
	quotas, err := h.Quotas.List(user.ID)
	if err != nil {
		return nil, err
	}
	shared, err := h.Admin.OtherAdminEmails(user.ID, adminID)
	if err != nil {
		return nil, err
	}
	return &managedUserView{
		User:       user,
		Tags:       tags,
		Quotas:     quotaViews(quotas),
		SharedWith: shared,
	}, nil
}

// List returns every user managed by the calling admin, with tags and the
// quota ledger inlined.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	users, err := h.Admin.OwnedUsers(admin.ID)
	if err != nil {
		return serviceError(c, err)
	}

	views := make([]managedUserView, 0, len(users))
	for _, u := range users {
		view, err := h.managedView(admin.ID, u)
		if err != nil {
			return serviceError(c, err)
		}
		views = append(views, *view)
	}
	return utils.Success(c, fiber.StatusOK, views)
}

func (h *UsersHandler) Get(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user ID")
	}
	if err := h.Admin.RequireOwned(admin.ID, userID); err != nil {
		return serviceError(c, err)
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return serviceError(c, services.ErrUserNotFound)
		}
		return serviceError(c, err)
	}

	view, err := h.managedView(admin.ID, user)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, view)
}

type userUpdateRequest struct {
	IsActive           *bool `json:"isActive"`
	ForcePasswordReset *bool `json:"forcePasswordReset"`
}

// Update patches activation state or forces a password reset. A forced
// reset takes effect on the user's next login; live sessions stay valid
// until they expire or they log out.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user ID")
	}

	var req userUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.IsActive == nil && req.ForcePasswordReset == nil {
		return utils.Error(c, fiber.StatusBadRequest, "nothing to update")
	}

	user, err := h.Admin.UpdateUser(admin.ID, userID, services.UserPatch{
		IsActive:           req.IsActive,
		ForcePasswordReset: req.ForcePasswordReset,
	})
	if err != nil {
		return serviceError(c, err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:     &admin.ID,
		Action:     "users.update",
		ResourceID: &userID,
		Details: map[string]interface{}{
			"isActive":             user.IsActive,
			"requirePasswordReset": user.RequirePasswordReset,
		},
		IPAddress: clientIP(c),
	})

	return utils.Success(c, fiber.StatusOK, user)
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

// SetTags replaces a user's tag set. Tags are normalized before storage;
// an empty list clears them.
func (h *UsersHandler) SetTags(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user ID")
	}
	if err := h.Admin.RequireOwned(admin.ID, userID); err != nil {
		return serviceError(c, err)
	}

	var req tagsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	tags, err := h.Admin.SetTags(userID, req.Tags)
	if err != nil {
		return serviceError(c, err)
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:     &admin.ID,
		Action:     "users.set_tags",
		ResourceID: &userID,
		Details:    map[string]interface{}{"tags": tags},
		IPAddress:  clientIP(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"tags": tags})
}

// AllTags returns the distinct tags across the calling admin's users.
func (h *UsersHandler) AllTags(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	tags, err := h.Admin.ListAllTags(admin.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"tags": tags})
}

// adminMediaView re-exposes the request IP that the gallery serialization
// hides from end users. Admins use it for abuse tracking.
type adminMediaView struct {
	models.MediaRecord
	IPAddress string `json:"ipAddress,omitempty"`
}

// Generations lists a managed user's media records, newest first.
func (h *UsersHandler) Generations(c *fiber.Ctx) error {
	admin := middleware.GetCurrentUser(c)

	userID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user ID")
	}
	if err := h.Admin.RequireOwned(admin.ID, userID); err != nil {
		return serviceError(c, err)
	}

	params := utils.ParsePagination(c)

	query := h.DB.Model(&models.MediaRecord{}).Where("owner_id = ?", userID)
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

	views := make([]adminMediaView, 0, len(records))
	for _, record := range records {
		views = append(views, adminMediaView{MediaRecord: record, IPAddress: record.IPAddress})
	}

	return utils.Paginated(c, views, params.Page, params.Limit, total)
}
