package services

import (
	"net/mail"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mediagen/backend/internal/models"
	"github.com/mediagen/backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AdminService implements user administration scoped to ownership links:
// an admin only ever sees and mutates the users it manages.
type AdminService struct {
	DB     *gorm.DB
	Quotas *QuotaService
}

func NewAdminService(db *gorm.DB, quotas *QuotaService) *AdminService {
	return &AdminService{DB: db, Quotas: quotas}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// NormalizeTags trims, lowercases and de-duplicates, preserving a stable
// sorted order for display.
func NormalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		normalized = append(normalized, tag)
	}
	sort.Strings(normalized)
	return normalized
}

func (s *AdminService) Owns(adminID, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.DB.Model(&models.AdminLink{}).
		Where("admin_id = ? AND user_id = ?", adminID, userID).
		Count(&count).Error
	return count > 0, err
}

// RequireOwned fails with ErrNotOwned unless adminID manages userID.
func (s *AdminService) RequireOwned(adminID, userID uuid.UUID) error {
	owns, err := s.Owns(adminID, userID)
	if err != nil {
		return err
	}
	if !owns {
		return ErrNotOwned
	}
	return nil
}

func (s *AdminService) Link(adminID, userID uuid.UUID) error {
	link := models.AdminLink{AdminID: adminID, UserID: userID}
	return s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
}

func (s *AdminService) OwnedUsers(adminID uuid.UUID) ([]models.User, error) {
	var users []models.User
	err := s.DB.
		Joins("JOIN admin_links ON admin_links.user_id = users.id").
		Where("admin_links.admin_id = ?", adminID).
		Order("users.created_at DESC").
		Find(&users).Error
	return users, err
}

// OtherAdminEmails lists the other admins managing a user, for the
// shared-ownership display.
func (s *AdminService) OtherAdminEmails(userID, excludeAdminID uuid.UUID) ([]string, error) {
	var emails []string
	err := s.DB.Model(&models.User{}).
		Joins("JOIN admin_links ON admin_links.admin_id = users.id").
		Where("admin_links.user_id = ? AND users.id <> ?", userID, excludeAdminID).
		Order("users.email").
		Pluck("users.email", &emails).Error
	return emails, err
}

// DefaultQuotaSetting is the per-resource-type override accepted by bulk
// create.
type DefaultQuotaSetting struct {
	Mode  models.QuotaMode `json:"mode"`
	Limit int              `json:"limit"`
}

// BulkCreateResult reports the outcome for one email in a bulk-create
// batch. A failed email carries Error and leaves the other entries alone.
type BulkCreateResult struct {
	Email      string   `json:"email"`
	UserID     string   `json:"userID,omitempty"`
	IsNew      bool     `json:"isNew"`
	Error      string   `json:"error,omitempty"`
	SharedWith []string `json:"sharedWith,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// BulkCreate creates (or adopts) one user per email. Creation is idempotent
// per email: an existing user only gains an ownership link. Failures are
// collected per item; one bad email never aborts the batch.
func (s *AdminService) BulkCreate(adminID uuid.UUID, emails []string, defaultQuotas map[models.ResourceType]DefaultQuotaSetting, defaultTags []string) []BulkCreateResult {
	results := make([]BulkCreateResult, 0, len(emails))
	tags := NormalizeTags(defaultTags)

	for _, raw := range emails {
		email := normalizeEmail(raw)
		result := BulkCreateResult{Email: email}

		if !validEmail(email) {
			result.Error = "invalid email address"
			results = append(results, result)
			continue
		}

		var existing models.User
		err := s.DB.First(&existing, "email = ?", email).Error
		switch {
		case err == nil:
			if linkErr := s.Link(adminID, existing.ID); linkErr != nil {
				result.Error = "failed linking user"
				results = append(results, result)
				continue
			}
			result.UserID = existing.ID.String()
			result.IsNew = false
			result.SharedWith, _ = s.OtherAdminEmails(existing.ID, adminID)
			result.Tags, _ = s.ListTags(existing.ID)

		case err == gorm.ErrRecordNotFound:
			user := models.User{
				Email:                email,
				Role:                 models.UserRoleUser,
				IsActive:             true,
				RequirePasswordReset: true,
			}
			if createErr := s.DB.Create(&user).Error; createErr != nil {
				result.Error = "failed creating user"
				results = append(results, result)
				continue
			}
			if linkErr := s.Link(adminID, user.ID); linkErr != nil {
				result.Error = "failed linking user"
				results = append(results, result)
				continue
			}
			if quotaErr := s.applyDefaultQuotas(user.ID, defaultQuotas); quotaErr != nil {
				result.Error = "failed creating default quotas"
				results = append(results, result)
				continue
			}
			if len(tags) > 0 {
				if _, tagErr := s.SetTags(user.ID, tags); tagErr != nil {
					result.Error = "failed setting default tags"
					results = append(results, result)
					continue
				}
			}
			result.UserID = user.ID.String()
			result.IsNew = true
			result.Tags = tags

			logger.InfoWithUser(adminID.String(), "user_bulk_created", map[string]interface{}{
				"email": email,
			})

		default:
			result.Error = "failed looking up user"
		}

		results = append(results, result)
	}

	return results
}

func (s *AdminService) applyDefaultQuotas(userID uuid.UUID, overrides map[models.ResourceType]DefaultQuotaSetting) error {
	if err := s.Quotas.EnsureDefaults(userID); err != nil {
		return err
	}
	for rt, setting := range overrides {
		if !models.ValidResourceType(rt) {
			continue
		}
		limit := setting.Limit
		if _, err := s.Quotas.SetLimits(userID, rt, setting.Mode, &limit); err != nil {
			return err
		}
	}
	return nil
}

// UserPatch carries the admin-editable account flags. Nil fields are left
// unchanged.
type UserPatch struct {
	IsActive           *bool
	ForcePasswordReset *bool
}

func (s *AdminService) UpdateUser(adminID, userID uuid.UUID, patch UserPatch) (*models.User, error) {
	if err := s.RequireOwned(adminID, userID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}
	if patch.ForcePasswordReset != nil && *patch.ForcePasswordReset {
		updates["require_password_reset"] = true
	}

	if len(updates) > 0 {
		if err := s.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// SetTags replaces the user's tag set with the normalized input.
func (s *AdminService) SetTags(userID uuid.UUID, tags []string) ([]string, error) {
	normalized := NormalizeTags(tags)

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.UserTag{}, "user_id = ?", userID).Error; err != nil {
			return err
		}
		for _, tag := range normalized {
			row := models.UserTag{UserID: userID, Tag: tag}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

func (s *AdminService) ListTags(userID uuid.UUID) ([]string, error) {
	var tags []string
	err := s.DB.Model(&models.UserTag{}).
		Where("user_id = ?", userID).
		Order("tag").
		Pluck("tag", &tags).Error
	if tags == nil {
		tags = []string{}
	}
	return tags, err
}

// ListAllTags returns the distinct tag set across the admin's owned users,
// for dashboard autocomplete. Tags on users owned by other admins are
// invisible here.
func (s *AdminService) ListAllTags(adminID uuid.UUID) ([]string, error) {
	var tags []string
	err := s.DB.Model(&models.UserTag{}).
		Distinct("user_tags.tag").
		Joins("JOIN admin_links ON admin_links.user_id = user_tags.user_id").
		Where("admin_links.admin_id = ?", adminID).
		Order("user_tags.tag").
		Pluck("user_tags.tag", &tags).Error
	if tags == nil {
		tags = []string{}
	}
	return tags, err
}
