package services

import (
	"errors"

	"github.com/google/uuid"
	"github.com/mediagen/backend/internal/config"
	"github.com/mediagen/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuotaService struct {
	DB       *gorm.DB
	defaults config.QuotaConfig
}

func NewQuotaService(db *gorm.DB, defaults config.QuotaConfig) *QuotaService {
	return &QuotaService{DB: db, defaults: defaults}
}

// QuotaDecision is the outcome of a non-mutating quota check.
// Remaining is -1 for unlimited quotas.
type QuotaDecision struct {
	Allowed   bool
	Remaining int
	Quota     *models.Quota
}

func (s *QuotaService) DefaultLimit(rt models.ResourceType) int {
	switch rt {
	case models.ResourceVideo:
		return s.defaults.DefaultVideoLimit
	case models.ResourceEdit:
		return s.defaults.DefaultEditLimit
	default:
		return s.defaults.DefaultImageLimit
	}
}

// Ensure returns the quota row for (user, resource type), creating it from
// the resource-type default when absent.
func (s *QuotaService) Ensure(userID uuid.UUID, rt models.ResourceType) (*models.Quota, error) {
	if !models.ValidResourceType(rt) {
		return nil, Validationf("invalid resource type")
	}

	var quota models.Quota
	err := s.DB.First(&quota, "user_id = ? AND resource_type = ?", userID, rt).Error
	if err == nil {
		return &quota, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	quota = models.Quota{
		UserID:       userID,
		ResourceType: rt,
		Mode:         models.QuotaModeLimited,
		Limit:        s.DefaultLimit(rt),
	}
	// Another request may create the row concurrently; the unique index on
	// (user_id, resource_type) makes that a no-op here.
	if err := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&quota).Error; err != nil {
		return nil, err
	}
	if err := s.DB.First(&quota, "user_id = ? AND resource_type = ?", userID, rt).Error; err != nil {
		return nil, err
	}
	return &quota, nil
}

func (s *QuotaService) EnsureDefaults(userID uuid.UUID) error {
	for _, rt := range []models.ResourceType{models.ResourceImage, models.ResourceVideo, models.ResourceEdit} {
		if _, err := s.Ensure(userID, rt); err != nil {
			return err
		}
	}
	return nil
}

// Check reports whether one more generation of the given type is permitted.
// It never mutates usage. A limit of 0 always denies.
func (s *QuotaService) Check(userID uuid.UUID, rt models.ResourceType) (*QuotaDecision, error) {
	quota, err := s.Ensure(userID, rt)
	if err != nil {
		return nil, err
	}

	return &QuotaDecision{
		Allowed:   quota.Permits(),
		Remaining: quota.Remaining(),
		Quota:     quota,
	}, nil
}

// Increment records one successful generation. The counter bump is a single
// conditional UPDATE so concurrent completions for the same user never lose
// updates; callers must invoke it only after the upstream call succeeded.
func (s *QuotaService) Increment(userID uuid.UUID, rt models.ResourceType) error {
	result := s.DB.Model(&models.Quota{}).
		Where("user_id = ? AND resource_type = ?", userID, rt).
		UpdateColumn("used", gorm.Expr("used + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("quota row missing on increment")
	}
	return nil
}

// SetLimits updates mode and limit. Switching to unlimited leaves the stored
// numeric limit untouched so switching back restores the previous value.
func (s *QuotaService) SetLimits(userID uuid.UUID, rt models.ResourceType, mode models.QuotaMode, limit *int) (*models.Quota, error) {
	if mode != models.QuotaModeLimited && mode != models.QuotaModeUnlimited {
		return nil, Validationf("mode must be limited or unlimited")
	}
	if mode == models.QuotaModeLimited && limit != nil && *limit < 0 {
		return nil, Validationf("limit must be >= 0")
	}

	quota, err := s.Ensure(userID, rt)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"mode": mode}
	if mode == models.QuotaModeLimited && limit != nil {
		updates["limit"] = *limit
	}

	if err := s.DB.Model(&models.Quota{}).Where("id = ?", quota.ID).Updates(updates).Error; err != nil {
		return nil, err
	}

	var updated models.Quota
	if err := s.DB.First(&updated, "id = ?", quota.ID).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

// Reset zeroes the usage counter. This is the only way usage ever goes
// down; there is no time-based reset anywhere in the system.
func (s *QuotaService) Reset(userID uuid.UUID, rt models.ResourceType) (*models.Quota, error) {
	quota, err := s.Ensure(userID, rt)
	if err != nil {
		return nil, err
	}

	if err := s.DB.Model(&models.Quota{}).Where("id = ?", quota.ID).
		UpdateColumn("used", 0).Error; err != nil {
		return nil, err
	}

	var updated models.Quota
	if err := s.DB.First(&updated, "id = ?", quota.ID).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *QuotaService) List(userID uuid.UUID) ([]models.Quota, error) {
	var quotas []models.Quota
	if err := s.DB.Where("user_id = ?", userID).Order("resource_type").Find(&quotas).Error; err != nil {
		return nil, err
	}
	return quotas, nil
}
