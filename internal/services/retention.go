package services

import (
	"context"
	"time"

	"github.com/mediagen/backend/internal/models"
	"github.com/mediagen/backend/pkg/logger"
	"gorm.io/gorm"
)

// RetentionService removes generated media past the retention window,
// deleting the stored object first and the metadata row after.
type RetentionService struct {
	DB            *gorm.DB
	Storage       MediaStorage
	RetentionDays int
}

func NewRetentionService(db *gorm.DB, storage MediaStorage, retentionDays int) *RetentionService {
	return &RetentionService{DB: db, Storage: storage, RetentionDays: retentionDays}
}

func (s *RetentionService) Sweep(ctx context.Context) (int, error) {
	if s.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -s.RetentionDays)

	var expired []models.MediaRecord
	if err := s.DB.Where("created_at < ?", cutoff).Find(&expired).Error; err != nil {
		return 0, err
	}

	removed := 0
	for _, record := range expired {
		if err := s.Storage.Delete(ctx, record.StoragePath); err != nil {
			// Leave the row so the next sweep retries the object delete.
			continue
		}
		if err := s.DB.Delete(&models.MediaRecord{}, "id = ?", record.ID).Error; err != nil {
			logger.Error("retention_row_delete_failed", err, map[string]interface{}{
				"media_id": record.ID.String(),
			})
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("retention_sweep_completed", map[string]interface{}{
			"removed": removed,
			"cutoff":  cutoff,
		})
	}
	return removed, nil
}
