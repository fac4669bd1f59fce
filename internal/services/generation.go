package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mediagen/backend/internal/gemini"
	"github.com/mediagen/backend/internal/models"
	"github.com/mediagen/backend/pkg/logger"
	"gorm.io/gorm"
)

// Generator is the external generation proxy. The production implementation
// is *gemini.Client; tests inject fakes.
type Generator interface {
	GenerateImage(ctx context.Context, req gemini.ImageRequest) (*gemini.Result, error)
	EditImage(ctx context.Context, req gemini.EditRequest) (*gemini.Result, error)
	GenerateMusic(ctx context.Context, req gemini.MusicRequest) (*gemini.Result, error)
	StartVideo(ctx context.Context, req gemini.VideoRequest) (string, error)
	PollVideo(ctx context.Context, operationID string) (*gemini.VideoPoll, error)
}

// MediaStorage persists generated bytes under a storage path.
type MediaStorage interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) error
	Fetch(ctx context.Context, objectName string) ([]byte, error)
	Delete(ctx context.Context, objectName string) error
}

// GenerationService runs the check → proxy → persist → increment pipeline.
// The quota increment happens strictly after a confirmed upstream success,
// so a failed or timed-out generation never consumes quota.
type GenerationService struct {
	DB           *gorm.DB
	Quotas       *QuotaService
	Storage      MediaStorage
	Generator    Generator
	PollInterval time.Duration
	PollTimeout  time.Duration
}

func NewGenerationService(db *gorm.DB, quotas *QuotaService, storage MediaStorage, generator Generator, pollInterval, pollTimeout time.Duration) *GenerationService {
	return &GenerationService{
		DB:           db,
		Quotas:       quotas,
		Storage:      storage,
		Generator:    generator,
		PollInterval: pollInterval,
		PollTimeout:  pollTimeout,
	}
}

// QuotaDeniedError reports a denied check together with the remaining count
// for display.
type QuotaDeniedError struct {
	ResourceType models.ResourceType
	Remaining    int
}

func (e *QuotaDeniedError) Error() string {
	return fmt.Sprintf("%s quota exceeded", e.ResourceType)
}

func (e *QuotaDeniedError) Unwrap() error {
	return ErrQuotaExceeded
}

func (s *GenerationService) GenerateImage(ctx context.Context, user *models.User, req gemini.ImageRequest, clientIP string) (*models.MediaRecord, error) {
	if err := s.requireQuota(user.ID, models.ResourceImage); err != nil {
		return nil, err
	}

	result, err := s.Generator.GenerateImage(ctx, req)
	if err != nil {
		logger.ErrorWithUser(user.ID.String(), "image_generation_failed", err, map[string]interface{}{
			"model": req.Model,
		})
		return nil, ErrUpstreamGeneration
	}

	record, err := s.persist(ctx, user.ID, models.MediaTypeImage, req.Prompt, result, clientIP)
	if err != nil {
		return nil, err
	}

	if err := s.Quotas.Increment(user.ID, models.ResourceImage); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *GenerationService) EditImage(ctx context.Context, user *models.User, req gemini.EditRequest, clientIP string) (*models.MediaRecord, error) {
	if err := s.requireQuota(user.ID, models.ResourceEdit); err != nil {
		return nil, err
	}

	result, err := s.Generator.EditImage(ctx, req)
	if err != nil {
		logger.ErrorWithUser(user.ID.String(), "image_edit_failed", err, map[string]interface{}{
			"model": req.Model,
		})
		return nil, ErrUpstreamGeneration
	}

	record, err := s.persist(ctx, user.ID, models.MediaTypeImage, req.Prompt, result, clientIP)
	if err != nil {
		return nil, err
	}

	if err := s.Quotas.Increment(user.ID, models.ResourceEdit); err != nil {
		return nil, err
	}
	return record, nil
}

// GenerateMusic proxies and stores audio. Music is not a quota ledger
// resource type, so no counter is involved.
func (s *GenerationService) GenerateMusic(ctx context.Context, user *models.User, req gemini.MusicRequest, clientIP string) (*models.MediaRecord, error) {
	result, err := s.Generator.GenerateMusic(ctx, req)
	if err != nil {
		logger.ErrorWithUser(user.ID.String(), "music_generation_failed", err, nil)
		return nil, ErrUpstreamGeneration
	}

	return s.persist(ctx, user.ID, models.MediaTypeAudio, req.Description, result, clientIP)
}

// StartVideoJob checks video quota, records a job row and spawns the
// poller. The denial happens before anything reaches the upstream.
func (s *GenerationService) StartVideoJob(user *models.User, req gemini.VideoRequest, mode string, clientIP string) (*models.GenerationJob, error) {
	if err := s.requireQuota(user.ID, models.ResourceVideo); err != nil {
		return nil, err
	}

	job := models.GenerationJob{
		UserID: user.ID,
		Prompt: req.Prompt,
		Model:  req.Model,
		Mode:   mode,
		Status: models.JobStatusQueued,
	}
	if err := s.DB.Create(&job).Error; err != nil {
		return nil, err
	}

	go s.runVideoJob(job.ID, user.ID, req, clientIP)

	return &job, nil
}

func (s *GenerationService) GetJob(userID, jobID uuid.UUID) (*models.GenerationJob, error) {
	var job models.GenerationJob
	if err := s.DB.First(&job, "id = ? AND user_id = ?", jobID, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *GenerationService) ListJobs(userID uuid.UUID, limit int) ([]models.GenerationJob, error) {
	var jobs []models.GenerationJob
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// runVideoJob drives one long-running operation to completion. It owns its
// own context: the request that spawned it has already returned.
func (s *GenerationService) runVideoJob(jobID, userID uuid.UUID, req gemini.VideoRequest, clientIP string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.PollTimeout)
	defer cancel()

	s.updateJob(jobID, map[string]interface{}{"status": models.JobStatusProcessing})

	operationID, err := s.Generator.StartVideo(ctx, req)
	if err != nil {
		s.failJob(jobID, userID, err)
		return
	}
	s.updateJob(jobID, map[string]interface{}{"operation_id": operationID})

	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.failJob(jobID, userID, fmt.Errorf("video generation timed out"))
			return
		case <-ticker.C:
		}

		poll, err := s.Generator.PollVideo(ctx, operationID)
		if err != nil {
			s.failJob(jobID, userID, err)
			return
		}

		if !poll.Done {
			s.updateJob(jobID, map[string]interface{}{"progress": poll.Progress})
			continue
		}

		if poll.ErrorMessage != "" {
			s.failJob(jobID, userID, fmt.Errorf("%s", poll.ErrorMessage))
			return
		}

		record, err := s.persist(ctx, userID, models.MediaTypeVideo, req.Prompt, &gemini.Result{
			Data:     poll.Data,
			MimeType: poll.MimeType,
			Model:    req.Model,
		}, clientIP)
		if err != nil {
			s.failJob(jobID, userID, err)
			return
		}

		if err := s.Quotas.Increment(userID, models.ResourceVideo); err != nil {
			logger.ErrorWithUser(userID.String(), "video_quota_increment_failed", err, nil)
		}

		now := time.Now().UTC()
		s.updateJob(jobID, map[string]interface{}{
			"status":       models.JobStatusCompleted,
			"progress":     100,
			"media_id":     record.ID,
			"completed_at": now,
		})
		return
	}
}

func (s *GenerationService) requireQuota(userID uuid.UUID, rt models.ResourceType) error {
	decision, err := s.Quotas.Check(userID, rt)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return &QuotaDeniedError{ResourceType: rt, Remaining: decision.Remaining}
	}
	return nil
}

func (s *GenerationService) persist(ctx context.Context, userID uuid.UUID, mediaType models.MediaType, prompt string, result *gemini.Result, clientIP string) (*models.MediaRecord, error) {
	record := models.MediaRecord{
		OwnerID:   userID,
		Type:      mediaType,
		Prompt:    prompt,
		Model:     result.Model,
		FileSize:  int64(len(result.Data)),
		MimeType:  result.MimeType,
		IPAddress: clientIP,
	}
	record.ID = uuid.New()
	record.StoragePath = objectName(mediaType, record.ID, result.MimeType)

	if err := s.Storage.Upload(ctx, record.StoragePath, result.Data, result.MimeType); err != nil {
		return nil, err
	}

	if err := s.DB.Create(&record).Error; err != nil {
		// Keep storage consistent with the ledger if the row insert fails.
		_ = s.Storage.Delete(ctx, record.StoragePath)
		return nil, err
	}

	return &record, nil
}

func (s *GenerationService) updateJob(jobID uuid.UUID, updates map[string]interface{}) {
	if err := s.DB.Model(&models.GenerationJob{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
		logger.Error("job_update_failed", err, map[string]interface{}{"job_id": jobID.String()})
	}
}

func (s *GenerationService) failJob(jobID, userID uuid.UUID, cause error) {
	logger.ErrorWithUser(userID.String(), "video_generation_failed", cause, map[string]interface{}{
		"job_id": jobID.String(),
	})
	s.updateJob(jobID, map[string]interface{}{
		"status": models.JobStatusFailed,
		"error":  cause.Error(),
	})
}

func objectName(mediaType models.MediaType, id uuid.UUID, mimeType string) string {
	prefix := "images"
	switch mediaType {
	case models.MediaTypeVideo:
		prefix = "videos"
	case models.MediaTypeAudio:
		prefix = "audio"
	}
	return fmt.Sprintf("%s/%s%s", prefix, id, extensionFor(mimeType))
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/mpeg":
		return ".mp3"
	default:
		return ".bin"
	}
}
