package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// GenerationJob tracks one asynchronous video generation. The row is the
// only coordination point between the request handler, the poller goroutine
// and the status endpoint. Quota usage is incremented only when the job
// reaches completed.
type GenerationJob struct {
	BaseModel
	UserID      uuid.UUID  `json:"userID" gorm:"type:uuid;not null;index:idx_generation_jobs_user_created,priority:1"`
	OperationID string     `json:"-" gorm:"type:text"`
	Prompt      string     `json:"prompt" gorm:"type:text"`
	Model       string     `json:"model" gorm:"type:varchar(100)"`
	Mode        string     `json:"mode" gorm:"type:varchar(20)"`
	Status      JobStatus  `json:"status" gorm:"type:varchar(20);not null;default:'queued';index"`
	Progress    int        `json:"progress" gorm:"not null;default:0"`
	Error       string     `json:"error,omitempty" gorm:"type:text"`
	MediaID     *uuid.UUID `json:"mediaID,omitempty" gorm:"type:uuid"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

func (GenerationJob) TableName() string {
	return "generation_jobs"
}
