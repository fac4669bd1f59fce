package models

import "github.com/google/uuid"

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// MediaRecord is the metadata row for one generated artifact. The bytes
// themselves live in object storage under StoragePath. IPAddress is kept
// for abuse tracking in the admin generation history.
type MediaRecord struct {
	BaseModel
	OwnerID     uuid.UUID `json:"ownerID" gorm:"type:uuid;not null;index:idx_media_owner_created,priority:1"`
	Type        MediaType `json:"type" gorm:"type:varchar(20);not null;index"`
	Prompt      string    `json:"prompt" gorm:"type:text"`
	Model       string    `json:"model" gorm:"type:varchar(100)"`
	StoragePath string    `json:"-" gorm:"type:text;not null"`
	FileSize    int64     `json:"fileSize" gorm:"not null;default:0"`
	MimeType    string    `json:"mimeType" gorm:"type:varchar(100);not null"`
	IPAddress   string    `json:"-" gorm:"type:varchar(45)"`

	Owner User `json:"-" gorm:"foreignKey:OwnerID;references:ID;constraint:OnDelete:CASCADE"`
}

func (MediaRecord) TableName() string {
	return "media_records"
}
