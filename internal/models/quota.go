package models

import "github.com/google/uuid"

type ResourceType string

const (
	ResourceImage ResourceType = "image"
	ResourceVideo ResourceType = "video"
	ResourceEdit  ResourceType = "edit"
)

func ValidResourceType(rt ResourceType) bool {
	switch rt {
	case ResourceImage, ResourceVideo, ResourceEdit:
		return true
	default:
		return false
	}
}

type QuotaMode string

const (
	QuotaModeLimited   QuotaMode = "limited"
	QuotaModeUnlimited QuotaMode = "unlimited"
)

// Quota is the persisted usage counter for one (user, resource type) pair.
// Usage is an absolute cap, never reset by time; Limit keeps its numeric
// value even while Mode is unlimited so admins can switch back without
// retyping it.
type Quota struct {
	BaseModel
	UserID       uuid.UUID    `json:"userID" gorm:"type:uuid;not null;uniqueIndex:idx_quotas_user_resource;index"`
	ResourceType ResourceType `json:"resourceType" gorm:"type:varchar(20);not null;uniqueIndex:idx_quotas_user_resource"`
	Mode         QuotaMode    `json:"mode" gorm:"type:varchar(20);not null;default:'limited'"`
	Limit        int          `json:"limit" gorm:"not null;default:0"`
	Used         int          `json:"used" gorm:"not null;default:0"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

// Remaining reports how many uses are left, or -1 for unlimited.
func (q *Quota) Remaining() int {
	if q.Mode == QuotaModeUnlimited {
		return -1
	}
	remaining := q.Limit - q.Used
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (q *Quota) Permits() bool {
	return q.Mode == QuotaModeUnlimited || q.Used < q.Limit
}
