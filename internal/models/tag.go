package models

import "github.com/google/uuid"

// UserTag is a lowercase label attached to a user by an admin, used for
// filtering and autocomplete in the dashboard. The (user, tag) pair is unique.
type UserTag struct {
	BaseModel
	UserID uuid.UUID `json:"userID" gorm:"type:uuid;not null;uniqueIndex:idx_user_tags_pair;index"`
	Tag    string    `json:"tag" gorm:"type:varchar(100);not null;uniqueIndex:idx_user_tags_pair;index"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

func (UserTag) TableName() string {
	return "user_tags"
}
