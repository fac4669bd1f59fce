package models

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// User is an account created by admin bulk-create or the env bootstrap.
// PasswordHash stays nil until the user completes first-login password setup.
type User struct {
	BaseModel
	Email                string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash         *string    `json:"-" gorm:"type:text"`
	Role                 UserRole   `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	IsActive             bool       `json:"isActive" gorm:"not null;default:true"`
	RequirePasswordReset bool       `json:"requirePasswordReset" gorm:"not null;default:false"`
	LastLoginAt          *time.Time `json:"lastLoginAt,omitempty"`

	Quotas   []Quota       `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Tags     []UserTag     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Media    []MediaRecord `json:"-" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Sessions []Session     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// AdminLink records that an admin manages a user. A user may be managed by
// several admins at once; the pair is unique.
type AdminLink struct {
	BaseModel
	AdminID uuid.UUID `json:"adminID" gorm:"type:uuid;not null;uniqueIndex:idx_admin_links_pair;index"`
	UserID  uuid.UUID `json:"userID" gorm:"type:uuid;not null;uniqueIndex:idx_admin_links_pair;index"`

	Admin User `json:"-" gorm:"foreignKey:AdminID;references:ID;constraint:OnDelete:CASCADE"`
	User  User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

func (AdminLink) TableName() string {
	return "admin_links"
}
