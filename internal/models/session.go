package models

import (
	"time"

	"github.com/google/uuid"
)

// Session maps an opaque bearer token to a user for a bounded window.
// Expiry is fixed at creation; there is no sliding renewal. Expired rows
// are rejected (and removed) lazily on lookup and swept periodically.
type Session struct {
	Token          string    `json:"-" gorm:"type:varchar(64);primaryKey"`
	UserID         uuid.UUID `json:"userID" gorm:"type:uuid;not null;index"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt" gorm:"not null;index"`
	LastActivityAt time.Time `json:"lastActivityAt" gorm:"not null"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
