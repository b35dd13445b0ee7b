package models

import (
	"time"

	"gorm.io/gorm"
)

// ConnectUser is a local snapshot of user data needed for request/chain
// display and user search. Identity is owned by the auth provider; this
// mirror is populated by the sync worker and is never consulted for chain
// or ledger decisions.
type ConnectUser struct {
	ID                string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID    string     `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username          string     `gorm:"index;not null" json:"username"`
	Email             string     `json:"email,omitempty"`
	ProfilePictureURL *string    `json:"profile_picture_url,omitempty"`
	Headline          *string    `json:"headline,omitempty"`
	Company           *string    `json:"company,omitempty"`
	CreatedAt         time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	LastSeen          *time.Time `json:"last_seen,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
