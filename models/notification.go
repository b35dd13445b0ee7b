package models

import "time"

// Notification is a fire-and-forget message for a user (someone joined your
// chain, a claim was submitted/approved/rejected, a payout landed). Metadata
// is a small JSON blob for the client.
type Notification struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Message   string    `gorm:"not null" json:"message"`
	Metadata  string    `json:"metadata,omitempty"`
	Read      bool      `gorm:"default:false" json:"read"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
