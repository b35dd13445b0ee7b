package models

import (
	"time"

	"gorm.io/gorm"
)

type RequestStatus string

const (
	RequestStatusActive    RequestStatus = "active"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusCancelled RequestStatus = "cancelled"
	RequestStatusExpired   RequestStatus = "expired"
)

// ConnectRequest is a published ask to reach a target person/organization.
// RewardTotal is escrowed from the creator's credits at creation and never
// changes afterwards; reward distribution splits it across the chain when
// the request completes. Rows are soft-deleted (the chain keeps referencing
// them for audit).
type ConnectRequest struct {
	ID                string        `gorm:"primaryKey;type:uuid" json:"id"`
	CreatorID         string        `gorm:"index;not null" json:"creator_id"`
	TargetDescription string        `gorm:"not null" json:"target_description"`
	Message           string        `json:"message,omitempty"`
	RewardTotal       int64         `gorm:"not null" json:"reward_total"`
	Status            RequestStatus `gorm:"index;not null;default:active" json:"status"`
	ExpiresAt         time.Time     `gorm:"not null" json:"expires_at"`
	ShareableLink     string        `gorm:"uniqueIndex;not null" json:"shareable_link"`

	Timestamps
}

// Timestamps adds GORM auto-times + soft delete
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
