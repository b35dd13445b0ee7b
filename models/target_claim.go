package models

import "time"

type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusApproved ClaimStatus = "approved"
	ClaimStatusRejected ClaimStatus = "rejected"
)

// TargetClaim = a participant asserts they reached the request's target.
// Multiple pending claims per request are allowed (first approved wins); a
// claimant can hold at most one pending claim per request. At most one claim
// per request ever reaches approved — approval completes the chain, and a
// completed chain accepts no further approvals.
type TargetClaim struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	RequestID  string `gorm:"index;not null" json:"request_id"`
	ChainID    string `gorm:"index;not null" json:"chain_id"`
	ClaimantID string `gorm:"index;not null" json:"claimant_id"`

	// Contact fields for the reached target
	TargetName    string `json:"target_name,omitempty"`
	TargetEmail   string `json:"target_email,omitempty"`
	TargetCompany string `json:"target_company,omitempty"`
	Note          string `json:"note,omitempty"`
	EvidenceURL   string `json:"evidence_url,omitempty"`

	Status          ClaimStatus `gorm:"index;not null;default:pending" json:"status"`
	ReviewedBy      *string     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time  `json:"reviewed_at,omitempty"`
	RejectionReason string      `json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// HasContact reports whether at least one target contact field is filled in.
func (c *TargetClaim) HasContact() bool {
	return c.TargetName != "" || c.TargetEmail != "" || c.TargetCompany != ""
}
