package models

import "time"

type ChainStatus string

const (
	ChainStatusActive    ChainStatus = "active"
	ChainStatusCompleted ChainStatus = "completed"
	ChainStatusFailed    ChainStatus = "failed"
)

// Chain is the forwarding tree for one request. Exactly one chain exists per
// request (unique index on request_id); TotalReward is copied from the
// request at creation and immutable after that.
type Chain struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	RequestID   string      `gorm:"uniqueIndex;not null" json:"request_id"`
	Status      ChainStatus `gorm:"index;not null;default:active" json:"status"`
	TotalReward int64       `gorm:"not null" json:"total_reward"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`

	Participants []Participant `gorm:"foreignKey:ChainID" json:"participants,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

type ParticipantRole string

const (
	RoleCreator   ParticipantRole = "creator"
	RoleForwarder ParticipantRole = "forwarder"
	RoleTarget    ParticipantRole = "target"
	RoleConnector ParticipantRole = "connector"
)

// Participant is one user's membership node in a chain. The composite unique
// index on (chain_id, user_id) is what makes joins exactly-once; the one on
// (chain_id, position) serializes concurrent inserts into a stable join
// order (root is position 0). ParentUserID points at another participant of
// the same chain, nil only for the root.
type Participant struct {
	ID            string          `gorm:"primaryKey;type:uuid" json:"id"`
	ChainID       string          `gorm:"not null;uniqueIndex:idx_chain_user;uniqueIndex:idx_chain_position" json:"chain_id"`
	UserID        string          `gorm:"not null;uniqueIndex:idx_chain_user" json:"user_id"`
	Role          ParticipantRole `gorm:"not null;default:forwarder" json:"role"`
	ParentUserID  *string         `json:"parent_user_id,omitempty"`
	Position      int             `gorm:"not null;uniqueIndex:idx_chain_position" json:"position"`
	JoinedAt      time.Time       `gorm:"autoCreateTime" json:"joined_at"`
	RewardAmount  *int64          `json:"reward_amount,omitempty"`
	ShareableLink string          `gorm:"uniqueIndex;not null" json:"shareable_link"`
}
