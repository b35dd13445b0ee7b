package models

import "time"

type CreditTransactionType string

const (
	CreditEarned CreditTransactionType = "earned"
	CreditSpent  CreditTransactionType = "spent"
)

type CreditSource string

const (
	SourceJoinChain       CreditSource = "join_chain"
	SourceOthersJoined    CreditSource = "others_joined"
	SourceUnlockChain     CreditSource = "unlock_chain"
	SourceRewardPayout    CreditSource = "reward_payout"
	SourceBonus           CreditSource = "bonus"
	SourceRequestCreation CreditSource = "request_creation"
)

// CreditTransaction is one append-only ledger entry. Amount is always
// positive; Type carries the direction. Rows are never updated or deleted —
// balance(user) is the sum of earned minus spent over this table.
type CreditTransaction struct {
	ID             string                `gorm:"primaryKey;type:uuid" json:"id"`
	UserID         string                `gorm:"index;not null" json:"user_id"`
	Amount         int64                 `gorm:"not null" json:"amount"`
	Type           CreditTransactionType `gorm:"index;not null" json:"type"`
	Source         CreditSource          `gorm:"not null" json:"source"`
	RelatedChainID *string               `gorm:"index" json:"related_chain_id,omitempty"`
	CreatedAt      time.Time             `gorm:"autoCreateTime;index" json:"created_at"`
}

// CreditAccount caches the derived balance per user. It is written in the
// same transaction as every ledger append, and the conditional
// `balance >= amount` update on this row is what serializes concurrent
// spends for one user. The transaction log stays the source of truth; the
// ledger audit worker reconciles this cache against it.
type CreditAccount struct {
	UserID    string    `gorm:"primaryKey" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
