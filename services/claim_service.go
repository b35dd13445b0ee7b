package services

import (
	"errors"
	"fmt"
	"time"

	"connect-chain-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClaimService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Notify *NotificationService
}

func NewClaimService(db *gorm.DB, ledger *LedgerService, notify *NotificationService) *ClaimService {
	return &ClaimService{DB: db, Ledger: ledger, Notify: notify}
}

type SubmitClaimInput struct {
	RequestID     string
	ChainID       string
	ClaimantID    string
	TargetName    string
	TargetEmail   string
	TargetCompany string
	Note          string
}

// Submit records a participant's assertion that they reached the target.
// Multiple pending claims per request are fine (first approved wins), but a
// claimant holds at most one pending claim per request.
func (s *ClaimService) Submit(in SubmitClaimInput) (*models.TargetClaim, error) {
	if in.RequestID == "" || in.ClaimantID == "" {
		return nil, ErrInvalidInput
	}
	claim := &models.TargetClaim{
		ID:            uuid.NewString(),
		RequestID:     in.RequestID,
		ChainID:       in.ChainID,
		ClaimantID:    in.ClaimantID,
		TargetName:    in.TargetName,
		TargetEmail:   in.TargetEmail,
		TargetCompany: in.TargetCompany,
		Note:          in.Note,
		Status:        models.ClaimStatusPending,
	}
	if !claim.HasContact() {
		return nil, ErrInvalidInput
	}

	var creatorID string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var req models.ConnectRequest
		if err := tx.First(&req, "id = ?", in.RequestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		creatorID = req.CreatorID
		if req.Status != models.RequestStatusActive || !req.ExpiresAt.After(time.Now()) {
			return ErrRequestInactive
		}

		var chain models.Chain
		if err := tx.First(&chain, "request_id = ?", in.RequestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if in.ChainID != "" && in.ChainID != chain.ID {
			return ErrInvalidInput
		}
		if chain.Status != models.ChainStatusActive {
			return ErrRequestInactive
		}
		claim.ChainID = chain.ID

		var member models.Participant
		if err := tx.First(&member, "chain_id = ? AND user_id = ?", chain.ID, in.ClaimantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotAMember
			}
			return err
		}

		var pending int64
		if err := tx.Model(&models.TargetClaim{}).
			Where("request_id = ? AND claimant_id = ? AND status = ?",
				in.RequestID, in.ClaimantID, models.ClaimStatusPending).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return ErrDuplicatePendingClaim
		}

		return tx.Create(claim).Error
	})
	if err != nil {
		return nil, err
	}
	if s.Notify != nil {
		s.Notify.Send(creatorID, "A participant claims to have reached your target",
			map[string]string{"request_id": in.RequestID, "claim_id": claim.ID})
	}
	return claim, nil
}

// Approve is creator-only and runs the whole completion as one atomic unit:
// claim → approved, rewards distributed, other pending claims rejected,
// chain and request → completed. Concurrent approvals of two claims for the
// same request are decided by the chain's active→completed flip — exactly
// one wins, the other sees ErrAlreadyResolved.
func (s *ClaimService) Approve(claimID, reviewerID string) (*models.Chain, error) {
	if claimID == "" || reviewerID == "" {
		return nil, ErrInvalidInput
	}
	var chain *models.Chain
	var claim models.TargetClaim
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&claim, "id = ?", claimID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var req models.ConnectRequest
		if err := tx.First(&req, "id = ?", claim.RequestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if req.CreatorID != reviewerID {
			return ErrUnauthorized
		}
		if claim.Status != models.ClaimStatusPending {
			return ErrAlreadyResolved
		}
		switch req.Status {
		case models.RequestStatusActive:
			if !req.ExpiresAt.After(time.Now()) {
				return ErrRequestInactive
			}
		case models.RequestStatusCompleted:
			return ErrAlreadyResolved
		default:
			return ErrRequestInactive
		}

		now := time.Now()
		res := tx.Model(&models.TargetClaim{}).
			Where("id = ? AND status = ?", claim.ID, models.ClaimStatusPending).
			Updates(map[string]interface{}{
				"status":      models.ClaimStatusApproved,
				"reviewed_by": reviewerID,
				"reviewed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyResolved
		}

		var err error
		chain, err = s.distributeTx(tx, claim.ChainID)
		if err != nil {
			return err
		}

		return tx.Model(&models.TargetClaim{}).
			Where("request_id = ? AND status = ? AND id <> ?",
				claim.RequestID, models.ClaimStatusPending, claim.ID).
			Updates(map[string]interface{}{
				"status":           models.ClaimStatusRejected,
				"reviewed_by":      reviewerID,
				"reviewed_at":      now,
				"rejection_reason": "another claim was approved",
			}).Error
	})
	if err != nil {
		return nil, err
	}
	if s.Notify != nil {
		s.Notify.Send(claim.ClaimantID, "Your target claim was approved",
			map[string]string{"claim_id": claim.ID, "request_id": claim.RequestID})
		for _, p := range chain.Participants {
			if p.RewardAmount != nil && *p.RewardAmount > 0 {
				s.Notify.Send(p.UserID,
					fmt.Sprintf("You earned %d credits from a completed chain", *p.RewardAmount),
					map[string]string{"chain_id": chain.ID})
			}
		}
	}
	return chain, nil
}

// Reject is creator-only and terminal for the claim; the chain and request
// are untouched.
func (s *ClaimService) Reject(claimID, reviewerID, reason string) (*models.TargetClaim, error) {
	if claimID == "" || reviewerID == "" {
		return nil, ErrInvalidInput
	}
	var claim models.TargetClaim
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&claim, "id = ?", claimID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var req models.ConnectRequest
		if err := tx.First(&req, "id = ?", claim.RequestID).Error; err != nil {
			return err
		}
		if req.CreatorID != reviewerID {
			return ErrUnauthorized
		}
		now := time.Now()
		res := tx.Model(&models.TargetClaim{}).
			Where("id = ? AND status = ?", claim.ID, models.ClaimStatusPending).
			Updates(map[string]interface{}{
				"status":           models.ClaimStatusRejected,
				"reviewed_by":      reviewerID,
				"reviewed_at":      now,
				"rejection_reason": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyResolved
		}
		claim.Status = models.ClaimStatusRejected
		claim.ReviewedBy = &reviewerID
		claim.ReviewedAt = &now
		claim.RejectionReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Notify != nil {
		s.Notify.Send(claim.ClaimantID, "Your target claim was rejected",
			map[string]string{"claim_id": claim.ID, "reason": reason})
	}
	return &claim, nil
}

// ListByRequest returns a request's claims for its creator, newest first.
func (s *ClaimService) ListByRequest(requestID, callerID string) ([]models.TargetClaim, error) {
	var req models.ConnectRequest
	if err := s.DB.First(&req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if req.CreatorID != callerID {
		return nil, ErrUnauthorized
	}
	var claims []models.TargetClaim
	if err := s.DB.Where("request_id = ?", requestID).
		Order("created_at DESC").
		Find(&claims).Error; err != nil {
		return nil, err
	}
	return claims, nil
}

// AttachEvidence stores the uploaded evidence URL on a pending claim.
func (s *ClaimService) AttachEvidence(claimID, claimantID, url string) (*models.TargetClaim, error) {
	if claimID == "" || url == "" {
		return nil, ErrInvalidInput
	}
	var claim models.TargetClaim
	if err := s.DB.First(&claim, "id = ?", claimID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if claim.ClaimantID != claimantID {
		return nil, ErrUnauthorized
	}
	if claim.Status != models.ClaimStatusPending {
		return nil, ErrAlreadyResolved
	}
	if err := s.DB.Model(&claim).Update("evidence_url", url).Error; err != nil {
		return nil, err
	}
	claim.EvidenceURL = url
	return &claim, nil
}

// Distribute re-runs distribution for a chain. For an already-completed
// chain it is a no-op returning the recorded result, which makes retries
// after a timeout safe. Never exposed with an arbitrary amount — the split
// always comes from the chain's own total.
func (s *ClaimService) Distribute(chainID string) (*models.Chain, error) {
	var chain *models.Chain
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		c, err := s.distributeTx(tx, chainID)
		if errors.Is(err, ErrAlreadyResolved) {
			c, err = loadChainWithParticipants(tx, chainID)
		}
		if err != nil {
			return err
		}
		chain = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// distributeTx pays every participant and completes the chain and its
// request inside the caller's transaction. The active→completed conditional
// update on the chain row is the single arbiter: any concurrent attempt
// touches zero rows and backs off, so a chain is never paid twice and never
// left half-paid.
func (s *ClaimService) distributeTx(tx *gorm.DB, chainID string) (*models.Chain, error) {
	var chain models.Chain
	if err := tx.First(&chain, "id = ?", chainID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	now := time.Now()
	res := tx.Model(&models.Chain{}).
		Where("id = ? AND status = ?", chainID, models.ChainStatusActive).
		Updates(map[string]interface{}{
			"status":       models.ChainStatusCompleted,
			"completed_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if chain.Status == models.ChainStatusCompleted {
			return nil, ErrAlreadyResolved
		}
		return nil, ErrInvalidStateTransition
	}

	var participants []models.Participant
	if err := tx.Where("chain_id = ?", chainID).
		Order("position ASC").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		return nil, ErrInvalidStateTransition
	}

	// Equal split; the integer remainder goes to the root so payouts always
	// sum to the chain's total exactly.
	n := int64(len(participants))
	per := chain.TotalReward / n
	rem := chain.TotalReward % n
	for i := range participants {
		amount := per
		if participants[i].ParentUserID == nil {
			amount += rem
		}
		if amount > 0 {
			if _, err := s.Ledger.awardTx(tx, participants[i].UserID, amount,
				models.SourceRewardPayout, &chain.ID); err != nil {
				return nil, err
			}
		}
		if err := tx.Model(&models.Participant{}).
			Where("id = ?", participants[i].ID).
			Update("reward_amount", amount).Error; err != nil {
			return nil, err
		}
		participants[i].RewardAmount = &amount
	}

	if err := tx.Model(&models.ConnectRequest{}).
		Where("id = ?", chain.RequestID).
		Update("status", models.RequestStatusCompleted).Error; err != nil {
		return nil, err
	}

	chain.Status = models.ChainStatusCompleted
	chain.CompletedAt = &now
	chain.Participants = participants
	return &chain, nil
}

func loadChainWithParticipants(tx *gorm.DB, chainID string) (*models.Chain, error) {
	var chain models.Chain
	err := tx.Preload("Participants", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&chain, "id = ?", chainID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &chain, nil
}
