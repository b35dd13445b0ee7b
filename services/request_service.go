package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"connect-chain-system/models"
	"connect-chain-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultRequestTTL = 30 * 24 * time.Hour

type RequestService struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Notify *NotificationService
}

func NewRequestService(db *gorm.DB, ledger *LedgerService, notify *NotificationService) *RequestService {
	return &RequestService{DB: db, Ledger: ledger, Notify: notify}
}

type CreateRequestInput struct {
	CreatorID         string
	TargetDescription string
	Message           string
	RewardTotal       int64
	ExpiresIn         time.Duration
}

// Create escrows the reward from the creator and inserts the request, its
// chain and the root participant in one transaction. If the debit fails
// nothing is created.
func (s *RequestService) Create(in CreateRequestInput) (*models.ConnectRequest, error) {
	if in.CreatorID == "" || in.TargetDescription == "" || in.RewardTotal <= 0 {
		return nil, ErrInvalidInput
	}
	if in.ExpiresIn <= 0 {
		in.ExpiresIn = defaultRequestTTL
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		var req *models.ConnectRequest
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			now := time.Now()
			req = &models.ConnectRequest{
				ID:                uuid.NewString(),
				CreatorID:         in.CreatorID,
				TargetDescription: in.TargetDescription,
				Message:           in.Message,
				RewardTotal:       in.RewardTotal,
				Status:            models.RequestStatusActive,
				ExpiresAt:         now.Add(in.ExpiresIn),
				ShareableLink:     utils.NewShareableLink(in.TargetDescription),
			}
			if err := tx.Create(req).Error; err != nil {
				return err
			}
			chain := &models.Chain{
				ID:          uuid.NewString(),
				RequestID:   req.ID,
				Status:      models.ChainStatusActive,
				TotalReward: in.RewardTotal,
			}
			if err := tx.Create(chain).Error; err != nil {
				return err
			}
			root := &models.Participant{
				ID:            uuid.NewString(),
				ChainID:       chain.ID,
				UserID:        in.CreatorID,
				Role:          models.RoleCreator,
				Position:      0,
				ShareableLink: utils.NewShareableLink(in.TargetDescription),
			}
			if err := tx.Create(root).Error; err != nil {
				return err
			}
			_, err := s.Ledger.spendTx(tx, in.CreatorID, in.RewardTotal, models.SourceRequestCreation, &chain.ID)
			return err
		})
		if errors.Is(err, errSpendConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return req, nil
	}
	return nil, ErrTryAgain
}

// Get fetches a request by id, expiring it lazily if its deadline passed.
func (s *RequestService) Get(requestID string) (*models.ConnectRequest, error) {
	var req models.ConnectRequest
	if err := s.DB.First(&req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	expireRequestIfDue(s.DB, &req)
	return &req, nil
}

// GetByLink resolves a request's own shareable link.
func (s *RequestService) GetByLink(link string) (*models.ConnectRequest, error) {
	var req models.ConnectRequest
	if err := s.DB.First(&req, "shareable_link = ?", link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	expireRequestIfDue(s.DB, &req)
	return &req, nil
}

// ListByCreator returns the caller's requests, newest first. Soft-deleted
// rows are excluded by GORM's default scope.
func (s *RequestService) ListByCreator(creatorID string) ([]models.ConnectRequest, error) {
	var reqs []models.ConnectRequest
	if err := s.DB.Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&reqs).Error; err != nil {
		return nil, err
	}
	now := time.Now()
	for i := range reqs {
		if reqs[i].Status == models.RequestStatusActive && !reqs[i].ExpiresAt.After(now) {
			expireRequestIfDue(s.DB, &reqs[i])
		}
	}
	return reqs, nil
}

// Cancel moves an active request to cancelled and fails its chain. Creator
// only; expiry never turns into a payout so the chain is marked failed too.
func (s *RequestService) Cancel(requestID, byUserID string) (*models.ConnectRequest, error) {
	req, err := s.Get(requestID)
	if err != nil {
		return nil, err
	}
	if req.CreatorID != byUserID {
		return nil, ErrUnauthorized
	}
	if req.Status != models.RequestStatusActive {
		return nil, ErrInvalidStateTransition
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ConnectRequest{}).
			Where("id = ? AND status = ?", req.ID, models.RequestStatusActive).
			Update("status", models.RequestStatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidStateTransition
		}
		return tx.Model(&models.Chain{}).
			Where("request_id = ? AND status = ?", req.ID, models.ChainStatusActive).
			Update("status", models.ChainStatusFailed).Error
	})
	if err != nil {
		return nil, err
	}
	req.Status = models.RequestStatusCancelled
	if s.Notify != nil {
		s.Notify.Send(req.CreatorID, "Your connection request "+requestLabel(req)+" was cancelled",
			map[string]string{"request_id": req.ID})
	}
	return req, nil
}

// SoftDelete tombstones a request from any non-completed state. The chain
// and its participants keep their rows for audit.
func (s *RequestService) SoftDelete(requestID, byUserID string) error {
	req, err := s.Get(requestID)
	if err != nil {
		return err
	}
	if req.CreatorID != byUserID {
		return ErrUnauthorized
	}
	if req.Status == models.RequestStatusCompleted {
		return ErrInvalidStateTransition
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		tx.Model(&models.Chain{}).
			Where("request_id = ? AND status = ?", req.ID, models.ChainStatusActive).
			Update("status", models.ChainStatusFailed)
		return tx.Delete(req).Error
	})
}

// ExpireSweep flips every overdue active request to expired and fails its
// chain. Also invoked lazily from reads, so the sweep is just a backstop.
func (s *RequestService) ExpireSweep() (int64, error) {
	var expired int64
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ConnectRequest{}).
			Where("status = ? AND expires_at <= ?", models.RequestStatusActive, time.Now()).
			Update("status", models.RequestStatusExpired)
		if res.Error != nil {
			return res.Error
		}
		expired = res.RowsAffected
		return tx.Model(&models.Chain{}).
			Where("status = ? AND request_id IN (?)", models.ChainStatusActive,
				tx.Session(&gorm.Session{NewDB: true}).Model(&models.ConnectRequest{}).
					Select("id").Where("status = ?", models.RequestStatusExpired)).
			Update("status", models.ChainStatusFailed).Error
	})
	return expired, err
}

// expireRequestIfDue lazily flips an overdue active request to expired and
// fails its chain. The conditional update keeps it safe against a
// concurrent sweep doing the same.
func expireRequestIfDue(db *gorm.DB, req *models.ConnectRequest) {
	if req.Status != models.RequestStatusActive || req.ExpiresAt.After(time.Now()) {
		return
	}
	res := db.Model(&models.ConnectRequest{}).
		Where("id = ? AND status = ?", req.ID, models.RequestStatusActive).
		Update("status", models.RequestStatusExpired)
	if res.Error != nil {
		log.Printf("[Requests] lazy expire of %s failed: %v", req.ID, res.Error)
		return
	}
	req.Status = models.RequestStatusExpired
	if res.RowsAffected == 1 {
		if err := db.Model(&models.Chain{}).
			Where("request_id = ? AND status = ?", req.ID, models.ChainStatusActive).
			Update("status", models.ChainStatusFailed).Error; err != nil {
			log.Printf("[Requests] failed to fail chain for expired request %s: %v", req.ID, err)
		}
	}
}

// requestLabel is used in notification texts.
func requestLabel(req *models.ConnectRequest) string {
	if len(req.TargetDescription) <= 40 {
		return fmt.Sprintf("%q", req.TargetDescription)
	}
	return fmt.Sprintf("%q…", req.TargetDescription[:40])
}
