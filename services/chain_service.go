package services

import (
	"errors"
	"time"

	"connect-chain-system/models"
	"connect-chain-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChainService struct {
	DB     *gorm.DB
	Notify *NotificationService
}

func NewChainService(db *gorm.DB, notify *NotificationService) *ChainService {
	return &ChainService{DB: db, Notify: notify}
}

// Join implements create-or-join for a request's chain, idempotent and
// race-safe: joining twice returns the same participant, two concurrent
// joins for the same new user collapse onto the (chain_id, user_id) unique
// index and the loser re-reads the winner's row.
func (s *ChainService) Join(requestID, userID string, parentUserID *string) (*models.Participant, error) {
	if requestID == "" || userID == "" {
		return nil, ErrInvalidInput
	}
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		p, creatorID, err := s.joinOnce(requestID, userID, parentUserID)
		if errors.Is(err, errJoinConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if s.Notify != nil && userID != creatorID {
			s.Notify.Send(creatorID, "Someone joined your connection chain",
				map[string]string{"request_id": requestID, "user_id": userID})
		}
		return p, nil
	}
	return nil, ErrTryAgain
}

func (s *ChainService) joinOnce(requestID, userID string, parentUserID *string) (*models.Participant, string, error) {
	var out *models.Participant
	var creatorID string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var req models.ConnectRequest
		if err := tx.First(&req, "id = ?", requestID).Error; err != nil {
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
		err := tx.First(&chain, "request_id = ?", requestID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Request creation seeds the chain, so this branch only runs if
			// that ever changes or a chain row went missing; only the
			// creator may seed it, as the sole root.
			if userID != req.CreatorID {
				return ErrNotFound
			}
			chain = models.Chain{
				ID:          uuid.NewString(),
				RequestID:   req.ID,
				Status:      models.ChainStatusActive,
				TotalReward: req.RewardTotal,
			}
			if err := tx.Create(&chain).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return errJoinConflict // lost the create race, retry will find it
				}
				return err
			}
			root := &models.Participant{
				ID:            uuid.NewString(),
				ChainID:       chain.ID,
				UserID:        req.CreatorID,
				Role:          models.RoleCreator,
				Position:      0,
				ShareableLink: utils.NewShareableLink(req.TargetDescription),
			}
			if err := tx.Create(root).Error; err != nil {
				return err
			}
			out = root
			return nil
		}
		if err != nil {
			return err
		}
		if chain.Status != models.ChainStatusActive {
			return ErrRequestInactive
		}

		// A creator is the root already; re-joining their own chain as a
		// forwarder is rejected, not treated as idempotent.
		if userID == req.CreatorID {
			return ErrCannotJoinOwnChain
		}

		var existing models.Participant
		err = tx.First(&existing, "chain_id = ? AND user_id = ?", chain.ID, userID).Error
		if err == nil {
			out = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// Attribution: the supplied parent counts only if already a member,
		// otherwise the creator takes the edge.
		parent := req.CreatorID
		if parentUserID != nil && *parentUserID != "" && *parentUserID != userID {
			var pp models.Participant
			err := tx.First(&pp, "chain_id = ? AND user_id = ?", chain.ID, *parentUserID).Error
			if err == nil {
				parent = *parentUserID
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		var count int64
		if err := tx.Model(&models.Participant{}).Where("chain_id = ?", chain.ID).Count(&count).Error; err != nil {
			return err
		}
		p := &models.Participant{
			ID:            uuid.NewString(),
			ChainID:       chain.ID,
			UserID:        userID,
			Role:          models.RoleForwarder,
			ParentUserID:  &parent,
			Position:      int(count),
			ShareableLink: utils.NewShareableLink(req.TargetDescription),
		}
		if err := tx.Create(p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// same user raced in twice, or two joins collided on the
				// position slot — retry re-reads and settles it
				return errJoinConflict
			}
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, creatorID, err
	}
	return out, creatorID, nil
}

// Get returns a chain with its participants in join order. id may be the
// chain id or its request id.
func (s *ChainService) Get(id string) (*models.Chain, error) {
	var chain models.Chain
	err := s.DB.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ? OR request_id = ?", id, id).
		First(&chain).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &chain, nil
}

// MarkFailed moves an active chain to failed (cancelled/expired request).
// Participants keep their rows; no reward is ever computed for it.
func (s *ChainService) MarkFailed(chainID string) error {
	res := s.DB.Model(&models.Chain{}).
		Where("id = ? AND status = ?", chainID, models.ChainStatusActive).
		Update("status", models.ChainStatusFailed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidStateTransition
	}
	return nil
}

// ResolveLink maps a shareable link to its request, and to the owning
// participant when it is a participant link (request links return nil owner).
func (s *ChainService) ResolveLink(link string) (*models.ConnectRequest, *models.Participant, error) {
	if link == "" {
		return nil, nil, ErrInvalidInput
	}
	var p models.Participant
	err := s.DB.First(&p, "shareable_link = ?", link).Error
	if err == nil {
		var chain models.Chain
		if err := s.DB.First(&chain, "id = ?", p.ChainID).Error; err != nil {
			return nil, nil, err
		}
		var req models.ConnectRequest
		if err := s.DB.First(&req, "id = ?", chain.RequestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, ErrNotFound
			}
			return nil, nil, err
		}
		expireRequestIfDue(s.DB, &req)
		return &req, &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	var req models.ConnectRequest
	if err := s.DB.First(&req, "shareable_link = ?", link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	expireRequestIfDue(s.DB, &req)
	return &req, nil, nil
}

// JoinByLink joins a chain through a shared link, attributing the link's
// owner as parent when it is a participant link.
func (s *ChainService) JoinByLink(link, userID string) (*models.Participant, error) {
	req, owner, err := s.ResolveLink(link)
	if err != nil {
		return nil, err
	}
	var parent *string
	if owner != nil {
		parent = &owner.UserID
	}
	return s.Join(req.ID, userID, parent)
}
