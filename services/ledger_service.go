package services

import (
	"errors"
	"time"

	"connect-chain-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService owns the append-only credit transaction log and the cached
// per-user account rows. Other services (requests, distribution) compose the
// *Tx variants into their own transactions so a debit and the rows it pays
// for commit or roll back together.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// Award appends an earned transaction. Always succeeds for a valid input.
func (s *LedgerService) Award(userID string, amount int64, source models.CreditSource, relatedChainID *string) (*models.CreditTransaction, error) {
	if userID == "" || amount <= 0 {
		return nil, ErrInvalidInput
	}
	var txn *models.CreditTransaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = s.awardTx(tx, userID, amount, source, relatedChainID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Spend appends a spent transaction only if the current balance covers it,
// checked and written in one atomic unit. A lost race against a concurrent
// spend is retried a bounded number of times with a fresh balance.
func (s *LedgerService) Spend(userID string, amount int64, source models.CreditSource, relatedChainID *string) (*models.CreditTransaction, error) {
	if userID == "" || amount <= 0 {
		return nil, ErrInvalidInput
	}
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		var txn *models.CreditTransaction
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			txn, err = s.spendTx(tx, userID, amount, source, relatedChainID)
			return err
		})
		if errors.Is(err, errSpendConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return txn, nil
	}
	return nil, ErrTryAgain
}

// BalanceOf recomputes the balance from the transaction log.
func (s *LedgerService) BalanceOf(userID string) (int64, error) {
	return s.balanceTx(s.DB, userID)
}

// HistoryCursor is an exclusive pagination cursor, taken from the last row
// of the previous page. ID breaks ties between rows sharing a timestamp so
// no row is skipped at the page boundary.
type HistoryCursor struct {
	CreatedAt time.Time
	ID        string
}

// History returns the user's transactions newest first.
func (s *LedgerService) History(userID string, limit int, before *HistoryCursor) ([]models.CreditTransaction, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if before != nil {
		if before.ID != "" {
			q = q.Where("created_at < ? OR (created_at = ? AND id < ?)",
				before.CreatedAt, before.CreatedAt, before.ID)
		} else {
			q = q.Where("created_at < ?", before.CreatedAt)
		}
	}
	var txns []models.CreditTransaction
	if err := q.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// Reconcile compares the cached account balance with the log-derived sum.
// Used by the audit worker; it never mutates the log.
func (s *LedgerService) Reconcile(userID string) (logSum, cached int64, err error) {
	logSum, err = s.balanceTx(s.DB, userID)
	if err != nil {
		return 0, 0, err
	}
	var acct models.CreditAccount
	if err := s.DB.First(&acct, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return logSum, 0, nil
		}
		return 0, 0, err
	}
	return logSum, acct.Balance, nil
}

// awardTx appends an earned entry and bumps the cached balance within the
// caller's transaction.
func (s *LedgerService) awardTx(tx *gorm.DB, userID string, amount int64, source models.CreditSource, relatedChainID *string) (*models.CreditTransaction, error) {
	txn := &models.CreditTransaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		Amount:         amount,
		Type:           models.CreditEarned,
		Source:         source,
		RelatedChainID: relatedChainID,
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, err
	}
	if err := s.ensureAccount(tx, userID); err != nil {
		return nil, err
	}
	res := tx.Model(&models.CreditAccount{}).
		Where("user_id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	return txn, nil
}

// spendTx appends a spent entry within the caller's transaction. The
// conditional update on the account row is the per-user arbiter: when a
// concurrent spend drained the balance first, it touches zero rows and the
// whole transaction rolls back with errSpendConflict.
func (s *LedgerService) spendTx(tx *gorm.DB, userID string, amount int64, source models.CreditSource, relatedChainID *string) (*models.CreditTransaction, error) {
	balance, err := s.balanceTx(tx, userID)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientCredits
	}
	if err := s.ensureAccount(tx, userID); err != nil {
		return nil, err
	}
	res := tx.Model(&models.CreditAccount{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, errSpendConflict
	}
	txn := &models.CreditTransaction{
		ID:             uuid.NewString(),
		UserID:         userID,
		Amount:         amount,
		Type:           models.CreditSpent,
		Source:         source,
		RelatedChainID: relatedChainID,
	}
	if err := tx.Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *LedgerService) balanceTx(tx *gorm.DB, userID string) (int64, error) {
	var balance int64
	err := tx.Model(&models.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0)", models.CreditEarned).
		Scan(&balance).Error
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *LedgerService) ensureAccount(tx *gorm.DB, userID string) error {
	acct := models.CreditAccount{UserID: userID}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&acct).Error
}
