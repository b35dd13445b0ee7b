package services

import (
	"testing"
	"time"

	"connect-chain-system/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.ConnectRequest{},
		&models.Chain{},
		&models.Participant{},
		&models.CreditTransaction{},
		&models.CreditAccount{},
		&models.TargetClaim{},
		&models.Notification{},
	))
	return db
}

type testEnv struct {
	db       *gorm.DB
	ledger   *LedgerService
	requests *RequestService
	chains   *ChainService
	claims   *ClaimService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	notify := NewNotificationService(db)
	ledger := NewLedgerService(db)
	return &testEnv{
		db:       db,
		ledger:   ledger,
		requests: NewRequestService(db, ledger, notify),
		chains:   NewChainService(db, notify),
		claims:   NewClaimService(db, ledger, notify),
	}
}

func (e *testEnv) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := e.ledger.Award(userID, amount, models.SourceBonus, nil)
	require.NoError(t, err)
}

func (e *testEnv) createRequest(t *testing.T, creatorID string, reward int64, ttl time.Duration) *models.ConnectRequest {
	t.Helper()
	req, err := e.requests.Create(CreateRequestInput{
		CreatorID:         creatorID,
		TargetDescription: "CTO of Acme Corp",
		Message:           "Looking for a warm intro",
		RewardTotal:       reward,
		ExpiresIn:         ttl,
	})
	require.NoError(t, err)
	return req
}

func (e *testEnv) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := e.ledger.BalanceOf(userID)
	require.NoError(t, err)
	return b
}
