package services

import (
	"testing"
	"time"

	"connect-chain-system/models"

	"github.com/stretchr/testify/require"
)

func TestAwardAndBalance(t *testing.T) {
	env := newTestEnv(t)

	txn, err := env.ledger.Award("alice", 100, models.SourceBonus, nil)
	require.NoError(t, err)
	require.Equal(t, models.CreditEarned, txn.Type)
	require.Equal(t, int64(100), txn.Amount)

	require.Equal(t, int64(100), env.balance(t, "alice"))
	require.Equal(t, int64(0), env.balance(t, "bob"))
}

func TestAwardRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Award("", 10, models.SourceBonus, nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.ledger.Award("alice", 0, models.SourceBonus, nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.ledger.Award("alice", -5, models.SourceBonus, nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSpendDebitsLogAndCache(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, "alice", 100)

	txn, err := env.ledger.Spend("alice", 30, models.SourceUnlockChain, nil)
	require.NoError(t, err)
	require.Equal(t, models.CreditSpent, txn.Type)
	require.Equal(t, int64(30), txn.Amount)
	require.Equal(t, int64(70), env.balance(t, "alice"))

	logSum, cached, err := env.ledger.Reconcile("alice")
	require.NoError(t, err)
	require.Equal(t, int64(70), logSum)
	require.Equal(t, logSum, cached)
}

func TestSpendInsufficientCredits(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, "alice", 40)

	_, err := env.ledger.Spend("alice", 50, models.SourceUnlockChain, nil)
	require.ErrorIs(t, err, ErrInsufficientCredits)

	// a failed spend leaves no trace in the log
	var spent int64
	require.NoError(t, env.db.Model(&models.CreditTransaction{}).
		Where("user_id = ? AND type = ?", "alice", models.CreditSpent).
		Count(&spent).Error)
	require.Zero(t, spent)
	require.Equal(t, int64(40), env.balance(t, "alice"))
}

func TestSpendExactBalance(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, "alice", 50)

	_, err := env.ledger.Spend("alice", 50, models.SourceUnlockChain, nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), env.balance(t, "alice"))

	_, err = env.ledger.Spend("alice", 1, models.SourceUnlockChain, nil)
	require.ErrorIs(t, err, ErrInsufficientCredits)
}

func TestSpendLostCASRaceSurfacesTryAgain(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, "alice", 100)

	// Force the arbiter to lose every retry: the log says 100 but the cached
	// account row only holds 10, as if concurrent spends kept draining it
	// between the balance read and the conditional update.
	require.NoError(t, env.db.Model(&models.CreditAccount{}).
		Where("user_id = ?", "alice").
		Update("balance", 10).Error)

	_, err := env.ledger.Spend("alice", 50, models.SourceUnlockChain, nil)
	require.ErrorIs(t, err, ErrTryAgain)

	var spent int64
	require.NoError(t, env.db.Model(&models.CreditTransaction{}).
		Where("user_id = ? AND type = ?", "alice", models.CreditSpent).
		Count(&spent).Error)
	require.Zero(t, spent)
}

func TestSequentialSpendsNeverOverdraw(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, "alice", 100)

	_, err := env.ledger.Spend("alice", 80, models.SourceUnlockChain, nil)
	require.NoError(t, err)
	_, err = env.ledger.Spend("alice", 30, models.SourceUnlockChain, nil)
	require.ErrorIs(t, err, ErrInsufficientCredits)

	b := env.balance(t, "alice")
	require.Equal(t, int64(20), b)
	require.GreaterOrEqual(t, b, int64(0))
}

func TestHistoryNewestFirstWithCursor(t *testing.T) {
	env := newTestEnv(t)
	for _, amount := range []int64{10, 20, 30} {
		env.fund(t, "alice", amount)
		time.Sleep(5 * time.Millisecond)
	}

	page, err := env.ledger.History("alice", 2, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, int64(30), page[0].Amount)
	require.Equal(t, int64(20), page[1].Amount)

	cursor := &HistoryCursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID}
	rest, err := env.ledger.History("alice", 2, cursor)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, int64(10), rest[0].Amount)
}

func TestHistoryCursorKeepsBoundaryTimestampRows(t *testing.T) {
	env := newTestEnv(t)

	// three rows on the exact same timestamp straddle a page boundary
	ts := time.Now().Truncate(time.Second)
	for _, id := range []string{"txn-a", "txn-b", "txn-c"} {
		require.NoError(t, env.db.Create(&models.CreditTransaction{
			ID:        id,
			UserID:    "alice",
			Amount:    10,
			Type:      models.CreditEarned,
			Source:    models.SourceBonus,
			CreatedAt: ts,
		}).Error)
	}

	first, err := env.ledger.History("alice", 2, nil)
	require.NoError(t, err)
	require.Len(t, first, 2)

	cursor := &HistoryCursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID}
	rest, err := env.ledger.History("alice", 2, cursor)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	seen := map[string]bool{first[0].ID: true, first[1].ID: true, rest[0].ID: true}
	require.Len(t, seen, 3)
}

func TestHistoryClampsLimit(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, "alice", 10)

	_, err := env.ledger.History("", 10, nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	page, err := env.ledger.History("alice", -1, nil)
	require.NoError(t, err)
	require.Len(t, page, 1)
}
