package workers

import (
	"context"
	"log"
	"time"

	"connect-chain-system/models"

	"gorm.io/gorm"
)

// LedgerAuditor checks the invariant that every cached account balance
// equals the sum of earned minus spent over the append-only transaction
// log. The log is the source of truth; drift is reported, never "repaired"
// by rewriting history.
type LedgerAuditor struct {
	DB *gorm.DB
}

func NewLedgerAuditor(db *gorm.DB) *LedgerAuditor {
	return &LedgerAuditor{DB: db}
}

type auditRow struct {
	UserID    string
	Balance   int64
	LedgerSum int64
}

// Audit returns every account whose cached balance disagrees with the log,
// plus any account whose log-derived balance is negative (which should be
// impossible and indicates a serious bug).
func (a *LedgerAuditor) Audit() ([]auditRow, error) {
	var rows []auditRow
	err := a.DB.Raw(`
		SELECT a.user_id,
		       a.balance,
		       COALESCE(SUM(CASE WHEN t.type = ? THEN t.amount ELSE -t.amount END), 0) AS ledger_sum
		FROM credit_accounts a
		LEFT JOIN credit_transactions t ON t.user_id = a.user_id
		GROUP BY a.user_id, a.balance
	`, models.CreditEarned).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var bad []auditRow
	for _, r := range rows {
		if r.Balance != r.LedgerSum || r.LedgerSum < 0 {
			bad = append(bad, r)
		}
	}
	return bad, nil
}

// PollLedgerAudit runs the audit on a fixed interval until ctx is done.
func PollLedgerAudit(ctx context.Context, auditor *LedgerAuditor, pollInterval time.Duration) {
	log.Println("Starting ledger audit polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Ledger audit polling stopped.")
			return
		case <-ticker.C:
			bad, err := auditor.Audit()
			if err != nil {
				log.Printf("[AUDIT] ledger audit failed: %v", err)
				continue
			}
			if len(bad) == 0 {
				continue
			}
			for _, r := range bad {
				if r.LedgerSum < 0 {
					log.Printf("[AUDIT] NEGATIVE ledger balance for user %s: sum=%d", r.UserID, r.LedgerSum)
					continue
				}
				log.Printf("[AUDIT] balance drift for user %s: cached=%d ledger=%d",
					r.UserID, r.Balance, r.LedgerSum)
			}
		}
	}
}
