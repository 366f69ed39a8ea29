// Package ledger implements the Credit Ledger: reserve/finalize/refund
// accounting for billable units, grounded on the quota-check pattern in
// the API key service and the append-only ledger shape of the source
// repo's GORM models.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/sahilchouksey/go-init-setup/model"
	"gorm.io/gorm"
)

// ErrInsufficientCredits is returned by Reserve when the user's current
// balance cannot cover the requested amount.
var ErrInsufficientCredits = errors.New("INSUFFICIENT_CREDITS")

// Ledger performs transactional credit accounting against CreditLedgerEntry.
type Ledger struct {
	db *gorm.DB
}

// New creates a Ledger bound to the given database handle.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func monthBucket(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Balance returns the current-month balance for a user: sum of positive
// deltas minus sum of negative deltas (deltas are already signed, so this
// is a plain sum).
func (l *Ledger) Balance(userID uint, month string) (int, error) {
	var total int64 // use sql.NullInt64-safe scan via raw struct
	row := struct {
		Total int64
	}{}
	err := l.db.Model(&model.CreditLedgerEntry{}).
		Select("COALESCE(SUM(delta), 0) as total").
		Where("user_id = ? AND month = ?", userID, month).
		Scan(&row).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute balance: %w", err)
	}
	total = row.Total
	return int(total), nil
}

// Reserve checks the current-month balance and, if sufficient, inserts a
// negative job_reserve entry. Fails with ErrInsufficientCredits otherwise.
func (l *Ledger) Reserve(userID, jobID uint, estimatedCredits int, pricingVersion string) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		var row struct{ Total int64 }
		month := monthBucket(time.Now())
		if err := tx.Model(&model.CreditLedgerEntry{}).
			Select("COALESCE(SUM(delta), 0) as total").
			Where("user_id = ? AND month = ?", userID, month).
			Scan(&row).Error; err != nil {
			return fmt.Errorf("failed to read balance: %w", err)
		}

		if int(row.Total) < estimatedCredits {
			return ErrInsufficientCredits
		}

		entry := model.CreditLedgerEntry{
			UserID:         userID,
			Month:          month,
			Delta:          -estimatedCredits,
			Reason:         model.LedgerReasonJobReserve,
			JobID:          &jobID,
			PricingVersion: pricingVersion,
			Description:    fmt.Sprintf("reserve %d credits for job %d", estimatedCredits, jobID),
		}
		return tx.Create(&entry).Error
	})
}

// Finalize reconciles the reserve against actual usage. If actual usage
// is less than the estimate, the adjustment entry is positive (a credit
// is returned to the user).
func (l *Ledger) Finalize(userID, jobID uint, estimatedCredits, actualCredits int, pricingVersion string) error {
	adjustment := actualCredits - estimatedCredits
	entry := model.CreditLedgerEntry{
		UserID:         userID,
		Month:          monthBucket(time.Now()),
		Delta:          -adjustment,
		Reason:         model.LedgerReasonJobFinal,
		JobID:          &jobID,
		PricingVersion: pricingVersion,
		Description:    fmt.Sprintf("finalize job %d: estimated=%d actual=%d", jobID, estimatedCredits, actualCredits),
	}
	return l.db.Create(&entry).Error
}

// Refund reverses a job's reserve on cancellation or fatal early failure.
// Guards against double-refund by checking for an existing job_refund
// entry for the same job first.
func (l *Ledger) Refund(userID, jobID uint, estimatedCredits int, pricingVersion string) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.CreditLedgerEntry{}).
			Where("job_id = ? AND reason = ?", jobID, model.LedgerReasonJobRefund).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check existing refund: %w", err)
		}
		if count > 0 {
			return nil // already refunded, idempotent no-op
		}

		entry := model.CreditLedgerEntry{
			UserID:         userID,
			Month:          monthBucket(time.Now()),
			Delta:          estimatedCredits,
			Reason:         model.LedgerReasonJobRefund,
			JobID:          &jobID,
			PricingVersion: pricingVersion,
			Description:    fmt.Sprintf("refund job %d", jobID),
		}
		return tx.Create(&entry).Error
	})
}

// MonthlyGrant is idempotent per (user, month): a repeat call for a month
// that already has a monthly_grant entry is a no-op.
func (l *Ledger) MonthlyGrant(userID uint, month string, amount int) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.CreditLedgerEntry{}).
			Where("user_id = ? AND month = ? AND reason = ?", userID, month, model.LedgerReasonMonthlyGrant).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check existing grant: %w", err)
		}
		if count > 0 {
			return nil
		}

		entry := model.CreditLedgerEntry{
			UserID:      userID,
			Month:       month,
			Delta:       amount,
			Reason:      model.LedgerReasonMonthlyGrant,
			Description: fmt.Sprintf("monthly grant for %s", month),
		}
		return tx.Create(&entry).Error
	})
}
