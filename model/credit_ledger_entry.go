package model

import "time"

// LedgerReason classifies why a ledger entry was written.
type LedgerReason string

const (
	LedgerReasonMonthlyGrant   LedgerReason = "monthly_grant"
	LedgerReasonJobReserve     LedgerReason = "job_reserve"
	LedgerReasonJobFinal       LedgerReason = "job_final"
	LedgerReasonJobRefund      LedgerReason = "job_refund"
	LedgerReasonAdminAdjust    LedgerReason = "admin_adjustment"
)

// CreditLedgerEntry is an append-only signed credit delta. Entries are
// never updated or deleted once written.
type CreditLedgerEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index:idx_ledger_user_month,priority:2" json:"created_at"`

	UserID uint   `gorm:"index:idx_ledger_user_month,priority:1;not null" json:"user_id"`
	Month  string `gorm:"type:varchar(7);index:idx_ledger_user_month,priority:1;not null" json:"month"` // "YYYY-MM"

	Delta  int          `gorm:"not null" json:"delta"`
	Reason LedgerReason `gorm:"type:varchar(20);not null" json:"reason"`

	JobID *uint `gorm:"index" json:"job_id,omitempty"`

	PricingVersion string `gorm:"type:varchar(20)" json:"pricing_version,omitempty"`
	Description    string `gorm:"type:text" json:"description,omitempty"`
}

func (CreditLedgerEntry) TableName() string {
	return "ledger"
}
