package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanTerms represents a loan at origination. Immutable once created.
type LoanTerms struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Principal    decimal.Decimal `json:"principal"`
	AnnualRate   decimal.Decimal `json:"annual_rate"` // fraction, e.g. 0.05 for 5% APR
	TermMonths   int             `json:"term_months"`
	OriginDate   time.Time       `json:"origin_date"`
	BalloonMonth *int            `json:"balloon_month,omitempty"` // 1-indexed, <= TermMonths
	CreatedAt    time.Time       `json:"created_at"`
}
