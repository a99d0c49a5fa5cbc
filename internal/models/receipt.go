package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is a read-only projection of one applied payment, produced for the
// presentation collaborator to render. It is derived state, never stored as
// the source of truth.
type Receipt struct {
	ID               string          `json:"id"`
	LoanID           int64           `json:"loan_id"`
	PaymentNumber    int             `json:"payment_number"`
	Amount           decimal.Decimal `json:"amount"`
	Date             time.Time       `json:"date"`
	CheckNumber      string          `json:"check_number"`
	Method           string          `json:"method"`
	Notes            string          `json:"notes,omitempty"`
	FirstInstallment int             `json:"first_installment"` // first installment the payment advanced
	LastInstallment  int             `json:"last_installment"`  // last installment the payment advanced
	FullySatisfied   int             `json:"fully_satisfied"`   // installments paid off in full by this payment
	ResidualDue      decimal.Decimal `json:"residual_due"`      // remaining due on the last advanced installment
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	DueDate          time.Time       `json:"due_date"` // due date of the first advanced installment
	DaysLate         int             `json:"days_late"`
	LateFee          decimal.Decimal `json:"late_fee"` // memo amount, not added to the balance
	HMAC             string          `json:"hmac"`
	IssuedAt         time.Time       `json:"issued_at"`
}
