package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Installment represents one scheduled periodic payment obligation
type Installment struct {
	Index        int             `json:"index"` // 1-based position in the schedule
	DueDate      time.Time       `json:"due_date"`
	InterestDue  decimal.Decimal `json:"interest_due"`
	PrincipalDue decimal.Decimal `json:"principal_due"`
	TotalDue     decimal.Decimal `json:"total_due"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

// AmortizationSchedule is the ordered sequence of installments for a loan,
// one per month from origination through the final (or balloon) installment.
type AmortizationSchedule []Installment

// TotalDue returns the sum of principal and interest across the whole schedule.
func (s AmortizationSchedule) TotalDue() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range s {
		total = total.Add(inst.TotalDue)
	}
	return total
}
