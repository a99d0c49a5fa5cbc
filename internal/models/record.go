package models

import "github.com/shopspring/decimal"

// PaymentRecord tracks the ordered payment history of a loan together with
// the running balance and the position of the next unsatisfied installment.
// It is a value: the ledger takes a record in and returns an updated copy,
// leaving the input untouched. The storage collaborator is responsible for
// loading and persisting it atomically around each payment application.
type PaymentRecord struct {
	LoanID          int64           `json:"loan_id"`
	Payments        []Payment       `json:"payments"`
	Balance         decimal.Decimal `json:"balance"`          // total remaining principal + interest
	NextInstallment int             `json:"next_installment"` // 1-based index of the next unsatisfied installment
	ResidualDue     decimal.Decimal `json:"residual_due"`     // amount still owed on that installment
}

// NewPaymentRecord seeds an empty record from a freshly built schedule.
func NewPaymentRecord(loanID int64, schedule AmortizationSchedule) PaymentRecord {
	record := PaymentRecord{
		LoanID:          loanID,
		Balance:         schedule.TotalDue(),
		NextInstallment: 1,
	}
	if len(schedule) > 0 {
		record.ResidualDue = schedule[0].TotalDue
	}
	return record
}

// Settled reports whether the loan has been paid off in full.
func (r PaymentRecord) Settled() bool {
	return r.Balance.IsZero()
}
