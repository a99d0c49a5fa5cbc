// Package ledger applies payments against an amortization schedule and keeps
// the payment record consistent with the remaining debt.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"loan-service/internal/models"
)

// ErrInvalidPayment indicates a payment with a non-positive amount.
var ErrInvalidPayment = errors.New("invalid payment")

// OverpaymentError is returned when a payment exceeds the total remaining
// debt. MaxAcceptable is the largest amount the ledger would accept.
type OverpaymentError struct {
	MaxAcceptable decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment exceeds remaining balance: maximum acceptable amount is %s", e.MaxAcceptable.StringFixed(2))
}

// Late fees accrue on the overdue installment's principal at a nominal 18%
// annual rate, prorated per day. The 18% figure is the lending policy here,
// not a derived quantity.
var dailyLateRate = decimal.NewFromFloat(0.18).Div(decimal.NewFromInt(365))

// LateFee computes how many days past due the installment is as of the given
// time and the accrued late fee. The fee is a memo amount for receipts and
// reminders; it is never added to the loan balance.
func LateFee(inst models.Installment, asOf time.Time) (int, decimal.Decimal) {
	if !asOf.After(inst.DueDate) {
		return 0, decimal.Zero
	}
	daysLate := int(asOf.Sub(inst.DueDate).Hours() / 24)
	if daysLate == 0 {
		return 0, decimal.Zero
	}
	fee := inst.PrincipalDue.Mul(dailyLateRate).Mul(decimal.NewFromInt(int64(daysLate))).Round(2)
	return daysLate, fee
}

// ApplyPayment applies one payment against the schedule and the existing
// payment history, returning the updated record and a receipt. The input
// record is never mutated: on error the caller's state is untouched and
// must not be persisted.
//
// Payments are matched against installments strictly in remaining-balance
// order. A surplus over the current installment's remaining due rolls
// forward, possibly satisfying several installments; a shortfall leaves a
// residual due on the current one. The payment date and check number are
// audit fields only and never affect how the amount is applied.
//
// The caller must hold exclusive access to the record for the duration of
// the call; the storage collaborator provides that atomicity.
func ApplyPayment(schedule models.AmortizationSchedule, history models.PaymentRecord, payment models.Payment) (models.PaymentRecord, models.Receipt, error) {
	if !payment.Amount.IsPositive() {
		return models.PaymentRecord{}, models.Receipt{}, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidPayment, payment.Amount)
	}
	if payment.Amount.GreaterThan(history.Balance) {
		return models.PaymentRecord{}, models.Receipt{}, &OverpaymentError{MaxAcceptable: history.Balance}
	}

	remaining := payment.Amount
	index := history.NextInstallment
	residual := history.ResidualDue
	first := index
	satisfied := 0

	// Roll the amount forward installment by installment.
	for index <= len(schedule) && remaining.GreaterThanOrEqual(residual) {
		remaining = remaining.Sub(residual)
		satisfied++
		index++
		if index <= len(schedule) {
			residual = schedule[index-1].TotalDue
		} else {
			residual = decimal.Zero
		}
		if remaining.IsZero() {
			break
		}
	}
	if remaining.IsPositive() {
		residual = residual.Sub(remaining)
	}

	last := index - 1
	if remaining.IsPositive() {
		last = index
	}

	payment.Number = len(history.Payments) + 1
	updated := models.PaymentRecord{
		LoanID:          history.LoanID,
		Payments:        append(append([]models.Payment(nil), history.Payments...), payment),
		Balance:         history.Balance.Sub(payment.Amount),
		NextInstallment: index,
		ResidualDue:     residual,
	}

	covered := schedule[first-1]
	daysLate, lateFee := LateFee(covered, payment.Date)

	receipt := models.Receipt{
		ID:               uuid.NewString(),
		LoanID:           history.LoanID,
		PaymentNumber:    payment.Number,
		Amount:           payment.Amount,
		Date:             payment.Date,
		CheckNumber:      payment.CheckNumber,
		Method:           payment.Method(),
		Notes:            payment.Notes,
		FirstInstallment: first,
		LastInstallment:  last,
		FullySatisfied:   satisfied,
		ResidualDue:      residual,
		RemainingBalance: updated.Balance,
		DueDate:          covered.DueDate,
		DaysLate:         daysLate,
		LateFee:          lateFee,
		IssuedAt:         time.Now(),
	}

	return updated, receipt, nil
}
