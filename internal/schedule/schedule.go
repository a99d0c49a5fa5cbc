// Package schedule computes amortization schedules for fixed-rate monthly loans.
package schedule

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"loan-service/internal/models"
)

// ErrInvalidTerms indicates the loan terms fail validation.
var ErrInvalidTerms = errors.New("invalid loan terms")

// BuildSchedule computes the full amortization schedule for the given terms
// using the standard monthly annuity recurrence. It is a pure function:
// identical terms always produce identical schedules.
//
// Every monetary field is rounded to 2 decimal places at the point it is
// computed, matching conventional amortization-table presentation. The final
// installment's principal is the exact remaining balance so the schedule
// always closes at 0.00. If a balloon month is set, the schedule stops there
// with the full remaining balance due as the balloon principal.
func BuildSchedule(terms models.LoanTerms) (models.AmortizationSchedule, error) {
	if err := validateTerms(terms); err != nil {
		return nil, err
	}

	monthlyRate := terms.AnnualRate.InexactFloat64() / 12.0

	length := terms.TermMonths
	if terms.BalloonMonth != nil {
		length = *terms.BalloonMonth
	}

	// Fixed monthly payment by the annuity formula; the power factor is the
	// only piece computed in float64.
	var payment decimal.Decimal
	if monthlyRate == 0 {
		payment = terms.Principal.Div(decimal.NewFromInt(int64(terms.TermMonths))).Round(2)
	} else {
		factor := math.Pow(1+monthlyRate, float64(terms.TermMonths))
		payment = decimal.NewFromFloat(terms.Principal.InexactFloat64() * monthlyRate * factor / (factor - 1)).Round(2)
	}

	rate := decimal.NewFromFloat(monthlyRate)
	balance := terms.Principal
	result := make(models.AmortizationSchedule, 0, length)

	for i := 1; i <= length; i++ {
		interest := balance.Mul(rate).Round(2)
		principal := payment.Sub(interest)

		// The last generated installment pays the balance off exactly. For a
		// balloon schedule that is the balloon lump sum; otherwise it absorbs
		// the rounding drift of the preceding months.
		if i == length {
			principal = balance
		}

		balance = balance.Sub(principal)
		result = append(result, models.Installment{
			Index:        i,
			DueDate:      terms.OriginDate.AddDate(0, i, 0),
			InterestDue:  interest,
			PrincipalDue: principal,
			TotalDue:     principal.Add(interest),
			BalanceAfter: balance,
		})
	}

	return result, nil
}

func validateTerms(terms models.LoanTerms) error {
	if !terms.Principal.IsPositive() {
		return fmt.Errorf("%w: principal must be positive, got %s", ErrInvalidTerms, terms.Principal)
	}
	if terms.TermMonths <= 0 {
		return fmt.Errorf("%w: term must be positive, got %d months", ErrInvalidTerms, terms.TermMonths)
	}
	if terms.AnnualRate.IsNegative() {
		return fmt.Errorf("%w: annual rate must not be negative, got %s", ErrInvalidTerms, terms.AnnualRate)
	}
	if terms.BalloonMonth != nil {
		if m := *terms.BalloonMonth; m < 1 || m > terms.TermMonths {
			return fmt.Errorf("%w: balloon month %d out of range [1, %d]", ErrInvalidTerms, m, terms.TermMonths)
		}
	}
	return nil
}
