package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-service/internal/models"
	"loan-service/internal/schedule"
)

// twelveMonthLoan builds a 1200.00 zero-interest loan: 12 installments of
// exactly 100.00 each, which keeps the expected amounts easy to follow.
func twelveMonthLoan(t *testing.T) models.AmortizationSchedule {
	t.Helper()
	sched, err := schedule.BuildSchedule(models.LoanTerms{
		Principal:  decimal.RequireFromString("1200.00"),
		AnnualRate: decimal.Zero,
		TermMonths: 12,
		OriginDate: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return sched
}

func pay(amount string, date time.Time) models.Payment {
	return models.Payment{
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
		CheckNumber: "1042",
	}
}

func TestApplyPayment_ExactInstallment(t *testing.T) {
	sched := twelveMonthLoan(t)
	record := models.NewPaymentRecord(1, sched)
	require.Equal(t, "1200.00", record.Balance.StringFixed(2))

	updated, receipt, err := ApplyPayment(sched, record, pay("100.00", sched[0].DueDate))
	require.NoError(t, err)

	assert.Equal(t, "1100.00", updated.Balance.StringFixed(2))
	assert.Equal(t, 2, updated.NextInstallment)
	assert.Equal(t, "100.00", updated.ResidualDue.StringFixed(2))
	require.Len(t, updated.Payments, 1)
	assert.Equal(t, 1, updated.Payments[0].Number)

	assert.Equal(t, 1, receipt.FirstInstallment)
	assert.Equal(t, 1, receipt.LastInstallment)
	assert.Equal(t, 1, receipt.FullySatisfied)
	assert.Equal(t, "1100.00", receipt.RemainingBalance.StringFixed(2))
	assert.Equal(t, 0, receipt.DaysLate)
	assert.True(t, receipt.LateFee.IsZero())
}

func TestApplyPayment_Underpayment(t *testing.T) {
	sched := twelveMonthLoan(t)
	record := models.NewPaymentRecord(1, sched)

	updated, receipt, err := ApplyPayment(sched, record, pay("40.00", sched[0].DueDate))
	require.NoError(t, err)

	assert.Equal(t, 1, updated.NextInstallment, "installment stays unsatisfied")
	assert.Equal(t, "60.00", updated.ResidualDue.StringFixed(2))
	assert.Equal(t, "1160.00", updated.Balance.StringFixed(2))

	assert.Equal(t, 1, receipt.FirstInstallment)
	assert.Equal(t, 1, receipt.LastInstallment)
	assert.Equal(t, 0, receipt.FullySatisfied)
	assert.Equal(t, "60.00", receipt.ResidualDue.StringFixed(2))
}

func TestApplyPayment_SurplusRollsForward(t *testing.T) {
	sched := twelveMonthLoan(t)
	record := models.NewPaymentRecord(1, sched)

	updated, receipt, err := ApplyPayment(sched, record, pay("250.00", sched[0].DueDate))
	require.NoError(t, err)

	assert.Equal(t, 3, updated.NextInstallment)
	assert.Equal(t, "50.00", updated.ResidualDue.StringFixed(2))
	assert.Equal(t, "950.00", updated.Balance.StringFixed(2))

	assert.Equal(t, 1, receipt.FirstInstallment)
	assert.Equal(t, 3, receipt.LastInstallment)
	assert.Equal(t, 2, receipt.FullySatisfied)
}

func TestApplyPayment_SequenceDrivesBalanceToZero(t *testing.T) {
	sched := twelveMonthLoan(t)
	record := models.NewPaymentRecord(1, sched)

	amounts := []string{"350.00", "25.00", "600.00", "225.00"}
	for _, amount := range amounts {
		updated, _, err := ApplyPayment(sched, record, pay(amount, sched[0].DueDate))
		require.NoError(t, err)
		record = updated
	}

	assert.True(t, record.Settled())
	assert.True(t, record.Balance.IsZero())
	assert.Equal(t, 13, record.NextInstallment, "every installment covered")
	assert.True(t, record.ResidualDue.IsZero())
	assert.Len(t, record.Payments, 4)
}

func TestApplyPayment_ExactPayoffReceipt(t *testing.T) {
	sched := twelveMonthLoan(t)
	record := models.NewPaymentRecord(1, sched)

	updated, receipt, err := ApplyPayment(sched, record, pay("1200.00", sched[0].DueDate))
	require.NoError(t, err)

	assert.True(t, updated.Settled())
	assert.Equal(t, 1, receipt.FirstInstallment)
	assert.Equal(t, 12, receipt.LastInstallment)
	assert.Equal(t, 12, receipt.FullySatisfied)
	assert.True(t, receipt.RemainingBalance.IsZero())
}

func TestApplyPayment_Overpayment(t *testing.T) {
	sched := twelveMonthLoan(t)
	record := models.NewPaymentRecord(1, sched)

	_, _, err := ApplyPayment(sched, record, pay("1300.00", sched[0].DueDate))
	var overpay *OverpaymentError
	require.True(t, errors.As(err, &overpay))
	assert.Equal(t, "1200.00", overpay.MaxAcceptable.StringFixed(2))

	// The input record is untouched.
	assert.Equal(t, "1200.00", record.Balance.StringFixed(2))
	assert.Equal(t, 1, record.NextInstallment)
	assert.Empty(t, record.Payments)
}

func TestApplyPayment_InvalidAmount(t *testing.T) {
	sched := twelveMonthLoan(t)
	record := models.NewPaymentRecord(1, sched)

	for _, amount := range []string{"0", "-50.00"} {
		_, _, err := ApplyPayment(sched, record, pay(amount, sched[0].DueDate))
		assert.True(t, errors.Is(err, ErrInvalidPayment), "amount %s: got %v", amount, err)
	}
}

func TestApplyPayment_InputRecordNotMutated(t *testing.T) {
	sched := twelveMonthLoan(t)
	record := models.NewPaymentRecord(1, sched)

	first, _, err := ApplyPayment(sched, record, pay("100.00", sched[0].DueDate))
	require.NoError(t, err)
	_, _, err = ApplyPayment(sched, first, pay("100.00", sched[1].DueDate))
	require.NoError(t, err)

	assert.Equal(t, "1200.00", record.Balance.StringFixed(2))
	assert.Empty(t, record.Payments)
	assert.Len(t, first.Payments, 1, "later applications must not grow earlier histories")
}

func TestApplyPayment_AuditFieldsDoNotAffectApplication(t *testing.T) {
	sched := twelveMonthLoan(t)

	early := pay("100.00", sched[0].DueDate.AddDate(0, -1, 0))
	late := pay("100.00", sched[0].DueDate.AddDate(0, 6, 0))
	late.CheckNumber = "Cash"
	late.Notes = "paid at the office"

	a, _, err := ApplyPayment(sched, models.NewPaymentRecord(1, sched), early)
	require.NoError(t, err)
	b, _, err := ApplyPayment(sched, models.NewPaymentRecord(1, sched), late)
	require.NoError(t, err)

	assert.True(t, a.Balance.Equal(b.Balance))
	assert.Equal(t, a.NextInstallment, b.NextInstallment)
	assert.True(t, a.ResidualDue.Equal(b.ResidualDue))
}

func TestApplyPayment_LateFeeMemo(t *testing.T) {
	sched := twelveMonthLoan(t)
	record := models.NewPaymentRecord(1, sched)

	received := sched[0].DueDate.AddDate(0, 0, 10)
	_, receipt, err := ApplyPayment(sched, record, pay("100.00", received))
	require.NoError(t, err)

	assert.Equal(t, 10, receipt.DaysLate)
	// 100.00 principal at 18%/365 for 10 days.
	assert.Equal(t, "0.49", receipt.LateFee.StringFixed(2))
	// The fee is a memo line only; the balance moves by the payment amount.
	assert.Equal(t, "1100.00", receipt.RemainingBalance.StringFixed(2))
}

func TestApplyPayment_InterestBearingPayoff(t *testing.T) {
	sched, err := schedule.BuildSchedule(models.LoanTerms{
		Principal:  decimal.RequireFromString("10000.00"),
		AnnualRate: decimal.RequireFromString("0.06"),
		TermMonths: 1,
		OriginDate: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	record := models.NewPaymentRecord(1, sched)
	require.Equal(t, "10050.00", record.Balance.StringFixed(2))

	updated, _, err := ApplyPayment(sched, record, pay("10050.00", sched[0].DueDate))
	require.NoError(t, err)
	assert.True(t, updated.Settled())
}

func TestLateFee_OnTime(t *testing.T) {
	sched := twelveMonthLoan(t)
	days, fee := LateFee(sched[0], sched[0].DueDate)
	assert.Equal(t, 0, days)
	assert.True(t, fee.IsZero())
}
