package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-service/internal/models"
)

func intPtr(i int) *int { return &i }

func terms(principal string, rate string, months int) models.LoanTerms {
	return models.LoanTerms{
		Principal:  decimal.RequireFromString(principal),
		AnnualRate: decimal.RequireFromString(rate),
		TermMonths: months,
		OriginDate: time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuildSchedule_ZeroInterest(t *testing.T) {
	sched, err := BuildSchedule(terms("1200.00", "0", 12))
	require.NoError(t, err)
	require.Len(t, sched, 12)

	expected := decimal.RequireFromString("1200.00")
	for i, inst := range sched {
		assert.Equal(t, i+1, inst.Index)
		assert.True(t, inst.InterestDue.IsZero(), "installment %d interest = %s", inst.Index, inst.InterestDue)
		assert.Equal(t, "100.00", inst.PrincipalDue.StringFixed(2), "installment %d", inst.Index)
		expected = expected.Sub(inst.PrincipalDue)
		assert.True(t, inst.BalanceAfter.Equal(expected), "installment %d balance = %s, want %s", inst.Index, inst.BalanceAfter, expected)
	}
	assert.True(t, sched[11].BalanceAfter.IsZero())
}

func TestBuildSchedule_SingleMonth(t *testing.T) {
	sched, err := BuildSchedule(terms("10000.00", "0.06", 1))
	require.NoError(t, err)
	require.Len(t, sched, 1)

	assert.Equal(t, "50.00", sched[0].InterestDue.StringFixed(2))
	assert.Equal(t, "10000.00", sched[0].PrincipalDue.StringFixed(2))
	assert.Equal(t, "10050.00", sched[0].TotalDue.StringFixed(2))
	assert.True(t, sched[0].BalanceAfter.IsZero())
}

func TestBuildSchedule_DueDates(t *testing.T) {
	sched, err := BuildSchedule(terms("1200.00", "0", 3))
	require.NoError(t, err)

	origin := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	for i, inst := range sched {
		assert.Equal(t, origin.AddDate(0, i+1, 0), inst.DueDate)
	}
}

func TestBuildSchedule_PrincipalSumsToPrincipal(t *testing.T) {
	in := terms("250000.00", "0.055", 360)
	sched, err := BuildSchedule(in)
	require.NoError(t, err)
	require.Len(t, sched, 360)

	sum := decimal.Zero
	prev := in.Principal
	for _, inst := range sched {
		sum = sum.Add(inst.PrincipalDue)
		assert.True(t, inst.BalanceAfter.LessThanOrEqual(prev), "balance must not increase at installment %d", inst.Index)
		prev = inst.BalanceAfter
	}
	drift := sum.Sub(in.Principal).Abs()
	assert.True(t, drift.LessThanOrEqual(decimal.RequireFromString("0.01")), "principal drift %s", drift)
	assert.True(t, sched[359].BalanceAfter.IsZero())
}

func TestBuildSchedule_Balloon(t *testing.T) {
	in := terms("100000.00", "0.05", 360)
	in.BalloonMonth = intPtr(60)

	sched, err := BuildSchedule(in)
	require.NoError(t, err)
	require.Len(t, sched, 60)

	last := sched[59]
	assert.True(t, last.BalanceAfter.IsZero(), "balloon installment must settle the balance, got %s", last.BalanceAfter)
	assert.True(t, last.PrincipalDue.Equal(sched[58].BalanceAfter), "balloon principal must equal the prior balance")
	// A balloon lump sum dwarfs a regular amortizing installment.
	assert.True(t, last.PrincipalDue.GreaterThan(sched[58].PrincipalDue.Mul(decimal.NewFromInt(10))))
}

func TestBuildSchedule_BalloonAtFinalMonth(t *testing.T) {
	in := terms("1200.00", "0", 12)
	in.BalloonMonth = intPtr(12)

	sched, err := BuildSchedule(in)
	require.NoError(t, err)
	require.Len(t, sched, 12)
	assert.True(t, sched[11].BalanceAfter.IsZero())
}

func TestBuildSchedule_Idempotent(t *testing.T) {
	in := terms("35000.00", "0.0675", 48)
	first, err := BuildSchedule(in)
	require.NoError(t, err)
	second, err := BuildSchedule(in)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].DueDate, second[i].DueDate)
		assert.True(t, first[i].InterestDue.Equal(second[i].InterestDue))
		assert.True(t, first[i].PrincipalDue.Equal(second[i].PrincipalDue))
		assert.True(t, first[i].BalanceAfter.Equal(second[i].BalanceAfter))
	}
}

func TestBuildSchedule_InvalidTerms(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.LoanTerms)
	}{
		{"zero principal", func(tm *models.LoanTerms) { tm.Principal = decimal.Zero }},
		{"negative principal", func(tm *models.LoanTerms) { tm.Principal = decimal.RequireFromString("-100") }},
		{"zero term", func(tm *models.LoanTerms) { tm.TermMonths = 0 }},
		{"negative term", func(tm *models.LoanTerms) { tm.TermMonths = -6 }},
		{"negative rate", func(tm *models.LoanTerms) { tm.AnnualRate = decimal.RequireFromString("-0.01") }},
		{"balloon before start", func(tm *models.LoanTerms) { tm.BalloonMonth = intPtr(0) }},
		{"balloon past term", func(tm *models.LoanTerms) { tm.BalloonMonth = intPtr(13) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := terms("1200.00", "0.05", 12)
			tc.mutate(&in)
			_, err := BuildSchedule(in)
			assert.True(t, errors.Is(err, ErrInvalidTerms), "got %v", err)
		})
	}
}
