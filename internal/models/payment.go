package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Payment represents a single payment event. Created once, never mutated.
type Payment struct {
	ID          int64           `json:"id"`
	LoanID      int64           `json:"loan_id"`
	Number      int             `json:"number"` // position in the payment history, 1-based
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	CheckNumber string          `json:"check_number"` // check number, "ACH", or "Cash"
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Method classifies the payment instrument from the check number field.
func (p Payment) Method() string {
	if _, err := strconv.Atoi(p.CheckNumber); err == nil {
		return "check"
	}
	switch strings.ToLower(p.CheckNumber) {
	case "ach":
		return "ach"
	case "cash":
		return "cash"
	}
	return "unknown"
}
