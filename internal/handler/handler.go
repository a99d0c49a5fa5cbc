package handler

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"loan-service/internal/ledger"
	"loan-service/internal/models"
	"loan-service/internal/schedule"
	"loan-service/internal/service"
)

const dateFormat = "2006-01-02"

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		http.Error(w, "username, email, and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.svc.Register(req.Username, req.Email, req.Password)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.svc.Login(req.Email, req.Password)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

type createLoanRequest struct {
	Principal    decimal.Decimal `json:"principal"`
	AnnualRate   decimal.Decimal `json:"annual_rate"`
	TermMonths   int             `json:"term_months"`
	OriginDate   string          `json:"origin_date"` // YYYY-MM-DD
	BalloonMonth *int            `json:"balloon_month,omitempty"`
}

type createLoanResponse struct {
	Loan     *models.LoanTerms           `json:"loan"`
	Schedule models.AmortizationSchedule `json:"schedule"`
}

// CreateLoan originates a loan and returns its amortization schedule
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	originDate, err := time.Parse(dateFormat, req.OriginDate)
	if err != nil {
		http.Error(w, "origin_date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	terms := models.LoanTerms{
		Principal:    req.Principal,
		AnnualRate:   req.AnnualRate,
		TermMonths:   req.TermMonths,
		OriginDate:   originDate,
		BalloonMonth: req.BalloonMonth,
	}

	loan, sched, err := h.svc.CreateLoan(r.Context(), terms)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidTerms) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, createLoanResponse{Loan: loan, Schedule: sched})
}

// GetSchedule returns the amortization schedule as JSON
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		http.Error(w, "Invalid loan id", http.StatusBadRequest)
		return
	}

	sched, err := h.svc.GetSchedule(id)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sched)
}

// GetScheduleCSV renders the amortization schedule as a CSV table
func (h *Handler) GetScheduleCSV(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		http.Error(w, "Invalid loan id", http.StatusBadRequest)
		return
	}

	loan, err := h.svc.GetLoan(id)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	sched, err := h.svc.GetSchedule(id)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=Amortization-Table-%dmonths.csv", loan.TermMonths))

	interestCol := fmt.Sprintf("Interest (%s%% APR)", loan.AnnualRate.Mul(decimal.NewFromInt(100)))
	writer := csv.NewWriter(w)
	writer.Write([]string{"Payment Number", "Due Date", "Starting Balance", "Total Due", "Principal", interestCol, "Ending Balance"})

	starting := loan.Principal
	for _, inst := range sched {
		writer.Write([]string{
			strconv.Itoa(inst.Index),
			inst.DueDate.Format("January 2, 2006"),
			"$" + starting.StringFixed(2),
			"$" + inst.TotalDue.StringFixed(2),
			"$" + inst.PrincipalDue.StringFixed(2),
			"$" + inst.InterestDue.StringFixed(2),
			"$" + inst.BalanceAfter.StringFixed(2),
		})
		starting = inst.BalanceAfter
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		// Headers are already out; the client gets a truncated body.
		h.log.Errorf("Failed to stream schedule CSV for loan %d: %v", id, err)
	}
}

type applyPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"` // YYYY-MM-DD
	CheckNumber string          `json:"check_number"`
	Notes       string          `json:"notes,omitempty"`
}

// ApplyPayment records a payment against a loan and returns the receipt
func (h *Handler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		http.Error(w, "Invalid loan id", http.StatusBadRequest)
		return
	}

	var req applyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(dateFormat, req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	payment := models.Payment{
		Amount:      req.Amount,
		Date:        date,
		CheckNumber: req.CheckNumber,
		Notes:       req.Notes,
	}

	receipt, err := h.svc.ApplyPayment(r.Context(), id, payment)
	if err != nil {
		var overpay *ledger.OverpaymentError
		switch {
		case errors.Is(err, ledger.ErrInvalidPayment):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.As(err, &overpay):
			respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error":          overpay.Error(),
				"max_acceptable": overpay.MaxAcceptable.StringFixed(2),
			})
		default:
			respondStorageError(w, err)
		}
		return
	}
	respondJSON(w, http.StatusCreated, receipt)
}

// ListPayments returns the ordered payment history for a loan
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		http.Error(w, "Invalid loan id", http.StatusBadRequest)
		return
	}

	record, err := h.svc.GetPaymentRecord(id)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record.Payments)
}

// GetBalance returns the running balance and next installment position
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := loanID(r)
	if err != nil {
		http.Error(w, "Invalid loan id", http.StatusBadRequest)
		return
	}

	record, err := h.svc.GetPaymentRecord(id)
	if err != nil {
		respondStorageError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"loan_id":          record.LoanID,
		"balance":          record.Balance,
		"next_installment": record.NextInstallment,
		"residual_due":     record.ResidualDue,
		"settled":          record.Settled(),
	})
}

func loanID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondStorageError(w http.ResponseWriter, err error) {
	if strings.Contains(err.Error(), "not found") {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
