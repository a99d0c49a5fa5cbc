package repository

import (
	"database/sql"
	"fmt"

	"loan-service/internal/models"
)

// LoanRepository abstracts persistence of loans, schedules, and payment
// records so the service layer can be tested without a database.
type LoanRepository interface {
	CreateUser(user *models.User) error
	FindUserByEmail(email string) (*models.User, error)
	FindUserByID(id int64) (*models.User, error)
	CreateLoan(terms *models.LoanTerms, schedule models.AmortizationSchedule, record models.PaymentRecord) error
	FindLoanByID(id int64) (*models.LoanTerms, error)
	FindActiveLoans() ([]*models.LoanTerms, error)
	FindSchedule(loanID int64) (models.AmortizationSchedule, error)
	FindPaymentRecord(loanID int64) (*models.PaymentRecord, error)
	ApplyPayment(loanID int64, apply PaymentFunc) error
}

// PaymentFunc transforms a payment record loaded under the row lock into its
// successor state plus the payment row to store. Returning an error aborts
// the transaction with nothing persisted.
type PaymentFunc func(record models.PaymentRecord) (*models.PaymentRecord, *models.Payment, error)

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(user *models.User) error {
	query := `
		INSERT INTO loan.users (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRow(query, user.Username, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM loan.users
		WHERE email = $1`
	err := r.db.QueryRow(query, email).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByID retrieves a user by id
func (r *Repository) FindUserByID(id int64) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM loan.users
		WHERE id = $1`
	err := r.db.QueryRow(query, id).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreateLoan stores the loan terms, the full amortization schedule, and the
// seeded payment record in a single transaction.
func (r *Repository) CreateLoan(terms *models.LoanTerms, schedule models.AmortizationSchedule, record models.PaymentRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO loan.loans (user_id, principal, annual_rate, term_months, origin_date, balloon_month,
			balance, next_installment, residual_due, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err = tx.QueryRow(query,
		terms.UserID, terms.Principal, terms.AnnualRate, terms.TermMonths, terms.OriginDate, terms.BalloonMonth,
		record.Balance, record.NextInstallment, record.ResidualDue).
		Scan(&terms.ID, &terms.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO loan.installments (loan_id, idx, due_date, interest_due, principal_due, total_due, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("failed to prepare installment insert: %w", err)
	}
	defer stmt.Close()
	for _, inst := range schedule {
		if _, err := stmt.Exec(terms.ID, inst.Index, inst.DueDate, inst.InterestDue, inst.PrincipalDue, inst.TotalDue, inst.BalanceAfter); err != nil {
			return fmt.Errorf("failed to store installment %d: %w", inst.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit loan: %w", err)
	}
	return nil
}

// FindLoanByID retrieves loan terms by id
func (r *Repository) FindLoanByID(id int64) (*models.LoanTerms, error) {
	terms := &models.LoanTerms{}
	query := `
		SELECT id, user_id, principal, annual_rate, term_months, origin_date, balloon_month, created_at
		FROM loan.loans
		WHERE id = $1`
	err := r.db.QueryRow(query, id).
		Scan(&terms.ID, &terms.UserID, &terms.Principal, &terms.AnnualRate, &terms.TermMonths,
			&terms.OriginDate, &terms.BalloonMonth, &terms.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("loan not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find loan: %w", err)
	}
	return terms, nil
}

// FindActiveLoans retrieves all loans that still carry a balance
func (r *Repository) FindActiveLoans() ([]*models.LoanTerms, error) {
	query := `
		SELECT id, user_id, principal, annual_rate, term_months, origin_date, balloon_month, created_at
		FROM loan.loans
		WHERE balance > 0
		ORDER BY id`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active loans: %w", err)
	}
	defer rows.Close()

	var loans []*models.LoanTerms
	for rows.Next() {
		terms := &models.LoanTerms{}
		if err := rows.Scan(&terms.ID, &terms.UserID, &terms.Principal, &terms.AnnualRate, &terms.TermMonths,
			&terms.OriginDate, &terms.BalloonMonth, &terms.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, terms)
	}
	return loans, rows.Err()
}

// FindSchedule retrieves the full amortization schedule for a loan
func (r *Repository) FindSchedule(loanID int64) (models.AmortizationSchedule, error) {
	query := `
		SELECT idx, due_date, interest_due, principal_due, total_due, balance_after
		FROM loan.installments
		WHERE loan_id = $1
		ORDER BY idx`
	rows, err := r.db.Query(query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	defer rows.Close()

	var result models.AmortizationSchedule
	for rows.Next() {
		var inst models.Installment
		if err := rows.Scan(&inst.Index, &inst.DueDate, &inst.InterestDue, &inst.PrincipalDue, &inst.TotalDue, &inst.BalanceAfter); err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		result = append(result, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("schedule not found for loan %d", loanID)
	}
	return result, nil
}

// FindPaymentRecord reconstructs the payment record for a loan from the
// loan's running state plus the ordered payment history.
func (r *Repository) FindPaymentRecord(loanID int64) (*models.PaymentRecord, error) {
	record := &models.PaymentRecord{LoanID: loanID}
	query := `
		SELECT balance, next_installment, residual_due
		FROM loan.loans
		WHERE id = $1`
	err := r.db.QueryRow(query, loanID).
		Scan(&record.Balance, &record.NextInstallment, &record.ResidualDue)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("loan not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment record: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT id, number, amount, received_date, check_number, notes, created_at
		FROM loan.payments
		WHERE loan_id = $1
		ORDER BY number`, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p := models.Payment{LoanID: loanID}
		if err := rows.Scan(&p.ID, &p.Number, &p.Amount, &p.Date, &p.CheckNumber, &p.Notes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		record.Payments = append(record.Payments, p)
	}
	return record, rows.Err()
}

// ApplyPayment runs one payment application as a single read-modify-write:
// the record is loaded under a row lock on the loan, handed to apply, and
// the returned state is persisted before the lock is released. Concurrent
// applications serialize on the lock and each sees the previous one's
// committed state, which is the exclusivity the core requires of its caller.
func (r *Repository) ApplyPayment(loanID int64, apply PaymentFunc) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	record := models.PaymentRecord{LoanID: loanID}
	err = tx.QueryRow(`
		SELECT balance, next_installment, residual_due
		FROM loan.loans
		WHERE id = $1
		FOR UPDATE`, loanID).
		Scan(&record.Balance, &record.NextInstallment, &record.ResidualDue)
	if err == sql.ErrNoRows {
		return fmt.Errorf("loan not found")
	}
	if err != nil {
		return fmt.Errorf("failed to lock loan %d: %w", loanID, err)
	}

	rows, err := tx.Query(`
		SELECT id, number, amount, received_date, check_number, notes, created_at
		FROM loan.payments
		WHERE loan_id = $1
		ORDER BY number`, loanID)
	if err != nil {
		return fmt.Errorf("failed to load payments: %w", err)
	}
	for rows.Next() {
		p := models.Payment{LoanID: loanID}
		if err := rows.Scan(&p.ID, &p.Number, &p.Amount, &p.Date, &p.CheckNumber, &p.Notes, &p.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan payment: %w", err)
		}
		record.Payments = append(record.Payments, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to load payments: %w", err)
	}

	updated, payment, err := apply(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO loan.payments (loan_id, number, amount, received_date, check_number, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err = tx.QueryRow(query, payment.LoanID, payment.Number, payment.Amount, payment.Date, payment.CheckNumber, payment.Notes).
		Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store payment: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE loan.loans
		SET balance = $1, next_installment = $2, residual_due = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4`,
		updated.Balance, updated.NextInstallment, updated.ResidualDue, loanID)
	if err != nil {
		return fmt.Errorf("failed to update payment record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit payment: %w", err)
	}
	return nil
}
