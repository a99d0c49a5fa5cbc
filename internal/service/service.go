package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"loan-service/internal/config"
	"loan-service/internal/ledger"
	"loan-service/internal/models"
	"loan-service/internal/repository"
	"loan-service/internal/schedule"
	"loan-service/internal/utils"
)

// Mailer sends borrower-facing notifications.
type Mailer interface {
	SendReceipt(to, username string, receipt models.Receipt) error
	SendPaymentReminder(to, username string, inst models.Installment, daysOverdue int, lateFee decimal.Decimal) error
}

// RateSource provides a reference interest rate for origination sanity checks.
type RateSource interface {
	GetKeyRate() (float64, error)
}

// Service handles business logic
type Service struct {
	repo   repository.LoanRepository
	cache  repository.CacheRepository
	mail   Mailer
	rates  RateSource
	log    *logrus.Logger
	config *config.Config
}

// NewService initializes a new service
func NewService(repo repository.LoanRepository, cache repository.CacheRepository, mail Mailer, rates RateSource, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{repo: repo, cache: cache, mail: mail, rates: rates, log: log, config: cfg}
}

// Register creates a new user with hashed password
func (s *Service) Register(username, email, password string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	if err := s.repo.CreateUser(user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(email, password string) (string, error) {
	user, err := s.repo.FindUserByEmail(email)
	if err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", user.ID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}

// CreateLoan validates the terms, builds the amortization schedule, and
// persists the loan together with its schedule and an empty payment record.
func (s *Service) CreateLoan(ctx context.Context, terms models.LoanTerms) (*models.LoanTerms, models.AmortizationSchedule, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	terms.UserID = userID

	sched, err := schedule.BuildSchedule(terms)
	if err != nil {
		return nil, nil, err
	}

	// Compare the quoted rate against the central bank key rate. Advisory
	// only: a failed lookup never blocks origination.
	if keyRate, err := s.rates.GetKeyRate(); err != nil {
		s.log.Warnf("Key rate lookup failed: %v", err)
	} else if quoted := terms.AnnualRate.Mul(decimal.NewFromInt(100)).InexactFloat64(); quoted < keyRate {
		s.log.Warnf("Loan rate %.2f%% is below the key rate %.2f%%", quoted, keyRate)
	}

	record := models.NewPaymentRecord(0, sched)
	if err := s.repo.CreateLoan(&terms, sched, record); err != nil {
		return nil, nil, err
	}

	if err := s.cacheSchedule(terms.ID, sched); err != nil {
		s.log.Warnf("Failed to cache schedule for loan %d: %v", terms.ID, err)
	}

	s.log.Infof("Loan %d created for user %d: %s over %d months", terms.ID, userID, terms.Principal.StringFixed(2), terms.TermMonths)
	return &terms, sched, nil
}

// GetLoan retrieves loan terms by id
func (s *Service) GetLoan(loanID int64) (*models.LoanTerms, error) {
	return s.repo.FindLoanByID(loanID)
}

// GetSchedule returns the amortization schedule for a loan, cache first.
func (s *Service) GetSchedule(loanID int64) (models.AmortizationSchedule, error) {
	key := scheduleCacheKey(loanID)
	if raw, ok := s.cache.Get(key); ok {
		var sched models.AmortizationSchedule
		if err := json.Unmarshal([]byte(raw), &sched); err == nil {
			return sched, nil
		}
		s.log.Warnf("Discarding unreadable cached schedule for loan %d", loanID)
	}

	sched, err := s.repo.FindSchedule(loanID)
	if err != nil {
		return nil, err
	}
	if err := s.cacheSchedule(loanID, sched); err != nil {
		s.log.Warnf("Failed to cache schedule for loan %d: %v", loanID, err)
	}
	return sched, nil
}

// ApplyPayment applies one payment against a loan and returns the receipt.
// The ledger runs inside the repository's locked read-modify-write, so the
// record it transforms is always the latest committed state and concurrent
// payments serialize instead of overwriting each other. A rejected payment
// aborts the transaction and is never persisted.
func (s *Service) ApplyPayment(ctx context.Context, loanID int64, payment models.Payment) (*models.Receipt, error) {
	sched, err := s.GetSchedule(loanID)
	if err != nil {
		return nil, err
	}

	payment.LoanID = loanID
	var receipt models.Receipt
	err = s.repo.ApplyPayment(loanID, func(record models.PaymentRecord) (*models.PaymentRecord, *models.Payment, error) {
		updated, issued, err := ledger.ApplyPayment(sched, record, payment)
		if err != nil {
			return nil, nil, err
		}
		issued.HMAC = utils.ReceiptHMAC(&issued, s.config.HMACSecret)
		receipt = issued
		applied := updated.Payments[len(updated.Payments)-1]
		return &updated, &applied, nil
	})
	if err != nil {
		return nil, err
	}

	s.sendReceipt(loanID, receipt)

	s.log.Infof("Payment %d of %s applied to loan %d, balance %s",
		receipt.PaymentNumber, receipt.Amount.StringFixed(2), loanID, receipt.RemainingBalance.StringFixed(2))
	return &receipt, nil
}

// GetPaymentRecord returns the current payment record for a loan
func (s *Service) GetPaymentRecord(loanID int64) (*models.PaymentRecord, error) {
	return s.repo.FindPaymentRecord(loanID)
}

// sendReceipt emails the receipt to the borrower. Not critical if it fails.
func (s *Service) sendReceipt(loanID int64, receipt models.Receipt) {
	loan, err := s.repo.FindLoanByID(loanID)
	if err != nil {
		s.log.Warnf("Failed to load loan %d for receipt email: %v", loanID, err)
		return
	}
	user, err := s.repo.FindUserByID(loan.UserID)
	if err != nil {
		s.log.Warnf("Failed to load user %d for receipt email: %v", loan.UserID, err)
		return
	}
	if err := s.mail.SendReceipt(user.Email, user.Username, receipt); err != nil {
		s.log.Warnf("Failed to email receipt %s: %v", receipt.ID, err)
	}
}

func (s *Service) cacheSchedule(loanID int64, sched models.AmortizationSchedule) error {
	raw, err := json.Marshal(sched)
	if err != nil {
		return err
	}
	return s.cache.Set(scheduleCacheKey(loanID), string(raw))
}

func scheduleCacheKey(loanID int64) string {
	return fmt.Sprintf("schedule:%d", loanID)
}

func userIDFromContext(ctx context.Context) (int64, error) {
	userIDStr, ok := ctx.Value("userID").(string)
	if !ok || userIDStr == "" {
		return 0, fmt.Errorf("user ID not found in context")
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID: %w", err)
	}
	return userID, nil
}
