package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"loan-service/internal/config"
	"loan-service/internal/models"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendPaymentReminder sends a reminder for an upcoming or overdue installment
func (s *Sender) SendPaymentReminder(to, username string, inst models.Installment, daysOverdue int, lateFee decimal.Decimal) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	if daysOverdue > 0 {
		e.Subject = "Overdue Loan Payment Notification"
	} else {
		e.Subject = "Upcoming Loan Payment Reminder"
	}

	body := fmt.Sprintf("Dear %s,\n\n", username)
	if daysOverdue > 0 {
		body += fmt.Sprintf(
			"Your payment of $%s was due on %s and is now %d days overdue.\n"+
				"A late fee of $%s has accrued.\n"+
				"Please make the payment as soon as possible to avoid further fees.\n",
			inst.TotalDue.StringFixed(2), inst.DueDate.Format("January 2, 2006"), daysOverdue, lateFee.StringFixed(2),
		)
	} else {
		body += fmt.Sprintf(
			"This is a reminder that payment %d of $%s is due on %s.\n",
			inst.Index, inst.TotalDue.StringFixed(2), inst.DueDate.Format("January 2, 2006"),
		)
	}
	body += "\nBest regards,\nLoan Service"
	e.Text = []byte(body)

	return s.send(e)
}

// SendReceipt sends the printable receipt summary for an applied payment
func (s *Sender) SendReceipt(to, username string, receipt models.Receipt) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Payment Receipt #%d", receipt.PaymentNumber)

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", username)
	fmt.Fprintf(&b, "We received your payment of $%s on %s.\n\n", receipt.Amount.StringFixed(2), receipt.Date.Format("January 2, 2006"))
	fmt.Fprintf(&b, "Payment Number: %d\n", receipt.PaymentNumber)
	fmt.Fprintf(&b, "Payment Method: %s (%s)\n", receipt.Method, receipt.CheckNumber)
	if receipt.FullySatisfied > 0 {
		fmt.Fprintf(&b, "Installments Satisfied: %d through %d\n", receipt.FirstInstallment, receipt.FirstInstallment+receipt.FullySatisfied-1)
	}
	if receipt.ResidualDue.IsPositive() {
		fmt.Fprintf(&b, "Still Due on Installment %d: $%s\n", receipt.LastInstallment, receipt.ResidualDue.StringFixed(2))
	}
	if receipt.DaysLate > 0 {
		fmt.Fprintf(&b, "Days Late: %d (late fee $%s)\n", receipt.DaysLate, receipt.LateFee.StringFixed(2))
	}
	fmt.Fprintf(&b, "Remaining Balance: $%s\n", receipt.RemainingBalance.StringFixed(2))
	if receipt.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", receipt.Notes)
	}
	fmt.Fprintf(&b, "\nReceipt ID: %s\n", receipt.ID)
	b.WriteString("\nBest regards,\nLoan Service")
	e.Text = []byte(b.String())

	return s.send(e)
}

func (s *Sender) send(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", strings.Join(e.To, ", "), err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", strings.Join(e.To, ", "), e.Subject)
	return nil
}
