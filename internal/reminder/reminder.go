// Package reminder runs the daily job that emails borrowers about upcoming
// and overdue installments.
package reminder

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"loan-service/internal/config"
	"loan-service/internal/ledger"
	"loan-service/internal/repository"
	"loan-service/internal/service"
)

// Scheduler wires the reminder sweep into a cron schedule
type Scheduler struct {
	repo repository.LoanRepository
	mail service.Mailer
	log  *logrus.Logger
	cfg  *config.Config
	cron *cron.Cron
}

// NewScheduler creates a reminder scheduler
func NewScheduler(repo repository.LoanRepository, mail service.Mailer, log *logrus.Logger, cfg *config.Config) *Scheduler {
	return &Scheduler{repo: repo, mail: mail, log: log, cfg: cfg}
}

// Start begins the daily reminder sweep
func (s *Scheduler) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@daily", s.run); err != nil {
		return fmt.Errorf("failed to schedule reminder job: %w", err)
	}
	s.cron.Start()
	s.log.Infof("Payment reminder job scheduled (window: %d days)", s.cfg.ReminderDays)
	return nil
}

// Stop halts the cron scheduler
func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// run sweeps all active loans and emails a reminder for each next unsatisfied
// installment that is overdue or due within the configured window.
func (s *Scheduler) run() {
	loans, err := s.repo.FindActiveLoans()
	if err != nil {
		s.log.Errorf("Reminder sweep failed to list loans: %v", err)
		return
	}

	now := time.Now()
	sent := 0
	for _, loan := range loans {
		record, err := s.repo.FindPaymentRecord(loan.ID)
		if err != nil {
			s.log.Errorf("Reminder sweep failed on loan %d: %v", loan.ID, err)
			continue
		}
		sched, err := s.repo.FindSchedule(loan.ID)
		if err != nil {
			s.log.Errorf("Reminder sweep failed on loan %d: %v", loan.ID, err)
			continue
		}
		if record.Settled() || record.NextInstallment > len(sched) {
			continue
		}

		inst := sched[record.NextInstallment-1]
		daysOverdue, lateFee := ledger.LateFee(inst, now)
		upcoming := inst.DueDate.Sub(now) <= time.Duration(s.cfg.ReminderDays)*24*time.Hour
		if daysOverdue == 0 && !upcoming {
			continue
		}

		user, err := s.repo.FindUserByID(loan.UserID)
		if err != nil {
			s.log.Errorf("Reminder sweep failed to load user %d: %v", loan.UserID, err)
			continue
		}
		if err := s.mail.SendPaymentReminder(user.Email, user.Username, inst, daysOverdue, lateFee); err != nil {
			continue
		}
		sent++
	}

	s.log.Infof("Reminder sweep complete: %d reminders sent for %d active loans", sent, len(loans))
}
