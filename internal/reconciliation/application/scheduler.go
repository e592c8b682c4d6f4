package application

import (
	"context"
	"log"
	"time"
)

// Scheduler triggers reconciliation jobs on schedule.
type Scheduler struct {
	runner    *Runner
	companyID string
	agencies  []string
	dailyAt   string
	logger    *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(runner *Runner, companyID string, agencies []string, dailyAt string, logger *log.Logger) *Scheduler {
	return &Scheduler{
		runner:    runner,
		companyID: companyID,
		agencies:  agencies,
		dailyAt:   dailyAt,
		logger:    logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.runner == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			s.runOnce(ctx, now.UTC())
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	if len(s.agencies) == 0 {
		return
	}
	// Previous day's window.
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -1)
	for _, agencyID := range s.agencies {
		if agencyID == "" {
			continue
		}
		req := ReportRequest{
			CompanyID: s.companyID,
			AgencyID:  agencyID,
			From:      from,
			To:        to,
		}
		if _, err := s.runner.Run(ctx, req, nil); err != nil && s.logger != nil {
			s.logger.Printf("reconciliation schedule error: agency=%s err=%v", agencyID, err)
		}
	}
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
