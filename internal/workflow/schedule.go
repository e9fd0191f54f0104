package workflow

import (
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// Scheduler runs jobs on standard 5-field cron expressions
// (minute hour day-of-month month day-of-week), used for scheduled
// digests.
type Scheduler struct {
	cron *cronlib.Cron
}

func NewScheduler(tz string) (*Scheduler, error) {
	loc := time.Local
	if tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		loc = parsed
	}
	parser := cronlib.NewParser(cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow)
	return &Scheduler{
		cron: cronlib.New(cronlib.WithParser(parser), cronlib.WithLocation(loc)),
	}, nil
}

// Add registers a job. The expression is validated here so a bad config
// fails at startup, not at first fire.
func (s *Scheduler) Add(name, expr string, job func()) error {
	_, err := s.cron.AddFunc(expr, func() {
		L_info("scheduler: job firing", "job", name)
		job()
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, expr, err)
	}
	L_info("scheduler: job registered", "job", name, "expr", expr)
	return nil
}

// Start begins firing jobs in a background goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
