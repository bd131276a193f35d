// Package scheduler provides cron-based background jobs for Caredesk.
//
// Its one standing job is the behavior-event retention sweep, which prunes
// events old enough to never fall inside a classification window again.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/caredesk/caredesk/internal/store"
)

// DefaultRetentionAge is how long behavior events are kept.
const DefaultRetentionAge = 30 * 24 * time.Hour

// DefaultRetentionSchedule runs the sweep daily at 03:00.
const DefaultRetentionSchedule = "0 3 * * *"

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Standard 5-field cron parser (min, hour, dom, month, dow) with panic
	// recovery around jobs.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// AddRetentionSweep schedules pruning of behavior events older than maxAge.
func (s *Scheduler) AddRetentionSweep(expr string, st store.Store, maxAge time.Duration) error {
	return s.AddJob(expr, func() {
		cutoff := time.Now().UTC().Add(-maxAge)
		n, err := st.DeleteBehaviorEventsBefore(cutoff)
		if err != nil {
			slog.Error("Scheduler retention sweep failed", "error", err)
			return
		}
		slog.Info("Scheduler retention sweep completed", "pruned", n, "cutoff", cutoff)
	})
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
