// Package jobs runs the storefront's periodic background work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/lakon-apparel/storefront/internal/checkout"
	"github.com/lakon-apparel/storefront/internal/logging"
)

// Reconciler settles pending orders against the payment gateway.
type Reconciler interface {
	Reconcile(ctx context.Context, minAge time.Duration) (checkout.ReconcileResult, error)
}

// Scheduler wraps a cron runner. Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron *cron.Cron
	log  *logging.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.NewNop()
	}
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: log,
	}
}

// ReconcileJob configures the pending-order reconciliation.
type ReconcileJob struct {
	Schedule string
	MinAge   time.Duration
	Timeout  time.Duration
}

// AddReconcile registers the reconciliation job.
func (s *Scheduler) AddReconcile(job ReconcileJob, r Reconciler) (cron.EntryID, error) {
	if job.Schedule == "" {
		job.Schedule = "@every 5m"
	}
	if job.MinAge <= 0 {
		job.MinAge = 10 * time.Minute
	}
	if job.Timeout <= 0 {
		job.Timeout = 2 * time.Minute
	}

	id, err := s.cron.AddFunc(job.Schedule, func() {
		RunReconcile(context.Background(), r, job.MinAge, job.Timeout, s.log)
	})
	if err != nil {
		return 0, fmt.Errorf("schedule reconcile %q: %w", job.Schedule, err)
	}
	return id, nil
}

// AddFunc registers an arbitrary job.
func (s *Scheduler) AddFunc(schedule, name string, fn func()) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(schedule, fn)
	if err != nil {
		return 0, fmt.Errorf("schedule %s %q: %w", name, schedule, err)
	}
	return id, nil
}

// RunReconcile runs one reconciliation pass with a deadline and logs the result.
func RunReconcile(ctx context.Context, r Reconciler, minAge, timeout time.Duration, log *logging.Logger) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx = logging.WithTraceID(ctx, logging.NewTraceID())

	res, err := r.Reconcile(ctx, minAge)
	entry := log.WithContext(ctx).WithField("job", "reconcile")
	if err != nil {
		entry.WithError(err).Error("reconcile run failed")
		return
	}
	fields := logrus.Fields{}
	for k, v := range res {
		fields[k] = v
	}
	entry.WithFields(fields).Info("reconcile run finished")
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	log *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kv(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).WithFields(kv(keysAndValues)).Error("cron: " + msg)
}

func kv(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
