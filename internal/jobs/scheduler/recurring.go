package scheduler

import (
	"context"
	"time"

	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

// Recurring runs a task every Interval until its context ends. With Align
// set, runs land on multiples of Interval (the top of the hour for 1h).
// A failed or panicking run is logged and the schedule continues.
type Recurring struct {
	Name     string
	Task     Task
	Interval time.Duration
	Align    bool
	Timeout  time.Duration

	log     *logger.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewRecurring(log *logger.Logger, name string, task Task, interval time.Duration, align bool, timeout time.Duration, metrics *observability.Metrics) *Recurring {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Recurring{
		Name:     name,
		Task:     task,
		Interval: interval,
		Align:    align,
		Timeout:  timeout,
		log:      log.With("component", "Recurring", "task", name),
		metrics:  metrics,
		now:      time.Now,
	}
}

// Next returns the time of the first run strictly after t.
func (r *Recurring) Next(t time.Time) time.Time {
	if !r.Align {
		return t.Add(r.Interval)
	}
	return t.Truncate(r.Interval).Add(r.Interval)
}

// Serve implements suture.Service.
func (r *Recurring) Serve(ctx context.Context) error {
	r.log.Info("Recurring task scheduled", "interval", r.Interval, "aligned", r.Align)
	for {
		wait := r.Next(r.now()).Sub(r.now())
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		_ = run(ctx, r.Name, r.Timeout, r.Task, r.log, r.metrics)
	}
}

func (r *Recurring) String() string { return r.Name }
