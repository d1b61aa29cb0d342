package scheduler

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

// OneShot runs a task once and then leaves the supervisor for good. When
// Ready is set the run waits for it to close first.
type OneShot struct {
	Name    string
	Task    Task
	Timeout time.Duration
	Ready   <-chan struct{}

	log     *logger.Logger
	metrics *observability.Metrics
	done    chan struct{}
}

func NewOneShot(log *logger.Logger, name string, task Task, timeout time.Duration, metrics *observability.Metrics) *OneShot {
	return &OneShot{
		Name:    name,
		Task:    task,
		Timeout: timeout,
		log:     log.With("component", "OneShot", "task", name),
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Done is closed once the task has run (or was abandoned on shutdown).
func (o *OneShot) Done() <-chan struct{} { return o.done }

// Serve implements suture.Service.
func (o *OneShot) Serve(ctx context.Context) error {
	defer close(o.done)
	if o.Ready != nil {
		select {
		case <-o.Ready:
		case <-ctx.Done():
			return suture.ErrDoNotRestart
		}
	}
	_ = run(ctx, o.Name, o.Timeout, o.Task, o.log, o.metrics)
	return suture.ErrDoNotRestart
}

func (o *OneShot) String() string { return o.Name }
