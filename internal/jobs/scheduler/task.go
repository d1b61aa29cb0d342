package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

// Task is one unit of scheduled work.
type Task func(ctx context.Context) error

type PanicError struct{ Val any }

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }

// run executes task under timeout, converting a panic into *PanicError.
func run(ctx context.Context, name string, timeout time.Duration, task Task, log *logger.Logger, metrics *observability.Metrics) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("Scheduled task panic", "task", name, "panic", r)
			err = &PanicError{Val: r}
		}
		outcome := "ok"
		switch err.(type) {
		case nil:
		case *PanicError:
			outcome = "panic"
		default:
			outcome = "error"
			log.Warn("Scheduled task failed", "task", name, "duration", time.Since(start), "error", err)
		}
		metrics.IncTaskRun(name, outcome)
		if err == nil {
			log.Debug("Scheduled task finished", "task", name, "duration", time.Since(start))
		}
	}()
	return task(ctx)
}
