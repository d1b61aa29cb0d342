package app

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/yungbote/vibelist-backend/internal/jobs/scheduler"
)

// refreshPoolsTask refreshes every emotion pool. RefreshAll logs the summary;
// failed labels keep their previous pool and are returned as one error.
func (a *App) refreshPoolsTask() scheduler.Task {
	return func(ctx context.Context) error {
		rep := a.Pools.RefreshAll(ctx, a.Pools.Size())
		if rep.OK() {
			return nil
		}
		labels := make([]string, 0, len(rep.Failed))
		errs := make([]error, 0, len(rep.Failed))
		for label, err := range rep.Failed {
			labels = append(labels, string(label))
			errs = append(errs, err)
		}
		slices.Sort(labels)
		return fmt.Errorf("pool refresh failed for %v: %w", labels, errors.Join(errs...))
	}
}

func (a *App) captureTrendsTask() scheduler.Task {
	return func(ctx context.Context) error {
		snap, err := a.Engine.CaptureAndSave(ctx, a.Engine.TopN())
		if err != nil {
			return err
		}
		a.Log.Info("Trend snapshot captured", "snapshot_id", snap.ID)
		return nil
	}
}
