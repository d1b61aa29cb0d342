package services

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/vibelist-backend/internal/domain/trend"
	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

type fakeEngine struct {
	entries  []trend.Entry
	err      error
	captures []int
	latest   int
}

func (f *fakeEngine) CaptureAndSave(_ context.Context, topN int) (*trend.Snapshot, error) {
	f.captures = append(f.captures, topN)
	if f.err != nil {
		return &trend.Snapshot{Status: trend.SnapshotFailed}, f.err
	}
	return &trend.Snapshot{Status: trend.SnapshotCompleted}, nil
}

func (f *fakeEngine) Latest(_ context.Context, limit int) ([]trend.Entry, error) {
	f.latest++
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

type fakePool struct {
	value   []trend.Response
	has     bool
	getErr  error
	updates int
}

func (f *fakePool) Get(context.Context) ([]trend.Response, bool, error) {
	return f.value, f.has, f.getErr
}

func (f *fakePool) Update(_ context.Context, r []trend.Response) error {
	f.updates++
	f.value, f.has = r, true
	return nil
}

func ranked(n int) []trend.Entry {
	out := make([]trend.Entry, n)
	for i := range out {
		out[i] = trend.Entry{PostID: int64(100 + i), Rank: i + 1, TrendStatus: trend.StatusNew}
	}
	return out
}

func TestCurrentPrefersPool(t *testing.T) {
	eng := &fakeEngine{entries: ranked(3)}
	pool := &fakePool{value: []trend.Response{{PostID: 1, Rank: 1}}, has: true}
	svc := NewTrendService(logger.Nop(), eng, pool, 0)

	got, err := svc.Current(context.Background())
	if err != nil || len(got) != 1 || got[0].PostID != 1 {
		t.Fatalf("Current: %+v err=%v", got, err)
	}
	if eng.latest != 0 {
		t.Fatalf("pool hit must not read the store")
	}
}

func TestCurrentFallsBackToStoreAndRefills(t *testing.T) {
	eng := &fakeEngine{entries: ranked(3)}
	pool := &fakePool{}
	svc := NewTrendService(logger.Nop(), eng, pool, 0)

	got, err := svc.Current(context.Background())
	if err != nil || len(got) != 3 || got[0].Rank != 1 {
		t.Fatalf("Current: %+v err=%v", got, err)
	}
	if pool.updates != 1 {
		t.Fatalf("pool refill: want=1 got=%d", pool.updates)
	}

	pool2 := &fakePool{getErr: apierr.ErrCacheUnavailable}
	svc2 := NewTrendService(logger.Nop(), eng, pool2, 0)
	if got, err := svc2.Current(context.Background()); err != nil || len(got) != 3 {
		t.Fatalf("Current with cache down: len=%d err=%v", len(got), err)
	}
}

func TestCurrentWithoutSnapshotIsEmpty(t *testing.T) {
	eng := &fakeEngine{entries: []trend.Entry{}}
	pool := &fakePool{}
	svc := NewTrendService(logger.Nop(), eng, pool, 0)

	got, err := svc.Current(context.Background())
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("Current: %+v err=%v", got, err)
	}
	if pool.updates != 0 {
		t.Fatalf("empty ranking must not be cached")
	}
}

func TestTopLimits(t *testing.T) {
	eng := &fakeEngine{entries: ranked(25)}
	svc := NewTrendService(logger.Nop(), eng, &fakePool{}, 0)
	ctx := context.Background()

	got, _ := svc.Top(ctx, 0)
	if len(got) != DefaultTrendLimit {
		t.Fatalf("Top(0): want=%d got=%d", DefaultTrendLimit, len(got))
	}
	got, _ = svc.Top(ctx, 3)
	if len(got) != 3 || got[2].Rank != 3 {
		t.Fatalf("Top(3): %+v", got)
	}
	got, _ = svc.Top(ctx, 100)
	if len(got) != 25 {
		t.Fatalf("Top(100): want=25 got=%d", len(got))
	}
}

func TestRebuild(t *testing.T) {
	eng := &fakeEngine{}
	svc := NewTrendService(logger.Nop(), eng, &fakePool{}, 50)

	snap, err := svc.Rebuild(context.Background())
	if err != nil || snap.Status != trend.SnapshotCompleted || eng.captures[0] != 50 {
		t.Fatalf("Rebuild: snap=%+v err=%v captures=%v", snap, err, eng.captures)
	}

	eng.err = apierr.ErrSnapshotFailure
	if _, err := svc.Rebuild(context.Background()); !errors.Is(err, apierr.ErrSnapshotFailure) {
		t.Fatalf("Rebuild failure: want ErrSnapshotFailure got=%v", err)
	}
}
