package trend

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/yungbote/vibelist-backend/internal/data/repos/trends"
	types "github.com/yungbote/vibelist-backend/internal/domain/trend"
	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/pkg/dbctx"
	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

const (
	DefaultTopN           = 50
	DefaultCaptureTimeout = 2 * time.Minute
)

// Ranker returns the current top posts in rank order with their scores.
type Ranker interface {
	TopRankedPosts(ctx context.Context, n int) ([]types.RankedPost, error)
}

type EngineConfig struct {
	TopN           int
	CaptureTimeout time.Duration
	// Retention > 0 prunes snapshots older than this after each capture.
	Retention time.Duration
}

// Engine captures the trending ranking into durable snapshots and diffs each
// capture against the previous completed one.
type Engine struct {
	db        *gorm.DB
	snapshots trends.SnapshotRepo
	entries   trends.EntryRepo
	ranker    Ranker
	pool      *PoolCache
	cfg       EngineConfig
	now       func() time.Time
	group     singleflight.Group
	log       *logger.Logger
	metrics   *observability.Metrics
}

func NewEngine(
	log *logger.Logger,
	db *gorm.DB,
	snapshots trends.SnapshotRepo,
	entries trends.EntryRepo,
	ranker Ranker,
	pool *PoolCache,
	cfg EngineConfig,
	metrics *observability.Metrics,
) *Engine {
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = DefaultCaptureTimeout
	}
	return &Engine{
		db:        db,
		snapshots: snapshots,
		entries:   entries,
		ranker:    ranker,
		pool:      pool,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log.With("component", "TrendEngine"),
		metrics:   metrics,
	}
}

func (e *Engine) TopN() int { return e.cfg.TopN }

// CaptureAndSave ranks the top posts, diffs them against the latest completed
// snapshot and stores the result. Concurrent callers share one capture.
// topN <= 0 uses the configured default.
//
// On failure the snapshot is left FAILED with no entries and the returned
// error wraps apierr.ErrSnapshotFailure.
func (e *Engine) CaptureAndSave(ctx context.Context, topN int) (*types.Snapshot, error) {
	if topN <= 0 {
		topN = e.cfg.TopN
	}
	// The capture outlives any single caller so joiners are not cut short.
	base := context.WithoutCancel(ctx)
	v, err, shared := e.group.Do("capture", func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(base, e.cfg.CaptureTimeout)
		defer cancel()
		return e.capture(cctx, topN)
	})
	if shared {
		e.log.Debug("joined in-flight trend capture")
	}
	snap, _ := v.(*types.Snapshot)
	if snap != nil {
		cp := *snap
		snap = &cp
	}
	return snap, err
}

func (e *Engine) capture(ctx context.Context, topN int) (*types.Snapshot, error) {
	ctx, span := observability.StartSpan(ctx, "trend.capture", attribute.Int("top_n", topN))
	defer span.End()

	start := time.Now()
	at := e.now()
	dbc := dbctx.Context{Ctx: ctx}

	snap, err := e.snapshots.Create(dbc, &types.Snapshot{SnapshotTime: at, Status: types.SnapshotInProgress})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create snapshot")
		e.metrics.ObserveSnapshot(string(types.SnapshotFailed), time.Since(start))
		e.log.Error("create trend snapshot failed", "error", err)
		return nil, fmt.Errorf("%w: create snapshot: %v", apierr.ErrSnapshotFailure, err)
	}
	span.SetAttributes(attribute.String("snapshot_id", snap.ID.String()))

	fail := func(stage string, cause error) (*types.Snapshot, error) {
		span.RecordError(cause)
		span.SetStatus(codes.Error, stage)
		reason := fmt.Sprintf("%s: %v", stage, cause)
		// Record FAILED even when ctx has expired.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := e.snapshots.MarkFailed(dbctx.Context{Ctx: wctx}, snap.ID, reason); err != nil {
			e.log.Error("mark trend snapshot failed", "snapshot_id", snap.ID, "error", err)
		}
		snap.Status = types.SnapshotFailed
		snap.Error = reason
		e.metrics.ObserveSnapshot(string(types.SnapshotFailed), time.Since(start))
		e.log.Error("trend capture failed", "snapshot_id", snap.ID, "stage", stage, "error", cause)
		return snap, fmt.Errorf("%w: %s", apierr.ErrSnapshotFailure, reason)
	}

	ranked, err := e.ranker.TopRankedPosts(ctx, topN)
	if err != nil {
		return fail("rank", err)
	}

	previous := map[int64]int{}
	prevSnap, err := e.snapshots.LatestCompleted(dbc)
	if err != nil {
		return fail("load previous", err)
	}
	if prevSnap != nil {
		previous, err = e.entries.RankMap(dbc, prevSnap.ID)
		if err != nil {
			return fail("load previous", err)
		}
	}

	entries, summary := types.Diff(snap.ID, at, ranked, previous)

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := e.entries.CreateBatch(txc, entries); err != nil {
			return fmt.Errorf("insert entries: %w", err)
		}
		return e.snapshots.MarkCompleted(txc, snap.ID, summary)
	})
	if err != nil {
		return fail("commit", err)
	}

	snap.Status = types.SnapshotCompleted
	snap.Entries = entries
	if raw, mErr := summaryJSON(summary); mErr == nil {
		snap.Summary = raw
	}
	e.metrics.ObserveSnapshot(string(types.SnapshotCompleted), time.Since(start))
	span.SetAttributes(attribute.Int("entries", len(entries)))
	e.log.Info("trend snapshot completed",
		"snapshot_id", snap.ID,
		"total", summary.Total,
		"new", summary.New,
		"up", summary.Up,
		"down", summary.Down,
		"same", summary.Same,
		"out", summary.Out,
	)

	if e.pool != nil {
		if err := e.pool.Update(ctx, types.ToResponses(entries)); err != nil {
			e.log.Warn("trend pool update failed", "error", err)
		}
	}
	if e.cfg.Retention > 0 {
		if _, err := e.snapshots.DeleteOlderThan(dbc, at.Add(-e.cfg.Retention)); err != nil {
			e.log.Warn("trend snapshot pruning failed", "error", err)
		}
	}
	return snap, nil
}

// Latest returns the entries of the latest completed snapshot by rank,
// or an empty slice when there is none. limit <= 0 means all.
func (e *Engine) Latest(ctx context.Context, limit int) ([]types.Entry, error) {
	dbc := dbctx.Context{Ctx: ctx}
	snap, err := e.snapshots.LatestCompleted(dbc)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return []types.Entry{}, nil
	}
	return e.entries.ListBySnapshot(dbc, snap.ID, limit)
}
