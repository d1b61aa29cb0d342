package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/vibelist-backend/internal/cache"
	"github.com/yungbote/vibelist-backend/internal/domain/emotion"
	"github.com/yungbote/vibelist-backend/internal/domain/track"
	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

const (
	PoolNamespace   = "pool"
	DefaultPoolTTL  = 65 * time.Minute
	DefaultPoolSize = 1000
)

type PoolConfig struct {
	TTL         time.Duration
	Size        int
	Parallelism int
}

// RefreshReport lists the outcome of one RefreshAll pass per label.
type RefreshReport struct {
	Stored  map[emotion.Label]int
	Skipped []emotion.Label
	Failed  map[emotion.Label]error
}

func (r RefreshReport) OK() bool { return len(r.Failed) == 0 }

// PoolManager keeps one pre-fetched candidate pool per emotion label in the
// cache. Pools are only ever written whole by RefreshAll/Refresh.
type PoolManager struct {
	catalog   *Catalog
	retriever *Retriever
	pools     *cache.Typed[[]track.Candidate]
	cfg       PoolConfig
	log       *logger.Logger
	metrics   *observability.Metrics
}

func NewPoolManager(log *logger.Logger, catalog *Catalog, retriever *Retriever, store cache.Store, cfg PoolConfig, metrics *observability.Metrics) *PoolManager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultPoolTTL
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultPoolSize
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 3
	}
	return &PoolManager{
		catalog:   catalog,
		retriever: retriever,
		pools:     cache.NewTyped[[]track.Candidate](store, PoolNamespace, metrics),
		cfg:       cfg,
		log:       log.With("component", "PoolManager"),
		metrics:   metrics,
	}
}

// Size is the default number of candidates fetched per pool.
func (m *PoolManager) Size() int { return m.cfg.Size }

// Key returns the cache key of a label's pool.
func (m *PoolManager) Key(label emotion.Label) string { return m.pools.Key(string(label)) }

var errEmptyPool = errors.New("retrieval returned no tracks")

// Refresh re-fetches one pool. An empty result leaves the previous pool in
// place and is reported as errEmptyPool.
func (m *PoolManager) Refresh(ctx context.Context, label emotion.Label, limit int) (int, error) {
	profile, err := m.catalog.RangeFor(label)
	if err != nil {
		return 0, err
	}
	if limit <= 0 {
		limit = m.cfg.Size
	}
	tracks, err := m.retriever.Retrieve(ctx, profile, limit)
	if err != nil {
		return 0, err
	}
	if len(tracks) == 0 {
		return 0, errEmptyPool
	}
	if err := m.pools.Set(ctx, string(label), tracks, m.cfg.TTL); err != nil {
		return 0, err
	}
	return len(tracks), nil
}

// RefreshAll refreshes every label independently. A failing label is logged
// and reported; it never stops the others and never clears its old pool.
func (m *PoolManager) RefreshAll(ctx context.Context, limitPerEmotion int) RefreshReport {
	report := RefreshReport{
		Stored: map[emotion.Label]int{},
		Failed: map[emotion.Label]error{},
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Parallelism)

	for _, label := range emotion.All() {
		g.Go(func() error {
			n, err := m.Refresh(gctx, label, limitPerEmotion)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, errEmptyPool):
				m.metrics.ObservePoolRefresh(string(label), 0, nil)
				m.log.Warn("pool refresh returned no tracks, keeping previous pool", "emotion", label)
				report.Skipped = append(report.Skipped, label)
			case err != nil:
				m.metrics.ObservePoolRefresh(string(label), 0, err)
				m.log.Error("pool refresh failed", "emotion", label, "error", err)
				report.Failed[label] = err
			default:
				m.metrics.ObservePoolRefresh(string(label), n, nil)
				report.Stored[label] = n
			}
			return nil
		})
	}
	_ = g.Wait()
	m.log.Info("pool refresh finished",
		"stored", len(report.Stored),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed),
	)
	return report
}

// Get reads a label's pool. A miss is (nil, false, nil) and never triggers
// retrieval. Backend or decode failures are apierr.ErrCacheUnavailable.
func (m *PoolManager) Get(ctx context.Context, label emotion.Label) ([]track.Candidate, bool, error) {
	tracks, ok, err := m.pools.Get(ctx, string(label))
	if err != nil {
		if !errors.Is(err, apierr.ErrCacheUnavailable) {
			err = fmt.Errorf("%w: %v", apierr.ErrCacheUnavailable, err)
		}
		return nil, false, err
	}
	return tracks, ok, nil
}

func (m *PoolManager) Invalidate(ctx context.Context, label emotion.Label) error {
	return m.pools.Delete(ctx, string(label))
}
