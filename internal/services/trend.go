package services

import (
	"context"
	"fmt"

	"github.com/yungbote/vibelist-backend/internal/domain/trend"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

const DefaultTrendLimit = 10

// TrendEngine captures snapshots and reads the latest completed one.
type TrendEngine interface {
	CaptureAndSave(ctx context.Context, topN int) (*trend.Snapshot, error)
	Latest(ctx context.Context, limit int) ([]trend.Entry, error)
}

// TrendPool is the cached copy of the latest completed ranking.
type TrendPool interface {
	Get(ctx context.Context) ([]trend.Response, bool, error)
	Update(ctx context.Context, ranking []trend.Response) error
}

type TrendService interface {
	Current(ctx context.Context) ([]trend.Response, error)
	Top(ctx context.Context, limit int) ([]trend.Response, error)
	Rebuild(ctx context.Context) (*trend.Snapshot, error)
}

type trendService struct {
	log    *logger.Logger
	engine TrendEngine
	pool   TrendPool
	topN   int
}

// NewTrendService builds the read side of trending posts. topN <= 0 lets the
// engine pick its default capture size.
func NewTrendService(log *logger.Logger, engine TrendEngine, pool TrendPool, topN int) TrendService {
	return &trendService{
		log:    log.With("service", "TrendService"),
		engine: engine,
		pool:   pool,
		topN:   topN,
	}
}

// Current serves the cached ranking, falling back to the latest completed
// snapshot in the store and refilling the cache from it. No snapshot yet
// yields an empty list.
func (s *trendService) Current(ctx context.Context) ([]trend.Response, error) {
	cached, ok, err := s.pool.Get(ctx)
	switch {
	case err != nil:
		s.log.Warn("trend pool read failed, reading store", "error", err)
	case ok:
		return cached, nil
	}

	entries, err := s.engine.Latest(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("load latest trend snapshot: %w", err)
	}
	out := trend.ToResponses(entries)
	if len(out) > 0 {
		if err := s.pool.Update(ctx, out); err != nil {
			s.log.Warn("trend pool refill failed", "error", err)
		}
	}
	return out, nil
}

// Top returns the first limit entries of the current ranking by rank.
func (s *trendService) Top(ctx context.Context, limit int) ([]trend.Response, error) {
	if limit <= 0 {
		limit = DefaultTrendLimit
	}
	all, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *trendService) Rebuild(ctx context.Context) (*trend.Snapshot, error) {
	return s.engine.CaptureAndSave(ctx, s.topN)
}
