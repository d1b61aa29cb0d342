package recommend

import (
	"context"
	"errors"

	"github.com/yungbote/vibelist-backend/internal/domain/emotion"
	"github.com/yungbote/vibelist-backend/internal/domain/track"
	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

type Source string

const (
	SourcePool   Source = "pool"
	SourceDirect Source = "direct"
)

type Result struct {
	Emotion emotion.Label     `json:"emotion"`
	Source  Source            `json:"source"`
	Tracks  []track.Candidate `json:"tracks"`
}

// Recommender serves candidates for a label from its cached pool, falling
// back to a direct search when the pool is missing or the cache is down.
// It never writes the cache.
type Recommender struct {
	catalog   *Catalog
	pools     *PoolManager
	retriever *Retriever
	log       *logger.Logger
	metrics   *observability.Metrics
}

func NewRecommender(log *logger.Logger, catalog *Catalog, pools *PoolManager, retriever *Retriever, metrics *observability.Metrics) *Recommender {
	return &Recommender{
		catalog:   catalog,
		pools:     pools,
		retriever: retriever,
		log:       log.With("component", "Recommender"),
		metrics:   metrics,
	}
}

// Recommend returns at most size tracks for label. On retrieval failure the
// result carries an empty track list alongside apierr.ErrRetrievalFailure.
func (r *Recommender) Recommend(ctx context.Context, label emotion.Label, size int) (Result, error) {
	res := Result{Emotion: label, Tracks: []track.Candidate{}}
	if size <= 0 {
		res.Source = SourcePool
		return res, nil
	}

	pool, ok, err := r.pools.Get(ctx, label)
	switch {
	case err != nil:
		r.log.Warn("pool read failed, searching directly", "emotion", label, "error", err)
	case ok && len(pool) > 0:
		if len(pool) > size {
			pool = pool[:size]
		}
		res.Source = SourcePool
		res.Tracks = track.Clone(pool)
		r.metrics.IncRecommendSource(string(SourcePool))
		return res, nil
	}

	res.Source = SourceDirect
	profile, err := r.catalog.RangeFor(label)
	if err != nil {
		return res, errors.Join(apierr.ErrInvalidInput, err)
	}
	tracks, err := r.retriever.Retrieve(ctx, profile, size)
	if err != nil {
		r.metrics.IncRecommendSource("failed")
		return res, err
	}
	r.metrics.IncRecommendSource(string(SourceDirect))
	res.Tracks = tracks
	return res, nil
}
