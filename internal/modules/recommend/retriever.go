package recommend

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/vibelist-backend/internal/clients/search"
	"github.com/yungbote/vibelist-backend/internal/domain/track"
	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

// TrackSearcher runs a feature-range track query.
type TrackSearcher interface {
	SearchTracks(ctx context.Context, q search.TrackQuery) ([]track.Candidate, error)
}

// SeedFunc supplies the random-score seed for one retrieval.
type SeedFunc func() int64

// RandomSeed draws from the process-wide generator.
func RandomSeed() int64 { return rand.Int64() }

type RetrieverConfig struct {
	MinPopularity int
	Seed          SeedFunc
}

type Retriever struct {
	searcher      TrackSearcher
	minPopularity int
	seed          SeedFunc
	log           *logger.Logger
	metrics       *observability.Metrics
}

func NewRetriever(log *logger.Logger, searcher TrackSearcher, cfg RetrieverConfig, metrics *observability.Metrics) *Retriever {
	seed := cfg.Seed
	if seed == nil {
		seed = RandomSeed
	}
	return &Retriever{
		searcher:      searcher,
		minPopularity: cfg.MinPopularity,
		seed:          seed,
		log:           log.With("component", "Retriever"),
		metrics:       metrics,
	}
}

// Retrieve returns at most limit tracks matching every range in profile,
// in random-score order. Each call draws a fresh seed. Hits outside the
// profile or under the popularity floor are dropped; when every hit is
// dropped the backend is ignoring the filter and the call fails. Backend
// failures are wrapped in apierr.ErrRetrievalFailure.
func (r *Retriever) Retrieve(ctx context.Context, profile Profile, limit int) ([]track.Candidate, error) {
	if limit <= 0 {
		return []track.Candidate{}, nil
	}
	q := search.TrackQuery{
		Ranges:        profile.Ranges(),
		MinPopularity: r.minPopularity,
		Seed:          r.seed(),
		Limit:         limit,
	}
	ctx, span := observability.StartSpan(ctx, "recommend.retrieve",
		attribute.Int("limit", limit),
		attribute.Int64("seed", q.Seed),
	)
	defer span.End()

	start := time.Now()
	out, err := r.searcher.SearchTracks(ctx, q)
	r.metrics.ObserveRetrieval(time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		r.log.Warn("track search failed", "limit", limit, "seed", q.Seed, "error", err)
		return nil, fmt.Errorf("%w: %v", apierr.ErrRetrievalFailure, err)
	}
	kept := r.conforming(profile, out)
	if rejected := len(out) - len(kept); rejected > 0 {
		r.metrics.AddRetrievalRejected(rejected)
		span.SetAttributes(attribute.Int("rejected", rejected))
		r.log.Warn("search returned tracks outside the profile",
			"rejected", rejected, "hits", len(out), "seed", q.Seed)
		if len(kept) == 0 {
			span.SetStatus(codes.Error, "no conforming hits")
			return nil, fmt.Errorf("%w: all %d hits fall outside the requested profile", apierr.ErrRetrievalFailure, len(out))
		}
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	span.SetAttributes(attribute.Int("hits", len(kept)))
	return kept, nil
}

func (r *Retriever) conforming(profile Profile, in []track.Candidate) []track.Candidate {
	out := make([]track.Candidate, 0, len(in))
	for _, c := range in {
		if c.Popularity < r.minPopularity || !profile.Matches(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
