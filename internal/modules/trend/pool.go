package trend

import (
	"context"
	"time"

	"github.com/yungbote/vibelist-backend/internal/cache"
	types "github.com/yungbote/vibelist-backend/internal/domain/trend"
	"github.com/yungbote/vibelist-backend/internal/observability"
)

const (
	PoolNamespace  = "trend"
	PoolID         = "pool"
	DefaultPoolTTL = 65 * time.Minute
)

// PoolCache holds the latest completed trend ranking under "trend:pool".
type PoolCache struct {
	typed *cache.Typed[[]types.Response]
	ttl   time.Duration
}

func NewPoolCache(store cache.Store, ttl time.Duration, metrics *observability.Metrics) *PoolCache {
	if ttl <= 0 {
		ttl = DefaultPoolTTL
	}
	return &PoolCache{
		typed: cache.NewTyped[[]types.Response](store, PoolNamespace, metrics),
		ttl:   ttl,
	}
}

func (p *PoolCache) Key() string { return p.typed.Key(PoolID) }

func (p *PoolCache) Save(ctx context.Context, ranking []types.Response) error {
	if ranking == nil {
		ranking = []types.Response{}
	}
	return p.typed.Set(ctx, PoolID, ranking, p.ttl)
}

// Get returns the cached ranking; a miss is (nil, false, nil).
func (p *PoolCache) Get(ctx context.Context) ([]types.Response, bool, error) {
	return p.typed.Get(ctx, PoolID)
}

func (p *PoolCache) Delete(ctx context.Context) error {
	return p.typed.Delete(ctx, PoolID)
}

// Update replaces the cached ranking. Same as Save.
func (p *PoolCache) Update(ctx context.Context, ranking []types.Response) error {
	return p.Save(ctx, ranking)
}
