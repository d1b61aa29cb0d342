package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
)

// Typed binds a Store to one key namespace and one value type. Values are
// JSON encoded; a value that fails to decode is reported as
// apierr.ErrCacheUnavailable, same as a backend failure.
type Typed[T any] struct {
	store     Store
	namespace string
	metrics   *observability.Metrics
}

func NewTyped[T any](store Store, namespace string, metrics *observability.Metrics) *Typed[T] {
	return &Typed[T]{store: store, namespace: namespace, metrics: metrics}
}

// Key returns the full store key for id: "<namespace>:<id>".
func (t *Typed[T]) Key(id string) string {
	return t.namespace + ":" + id
}

func (t *Typed[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	raw, ok, err := t.store.Get(ctx, t.Key(id))
	if err != nil {
		t.metrics.IncCache(t.namespace, "error")
		return zero, false, err
	}
	if !ok {
		t.metrics.IncCache(t.namespace, "miss")
		return zero, false, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.metrics.IncCache(t.namespace, "error")
		return zero, false, fmt.Errorf("%w: decode %s: %v", apierr.ErrCacheUnavailable, t.Key(id), err)
	}
	t.metrics.IncCache(t.namespace, "hit")
	return v, true, nil
}

func (t *Typed[T]) Set(ctx context.Context, id string, v T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", apierr.ErrCacheUnavailable, t.Key(id), err)
	}
	return t.store.Set(ctx, t.Key(id), raw, ttl)
}

func (t *Typed[T]) Delete(ctx context.Context, id string) error {
	return t.store.Delete(ctx, t.Key(id))
}
