package trend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/vibelist-backend/internal/cache"
	types "github.com/yungbote/vibelist-backend/internal/domain/trend"
	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
)

func TestPoolCacheRoundTrip(t *testing.T) {
	store := cache.NewMemoryStore(8, 2*time.Hour)
	p := NewPoolCache(store, 0, nil)
	ctx := context.Background()

	if p.Key() != "trend:pool" {
		t.Fatalf("Key: want=trend:pool got=%s", p.Key())
	}
	if _, ok, err := p.Get(ctx); ok || err != nil {
		t.Fatalf("Get on empty: ok=%v err=%v", ok, err)
	}

	prev := 3
	ranking := []types.Response{
		{PostID: 7, Rank: 1, PreviousRank: &prev, TrendStatus: types.StatusUp, RankChange: 2},
		{PostID: 8, Rank: 2, TrendStatus: types.StatusNew},
	}
	if err := p.Save(ctx, ranking); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := p.Get(ctx)
	if err != nil || !ok || len(got) != 2 {
		t.Fatalf("Get: ok=%v err=%v len=%d", ok, err, len(got))
	}
	if got[0].PreviousRank == nil || *got[0].PreviousRank != 3 || got[1].PreviousRank != nil {
		t.Fatalf("previous rank lost in cache: %+v", got)
	}

	if err := p.Update(ctx, ranking[:1]); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _, _ = p.Get(ctx)
	if len(got) != 1 {
		t.Fatalf("Update should replace the ranking, got len=%d", len(got))
	}

	if err := p.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := p.Get(ctx); ok {
		t.Fatalf("Get after Delete: want miss")
	}
}

func TestPoolCacheCorruptValue(t *testing.T) {
	store := cache.NewMemoryStore(8, 2*time.Hour)
	p := NewPoolCache(store, 0, nil)
	ctx := context.Background()
	_ = store.Set(ctx, p.Key(), []byte("[{"), time.Minute)
	if _, _, err := p.Get(ctx); !errors.Is(err, apierr.ErrCacheUnavailable) {
		t.Fatalf("want ErrCacheUnavailable got=%v", err)
	}
}
