package trend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/vibelist-backend/internal/cache"
	"github.com/yungbote/vibelist-backend/internal/data/repos/testutil"
	"github.com/yungbote/vibelist-backend/internal/data/repos/trends"
	types "github.com/yungbote/vibelist-backend/internal/domain/trend"
	"github.com/yungbote/vibelist-backend/internal/pkg/dbctx"
	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
)

type fakeRanker struct {
	mu      sync.Mutex
	ranking []types.RankedPost
	err     error
	calls   atomic.Int64
	gate    chan struct{}
}

func (f *fakeRanker) set(ids ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranking = f.ranking[:0]
	for i, id := range ids {
		f.ranking = append(f.ranking, types.RankedPost{PostID: id, Score: float64(len(ids) - i), Content: "post"})
	}
}

func (f *fakeRanker) TopRankedPosts(ctx context.Context, n int) ([]types.RankedPost, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := append([]types.RankedPost(nil), f.ranking...)
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// failingEntries inserts the first entry, then fails, to prove the
// transaction leaves nothing behind.
type failingEntries struct {
	trends.EntryRepo
}

func (f failingEntries) CreateBatch(dbc dbctx.Context, entries []types.Entry) error {
	if len(entries) > 0 {
		if err := f.EntryRepo.CreateBatch(dbc, entries[:1]); err != nil {
			return err
		}
	}
	return errors.New("disk full")
}

type engineFixture struct {
	db        *gorm.DB
	snapshots trends.SnapshotRepo
	entries   trends.EntryRepo
	ranker    *fakeRanker
	pool      *PoolCache
	engine    *Engine
}

func newEngineFixture(t *testing.T, wrap func(trends.EntryRepo) trends.EntryRepo) *engineFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	f := &engineFixture{
		db:        db,
		snapshots: trends.NewSnapshotRepo(db, log),
		entries:   trends.NewEntryRepo(db, log),
		ranker:    &fakeRanker{},
		pool:      NewPoolCache(cache.NewMemoryStore(16, 2*time.Hour), 0, nil),
	}
	entries := f.entries
	if wrap != nil {
		entries = wrap(entries)
	}
	f.engine = NewEngine(log, db, f.snapshots, entries, f.ranker, f.pool, EngineConfig{TopN: 10}, nil)
	return f
}

func (f *engineFixture) byPost(t *testing.T, snapshotID uuid.UUID) map[int64]types.Entry {
	t.Helper()
	list, err := f.entries.ListBySnapshot(dbctx.Context{Ctx: context.Background()}, snapshotID, 0)
	if err != nil {
		t.Fatalf("ListBySnapshot: %v", err)
	}
	out := make(map[int64]types.Entry, len(list))
	for _, e := range list {
		out[e.PostID] = e
	}
	return out
}

func TestCaptureAcrossTwoSnapshots(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()

	f.ranker.set(1, 2, 3) // A B C
	first, err := f.engine.CaptureAndSave(ctx, 0)
	if err != nil {
		t.Fatalf("first capture: %v", err)
	}
	if first.Status != types.SnapshotCompleted {
		t.Fatalf("first status: want=COMPLETED got=%s", first.Status)
	}
	for id, e := range f.byPost(t, first.ID) {
		if e.TrendStatus != types.StatusNew || e.RankChange != 0 || e.PreviousRank != nil {
			t.Fatalf("first capture post %d: %+v", id, e)
		}
	}

	f.ranker.set(2, 4, 1) // B D A
	second, err := f.engine.CaptureAndSave(ctx, 0)
	if err != nil {
		t.Fatalf("second capture: %v", err)
	}
	got := f.byPost(t, second.ID)
	if len(got) != 3 {
		t.Fatalf("second capture entries: want=3 got=%d", len(got))
	}
	want := map[int64]struct {
		status types.Status
		rank   int
		change int
	}{
		2: {types.StatusUp, 1, 1},
		4: {types.StatusNew, 2, 0},
		1: {types.StatusDown, 3, -2},
	}
	for id, w := range want {
		e := got[id]
		if e.TrendStatus != w.status || e.Rank != w.rank || e.RankChange != w.change {
			t.Fatalf("post %d: want=%v/%d/%d got=%s/%d/%d", id, w.status, w.rank, w.change, e.TrendStatus, e.Rank, e.RankChange)
		}
	}
	if _, ok := got[3]; ok {
		t.Fatalf("post 3 left the ranking and must have no entry")
	}
	if len(second.Entries) != 3 {
		t.Fatalf("returned entries: want=3 got=%d", len(second.Entries))
	}

	pool, ok, err := f.pool.Get(ctx)
	if err != nil || !ok || len(pool) != 3 || pool[0].PostID != 2 {
		t.Fatalf("trend pool after capture: ok=%v err=%v pool=%+v", ok, err, pool)
	}

	latest, err := f.engine.Latest(ctx, 2)
	if err != nil || len(latest) != 2 || latest[0].PostID != 2 || latest[1].PostID != 4 {
		t.Fatalf("Latest: %+v err=%v", latest, err)
	}
}

func TestCaptureRankerFailureMarksFailed(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()

	f.ranker.set(1, 2)
	good, err := f.engine.CaptureAndSave(ctx, 0)
	if err != nil {
		t.Fatalf("baseline capture: %v", err)
	}

	f.ranker.err = errors.New("posts index unreachable")
	snap, err := f.engine.CaptureAndSave(ctx, 0)
	if !errors.Is(err, apierr.ErrSnapshotFailure) {
		t.Fatalf("want ErrSnapshotFailure got=%v", err)
	}
	if snap == nil || snap.Status != types.SnapshotFailed {
		t.Fatalf("returned snapshot: %+v", snap)
	}

	dbc := dbctx.Context{Ctx: ctx}
	stored := testutil.LoadSnapshot(t, ctx, f.db, snap.ID)
	if stored == nil || stored.Status != types.SnapshotFailed || stored.Error == "" {
		t.Fatalf("stored snapshot: %+v", stored)
	}
	if n := testutil.CountEntries(t, ctx, f.db, snap.ID); n != 0 {
		t.Fatalf("failed snapshot entries: want=0 got=%d", n)
	}
	latest, _ := f.snapshots.LatestCompleted(dbc)
	if latest == nil || latest.ID != good.ID {
		t.Fatalf("latest completed must stay the baseline")
	}
}

func TestCaptureInsertFailureRollsBack(t *testing.T) {
	f := newEngineFixture(t, func(r trends.EntryRepo) trends.EntryRepo { return failingEntries{r} })
	ctx := context.Background()

	f.ranker.set(5, 6, 7)
	snap, err := f.engine.CaptureAndSave(ctx, 0)
	if !errors.Is(err, apierr.ErrSnapshotFailure) {
		t.Fatalf("want ErrSnapshotFailure got=%v", err)
	}
	dbc := dbctx.Context{Ctx: ctx}
	if n := testutil.CountEntries(t, ctx, f.db, snap.ID); n != 0 {
		t.Fatalf("entries after rollback: want=0 got=%d", n)
	}
	stored := testutil.LoadSnapshot(t, ctx, f.db, snap.ID)
	if stored == nil || stored.Status != types.SnapshotFailed {
		t.Fatalf("status: want=FAILED got=%s", stored.Status)
	}
	if latest, _ := f.snapshots.LatestCompleted(dbc); latest != nil {
		t.Fatalf("no snapshot should be completed")
	}
	if _, ok, _ := f.pool.Get(ctx); ok {
		t.Fatalf("failed capture must not fill the trend pool")
	}
}

func TestCaptureDiffsAgainstCompletedOnly(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()

	f.ranker.set(1, 2)
	if _, err := f.engine.CaptureAndSave(ctx, 0); err != nil {
		t.Fatalf("capture: %v", err)
	}
	f.ranker.err = errors.New("down")
	_, _ = f.engine.CaptureAndSave(ctx, 0)
	f.ranker.err = nil

	f.ranker.set(2, 1)
	snap, err := f.engine.CaptureAndSave(ctx, 0)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	got := f.byPost(t, snap.ID)
	if got[2].TrendStatus != types.StatusUp || got[1].TrendStatus != types.StatusDown {
		t.Fatalf("baseline should be the first completed capture: %+v", got)
	}
}

func TestCaptureRespectsTopN(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.ranker.set(1, 2, 3, 4, 5)
	snap, err := f.engine.CaptureAndSave(context.Background(), 3)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(f.byPost(t, snap.ID)) != 3 {
		t.Fatalf("topN=3 should store 3 entries")
	}
}

func TestConcurrentCapturesShareOneRun(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.ranker.set(1, 2, 3)
	f.ranker.gate = make(chan struct{})

	const callers = 4
	var wg, started sync.WaitGroup
	ids := make([]uuid.UUID, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			snap, err := f.engine.CaptureAndSave(context.Background(), 0)
			errs[i] = err
			if snap != nil {
				ids[i] = snap.ID
			}
		}(i)
	}
	// Let every caller reach the flight before releasing the ranker.
	started.Wait()
	for f.ranker.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(f.ranker.gate)
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
	}
	if f.ranker.calls.Load() != 1 {
		t.Fatalf("ranker calls: want=1 got=%d", f.ranker.calls.Load())
	}
	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("callers saw different snapshots: %v", ids)
		}
	}
}

func TestCaptureIgnoresCallerCancellation(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.ranker.set(9)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, err := f.engine.CaptureAndSave(ctx, 0)
	if err != nil || snap.Status != types.SnapshotCompleted {
		t.Fatalf("capture with canceled caller: snap=%+v err=%v", snap, err)
	}
}

func TestRetentionPrunesOldSnapshots(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.engine.cfg.Retention = time.Hour
	ctx := context.Background()

	old := testutil.SeedSnapshot(t, ctx, f.db, time.Now().Add(-3*time.Hour), types.SnapshotCompleted, testutil.RankedEntry(1, 1))
	f.ranker.set(1)
	if _, err := f.engine.CaptureAndSave(ctx, 0); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if testutil.LoadSnapshot(t, ctx, f.db, old.ID) != nil {
		t.Fatalf("snapshot beyond retention should be pruned")
	}
}
