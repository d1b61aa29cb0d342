package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/vibelist-backend/internal/domain/trend"
)

// SeedSnapshot inserts a snapshot with the given status and entries.
func SeedSnapshot(tb testing.TB, ctx context.Context, tx *gorm.DB, at time.Time, status trend.SnapshotStatus, entries ...trend.Entry) *trend.Snapshot {
	tb.Helper()
	s := &trend.Snapshot{
		ID:           uuid.New(),
		SnapshotTime: at.UTC(),
		Status:       status,
		Summary:      datatypes.JSON([]byte("{}")),
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed snapshot: %v", err)
	}
	for i := range entries {
		entries[i].SnapshotID = s.ID
		if entries[i].SnapshotTime.IsZero() {
			entries[i].SnapshotTime = s.SnapshotTime
		}
		if entries[i].TrendStatus == "" {
			entries[i].TrendStatus = trend.StatusNew
		}
	}
	if len(entries) > 0 {
		if err := tx.WithContext(ctx).Create(&entries).Error; err != nil {
			tb.Fatalf("seed entries: %v", err)
		}
	}
	return s
}

// RankedEntry builds an entry for post at rank.
func RankedEntry(postID int64, rank int) trend.Entry {
	return trend.Entry{
		PostID: postID,
		Rank:   rank,
		Score:  float64(100 - rank),
	}
}

func PtrInt(v int) *int { return &v }

// LoadSnapshot reads a snapshot by id, or nil when it does not exist.
func LoadSnapshot(tb testing.TB, ctx context.Context, tx *gorm.DB, id uuid.UUID) *trend.Snapshot {
	tb.Helper()
	var s trend.Snapshot
	if err := tx.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&s).Error; err != nil {
		tb.Fatalf("load snapshot %s: %v", id, err)
	}
	if s.ID == uuid.Nil {
		return nil
	}
	return &s
}

// CountEntries counts the entries stored for a snapshot.
func CountEntries(tb testing.TB, ctx context.Context, tx *gorm.DB, snapshotID uuid.UUID) int64 {
	tb.Helper()
	var n int64
	if err := tx.WithContext(ctx).Model(&trend.Entry{}).Where("snapshot_id = ?", snapshotID).Count(&n).Error; err != nil {
		tb.Fatalf("count entries: %v", err)
	}
	return n
}
