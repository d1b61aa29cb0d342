package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/vibelist-backend/internal/domain/trend"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&trend.Snapshot{},
		&trend.Entry{},
	); err != nil {
		return err
	}
	return EnsureTrendIndexes(db)
}

// EnsureTrendIndexes adds the partial index used to find the latest
// completed snapshot.
func EnsureTrendIndexes(db *gorm.DB) error {
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_trend_snapshot_completed ON trend_snapshot(snapshot_time DESC) WHERE status = 'COMPLETED';`).Error; err != nil {
		return fmt.Errorf("create idx_trend_snapshot_completed: %w", err)
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_trend_entry_snapshot_rank ON post_trend_entry(snapshot_id, "rank");`).Error; err != nil {
		return fmt.Errorf("create idx_trend_entry_snapshot_rank: %w", err)
	}
	return nil
}
