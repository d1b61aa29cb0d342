package trends

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/vibelist-backend/internal/domain/trend"
	"github.com/yungbote/vibelist-backend/internal/pkg/dbctx"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

type SnapshotRepo interface {
	Create(dbc dbctx.Context, s *trend.Snapshot) (*trend.Snapshot, error)
	LatestCompleted(dbc dbctx.Context) (*trend.Snapshot, error)
	MarkCompleted(dbc dbctx.Context, id uuid.UUID, summary trend.Summary) error
	MarkFailed(dbc dbctx.Context, id uuid.UUID, reason string) error
	DeleteOlderThan(dbc dbctx.Context, cutoff time.Time) (int64, error)
}

type snapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) SnapshotRepo {
	return &snapshotRepo{
		db:  db,
		log: baseLog.With("repo", "SnapshotRepo"),
	}
}

func (r *snapshotRepo) Create(dbc dbctx.Context, s *trend.Snapshot) (*trend.Snapshot, error) {
	if s == nil {
		s = &trend.Snapshot{}
	}
	if s.SnapshotTime.IsZero() {
		s.SnapshotTime = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = trend.SnapshotInProgress
	}
	if len(s.Summary) == 0 {
		s.Summary = datatypes.JSON([]byte("{}"))
	}
	if err := dbc.Conn(r.db).Omit("Entries").Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// LatestCompleted returns the most recent COMPLETED snapshot, or nil when
// none exists.
func (r *snapshotRepo) LatestCompleted(dbc dbctx.Context) (*trend.Snapshot, error) {
	var s trend.Snapshot
	err := dbc.Conn(r.db).
		Where("status = ?", trend.SnapshotCompleted).
		Order("snapshot_time DESC").
		Order("created_at DESC").
		Limit(1).
		Find(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == uuid.Nil {
		return nil, nil
	}
	return &s, nil
}

func (r *snapshotRepo) MarkCompleted(dbc dbctx.Context, id uuid.UUID, summary trend.Summary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return r.updateStatus(dbc, id, map[string]interface{}{
		"status":     trend.SnapshotCompleted,
		"summary":    datatypes.JSON(raw),
		"error":      "",
		"updated_at": time.Now().UTC(),
	})
}

func (r *snapshotRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, reason string) error {
	return r.updateStatus(dbc, id, map[string]interface{}{
		"status":     trend.SnapshotFailed,
		"error":      reason,
		"updated_at": time.Now().UTC(),
	})
}

func (r *snapshotRepo) updateStatus(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	res := dbc.Conn(r.db).
		Model(&trend.Snapshot{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteOlderThan removes snapshots taken before cutoff together with their
// entries, whatever their status. The latest COMPLETED snapshot is always
// kept.
func (r *snapshotRepo) DeleteOlderThan(dbc dbctx.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := dbc.Conn(r.db).Transaction(func(txx *gorm.DB) error {
		var keep trend.Snapshot
		if err := txx.
			Where("status = ?", trend.SnapshotCompleted).
			Order("snapshot_time DESC").
			Limit(1).
			Find(&keep).Error; err != nil {
			return err
		}
		q := txx.Where("snapshot_time < ?", cutoff)
		if keep.ID != uuid.Nil {
			q = q.Where("id <> ?", keep.ID)
		}
		var ids []uuid.UUID
		if err := q.Model(&trend.Snapshot{}).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := txx.Where("snapshot_id IN ?", ids).Delete(&trend.Entry{}).Error; err != nil {
			return err
		}
		res := txx.Where("id IN ?", ids).Delete(&trend.Snapshot{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.log.Info("pruned trend snapshots", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}
