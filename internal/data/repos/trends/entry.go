package trends

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/vibelist-backend/internal/domain/trend"
	"github.com/yungbote/vibelist-backend/internal/pkg/dbctx"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

type EntryRepo interface {
	CreateBatch(dbc dbctx.Context, entries []trend.Entry) error
	ListBySnapshot(dbc dbctx.Context, snapshotID uuid.UUID, limit int) ([]trend.Entry, error)
	RankMap(dbc dbctx.Context, snapshotID uuid.UUID) (map[int64]int, error)
}

type entryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEntryRepo(db *gorm.DB, baseLog *logger.Logger) EntryRepo {
	return &entryRepo{
		db:  db,
		log: baseLog.With("repo", "EntryRepo"),
	}
}

const entryBatchSize = 200

func (r *entryRepo) CreateBatch(dbc dbctx.Context, entries []trend.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return dbc.Conn(r.db).CreateInBatches(&entries, entryBatchSize).Error
}

// ListBySnapshot returns a snapshot's entries by rank. limit <= 0 means all.
func (r *entryRepo) ListBySnapshot(dbc dbctx.Context, snapshotID uuid.UUID, limit int) ([]trend.Entry, error) {
	out := []trend.Entry{}
	if snapshotID == uuid.Nil {
		return out, nil
	}
	q := dbc.Conn(r.db).
		Where("snapshot_id = ?", snapshotID).
		Order("rank ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// RankMap returns post id to rank for one snapshot.
func (r *entryRepo) RankMap(dbc dbctx.Context, snapshotID uuid.UUID) (map[int64]int, error) {
	out := map[int64]int{}
	if snapshotID == uuid.Nil {
		return out, nil
	}
	var rows []struct {
		PostID int64
		Rank   int
	}
	if err := dbc.Conn(r.db).
		Model(&trend.Entry{}).
		Select("post_id, rank").
		Where("snapshot_id = ?", snapshotID).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.PostID] = row.Rank
	}
	return out, nil
}
