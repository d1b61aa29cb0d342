package trend

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
	StatusNew  Status = "NEW"
	StatusSame Status = "SAME"
	// StatusOut marks a post that left the ranking. It is derived, never stored.
	StatusOut Status = "OUT"
)

// Entry is one ranked post inside a snapshot.
type Entry struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SnapshotID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_trend_entry_snapshot_post,priority:1;index" json:"snapshot_id"`
	PostID          int64     `gorm:"not null;uniqueIndex:idx_trend_entry_snapshot_post,priority:2" json:"post_id"`
	Score           float64   `gorm:"not null" json:"score"`
	Rank            int       `gorm:"not null" json:"rank"`
	PreviousRank    *int      `json:"previous_rank,omitempty"`
	TrendStatus     Status    `gorm:"type:varchar(8);not null" json:"trend_status"`
	RankChange      int       `gorm:"not null;default:0" json:"rank_change"`
	PostContent     string    `gorm:"type:text" json:"post_content,omitempty"`
	UserName        string    `json:"user_name,omitempty"`
	UserProfileName string    `json:"user_profile_name,omitempty"`
	SnapshotTime    time.Time `gorm:"not null" json:"snapshot_time"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Entry) TableName() string { return "post_trend_entry" }

func (e *Entry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// RankedPost is what the scoring collaborator hands the engine: a post and
// its opaque trend score, already ordered.
type RankedPost struct {
	PostID          int64   `json:"postId"`
	Score           float64 `json:"score"`
	Content         string  `json:"content,omitempty"`
	UserName        string  `json:"userName,omitempty"`
	UserProfileName string  `json:"userProfileName,omitempty"`
}

// Response is the read model served to clients and kept in the trend pool.
type Response struct {
	PostID          int64     `json:"postId"`
	Score           float64   `json:"score"`
	Rank            int       `json:"rank"`
	PreviousRank    *int      `json:"previousRank"`
	TrendStatus     Status    `json:"trendStatus"`
	RankChange      int       `json:"rankChange"`
	PostContent     string    `json:"postContent"`
	UserName        string    `json:"userName"`
	UserProfileName string    `json:"userProfileName"`
	SnapshotTime    time.Time `json:"snapshotTime"`
}

func ToResponse(e Entry) Response {
	return Response{
		PostID:          e.PostID,
		Score:           e.Score,
		Rank:            e.Rank,
		PreviousRank:    e.PreviousRank,
		TrendStatus:     e.TrendStatus,
		RankChange:      e.RankChange,
		PostContent:     e.PostContent,
		UserName:        e.UserName,
		UserProfileName: e.UserProfileName,
		SnapshotTime:    e.SnapshotTime,
	}
}

func ToResponses(entries []Entry) []Response {
	out := make([]Response, 0, len(entries))
	for _, e := range entries {
		out = append(out, ToResponse(e))
	}
	return out
}
