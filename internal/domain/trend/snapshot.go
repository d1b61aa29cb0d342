package trend

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SnapshotStatus string

const (
	SnapshotInProgress SnapshotStatus = "IN_PROGRESS"
	SnapshotCompleted  SnapshotStatus = "COMPLETED"
	SnapshotFailed     SnapshotStatus = "FAILED"
)

// Snapshot is one capture of the trending ranking. Only COMPLETED snapshots
// are visible to readers and used as the baseline for the next diff.
type Snapshot struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SnapshotTime time.Time      `gorm:"not null;index" json:"snapshot_time"`
	Status       SnapshotStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Error        string         `gorm:"type:text" json:"error,omitempty"`
	Summary      datatypes.JSON `gorm:"type:jsonb" json:"summary,omitempty"`
	Entries      []Entry        `gorm:"foreignKey:SnapshotID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Snapshot) TableName() string { return "trend_snapshot" }

func (s *Snapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Summary counts of a capture, stored on the snapshot row.
type Summary struct {
	Total int `json:"total"`
	New   int `json:"new"`
	Up    int `json:"up"`
	Down  int `json:"down"`
	Same  int `json:"same"`
	Out   int `json:"out"`
}
