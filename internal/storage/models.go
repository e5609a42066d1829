package storage

import (
	"time"

	"gorm.io/datatypes"
)

// SessionRecord is one simulation session as persisted.
type SessionRecord struct {
	ID          uint      `gorm:"primarykey"`
	SessionID   string    `gorm:"size:64;uniqueIndex"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	ClosedAt    *time.Time
	CloseReason string `gorm:"size:64"`
	LastFrame   int
}

func (SessionRecord) TableName() string { return "sessions" }

// SnapshotRecord stores one frame snapshot. Body holds the snapshot JSON;
// the other columns are denormalized for queries.
type SnapshotRecord struct {
	ID        uint   `gorm:"primarykey"`
	SessionID string `gorm:"size:64;index:idx_session_frame,priority:1"`
	Frame     int    `gorm:"index:idx_session_frame,priority:2"`
	Wave      int
	Friendly  int
	Enemy     int
	Result    string `gorm:"size:32"`
	Body      datatypes.JSON
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SnapshotRecord) TableName() string { return "snapshots" }

var models = []any{&SessionRecord{}, &SnapshotRecord{}}
