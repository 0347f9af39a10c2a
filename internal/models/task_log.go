package model

import (
	"time"

	"gorm.io/datatypes"
)

// TaskLog is an append-only audit row, written in the same transaction as
// the mutation it records.
type TaskLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	TaskID    string         `gorm:"size:36;not null;index" json:"task_id"`
	UserID    string         `gorm:"size:36;not null" json:"user_id"`
	Action    string         `gorm:"type:varchar(40);not null" json:"action"`
	Details   datatypes.JSON `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
