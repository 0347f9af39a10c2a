package model

import (
	"time"

	"companion-dispatch.com/companion-dispatch/internal/constants"
)

type Task struct {
	ID              string  `gorm:"primaryKey;size:36" json:"id"`
	CustomerName    string  `gorm:"not null" json:"customer_name"`
	CustomerContact string  `json:"customer_contact"`
	GameName        string  `gorm:"not null" json:"game_name"`
	GameMode        string  `json:"game_mode"`
	Requirements    string  `json:"requirements"`
	Price           float64 `gorm:"type:decimal(15,2);not null" json:"price"`

	// DurationMinutes is the current allotment; OriginalDuration keeps the
	// value the task was created with and never changes afterwards.
	DurationMinutes  int `gorm:"not null" json:"duration_minutes"`
	OriginalDuration int `gorm:"not null" json:"original_duration"`

	DispatcherID string               `gorm:"size:36;not null;index" json:"dispatcher_id"`
	PlayerID     *string              `gorm:"size:36;index" json:"player_id,omitempty"`
	Status       constants.TaskStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	QueueOrder int        `json:"queue_order,omitempty"`
	QueuedAt   *time.Time `json:"queued_at,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	OvertimeAt  *time.Time `gorm:"index" json:"overtime_at,omitempty"`
}
