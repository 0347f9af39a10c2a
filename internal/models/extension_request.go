package model

import (
	"time"

	"companion-dispatch.com/companion-dispatch/internal/constants"
)

type ExtensionRequest struct {
	ID               string                    `gorm:"primaryKey;size:36" json:"id"`
	TaskID           string                    `gorm:"size:36;not null;index" json:"task_id"`
	PlayerID         string                    `gorm:"size:36;not null;index" json:"player_id"`
	DispatcherID     string                    `gorm:"size:36;not null;index" json:"dispatcher_id"`
	RequestedMinutes int                       `gorm:"not null" json:"requested_minutes"`
	Reason           string                    `json:"reason"`
	Status           constants.ExtensionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ReviewedBy       *string                   `gorm:"size:36" json:"reviewed_by,omitempty"`
	ReviewReason     string                    `json:"review_reason,omitempty"`
	ReviewedAt       *time.Time                `json:"reviewed_at,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
}
