package model

import (
	"time"

	"companion-dispatch.com/companion-dispatch/internal/constants"
)

type Player struct {
	ID        string                 `gorm:"primaryKey;size:36" json:"id"`
	Name      string                 `gorm:"not null" json:"name"`
	Status    constants.PlayerStatus `gorm:"type:varchar(20);not null;default:'offline';index" json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}
