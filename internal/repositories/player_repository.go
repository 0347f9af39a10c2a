package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"companion-dispatch.com/companion-dispatch/internal/constants"
	apperrors "companion-dispatch.com/companion-dispatch/internal/errors"
	model "companion-dispatch.com/companion-dispatch/internal/models"
)

// PlayerRepository is the worker registry. Status writes happen inside the
// same transaction as the task mutation that requires them, never standalone.
type PlayerRepository struct {
	db *gorm.DB
}

func NewPlayerRepository(db *gorm.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

func (r *PlayerRepository) WithTx(tx *gorm.DB) *PlayerRepository {
	return &PlayerRepository{db: tx}
}

func (r *PlayerRepository) Create(ctx context.Context, player *model.Player) error {
	if player.ID == "" {
		player.ID = uuid.NewString()
	}
	if player.Status == "" {
		player.Status = constants.PlayerOffline
	}
	return r.db.WithContext(ctx).Create(player).Error
}

func (r *PlayerRepository) FindByID(ctx context.Context, id string) (*model.Player, error) {
	var player model.Player
	err := r.db.WithContext(ctx).First(&player, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("player not found")
		}
		return nil, err
	}
	return &player, nil
}

func (r *PlayerRepository) SetStatus(ctx context.Context, id string, status constants.PlayerStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Player{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("player not found")
	}
	return nil
}

// SetStatusIf flips the status only from the expected value, serializing
// racing assignments against the same worker.
func (r *PlayerRepository) SetStatusIf(ctx context.Context, id string, expected, next constants.PlayerStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Player{}).
		Where("id = ? AND status = ?", id, expected).
		Update("status", next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict("player is no longer " + string(expected))
	}
	return nil
}
