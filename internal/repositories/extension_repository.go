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

type ExtensionRepository struct {
	db *gorm.DB
}

func NewExtensionRepository(db *gorm.DB) *ExtensionRepository {
	return &ExtensionRepository{db: db}
}

func (r *ExtensionRepository) WithTx(tx *gorm.DB) *ExtensionRepository {
	return &ExtensionRepository{db: tx}
}

func (r *ExtensionRepository) Create(ctx context.Context, req *model.ExtensionRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *ExtensionRepository) FindByID(ctx context.Context, id string) (*model.ExtensionRequest, error) {
	var req model.ExtensionRequest
	err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("extension request not found")
		}
		return nil, err
	}
	return &req, nil
}

// HasPendingForTask enforces the one-pending-request-per-task rule; callers
// check it inside the transaction that inserts the new request.
func (r *ExtensionRepository) HasPendingForTask(ctx context.Context, taskID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ExtensionRequest{}).
		Where("task_id = ? AND status = ?", taskID, constants.ExtensionPending).
		Count(&count).Error
	return count > 0, err
}

// ReviewIfPending marks the request terminal only while it is still pending;
// a second reviewer loses the race and gets a conflict.
func (r *ExtensionRepository) ReviewIfPending(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.ExtensionRequest{}).
		Where("id = ? AND status = ?", id, constants.ExtensionPending).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict("extension request has already been reviewed")
	}
	return nil
}

func (r *ExtensionRepository) ListPendingByDispatcher(ctx context.Context, dispatcherID string) ([]model.ExtensionRequest, error) {
	var reqs []model.ExtensionRequest
	err := r.db.WithContext(ctx).
		Where("dispatcher_id = ? AND status = ?", dispatcherID, constants.ExtensionPending).
		Order("created_at asc").
		Find(&reqs).Error
	return reqs, err
}

func (r *ExtensionRepository) ListByPlayer(ctx context.Context, playerID, taskID string) ([]model.ExtensionRequest, error) {
	query := r.db.WithContext(ctx).Where("player_id = ?", playerID)
	if taskID != "" {
		query = query.Where("task_id = ?", taskID)
	}

	var reqs []model.ExtensionRequest
	err := query.Order("created_at desc").Find(&reqs).Error
	return reqs, err
}
