package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"companion-dispatch.com/companion-dispatch/internal/constants"
	apperrors "companion-dispatch.com/companion-dispatch/internal/errors"
	model "companion-dispatch.com/companion-dispatch/internal/models"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx returns a repository bound to an open transaction so task, player
// and log writes commit or roll back together.
func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return err
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("task not found")
		}
		return nil, err
	}
	return &task, nil
}

// UpdateIfStatus applies fields only when the row still carries the expected
// status. Zero rows affected means a concurrent writer got there first.
func (r *TaskRepository) UpdateIfStatus(
	ctx context.Context,
	id string,
	expected constants.TaskStatus,
	fields map[string]interface{},
) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(fields)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict("task is no longer " + string(expected))
	}
	return nil
}

// UpdateIfStatusAndPlayer is the guarded accept write: the row must still be
// in the expected status and either unassigned or already assigned to the
// caller. The losing racer sees zero rows.
func (r *TaskRepository) UpdateIfStatusAndPlayer(
	ctx context.Context,
	id string,
	expected constants.TaskStatus,
	playerID string,
	fields map[string]interface{},
) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status = ? AND (player_id IS NULL OR player_id = ?)", id, expected, playerID).
		Updates(fields)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict("task is no longer available")
	}
	return nil
}

func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	query := r.db.WithContext(ctx).Model(&model.Task{})

	if filter.DispatcherID != "" {
		query = query.Where("dispatcher_id = ?", filter.DispatcherID)
	}
	if filter.PlayerID != "" {
		query = query.Where("player_id = ?", filter.PlayerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var tasks []model.Task
	err := query.Order("created_at desc").Find(&tasks).Error
	return tasks, err
}

// ListOverdueInProgress returns running tasks whose allotment has elapsed.
// The watchdog sweep and the on-demand check share this predicate.
func (r *TaskRepository) ListOverdueInProgress(ctx context.Context, now time.Time, limit int) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("status = ? AND overtime_at IS NOT NULL AND overtime_at <= ?", constants.StatusInProgress, now).
		Order("overtime_at asc").
		Limit(limit).
		Find(&tasks).Error
	return tasks, err
}

// NextQueuedForPlayer returns the earliest queued task for the worker, or
// nil when the backlog is empty.
func (r *TaskRepository) NextQueuedForPlayer(ctx context.Context, playerID string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Where("status = ? AND player_id = ?", constants.StatusQueued, playerID).
		Order("queue_order asc, queued_at asc").
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) MaxQueueOrder(ctx context.Context, playerID string) (int, error) {
	var max int
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("status = ? AND player_id = ?", constants.StatusQueued, playerID).
		Select("COALESCE(MAX(queue_order), 0)").
		Scan(&max).Error
	return max, err
}

// CountActiveForPlayer counts tasks holding the worker in in_progress or
// paused, used as the defensive check before freeing a worker on cancel.
func (r *TaskRepository) CountActiveForPlayer(ctx context.Context, playerID string, excludeTaskID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("player_id = ? AND status IN ? AND id <> ?",
			playerID,
			[]constants.TaskStatus{constants.StatusInProgress, constants.StatusPaused},
			excludeTaskID,
		).
		Count(&count).Error
	return count, err
}

func (r *TaskRepository) AppendLog(ctx context.Context, entry *model.TaskLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *TaskRepository) ListLogs(ctx context.Context, taskID string) ([]model.TaskLog, error) {
	var logs []model.TaskLog
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("id asc").
		Find(&logs).Error
	return logs, err
}

type TaskFilter struct {
	DispatcherID string
	PlayerID     string
	Status       constants.TaskStatus
}
