package services

import (
	"context"

	"gorm.io/gorm"

	"companion-dispatch.com/companion-dispatch/internal/constants"
	apperrors "companion-dispatch.com/companion-dispatch/internal/errors"
	"companion-dispatch.com/companion-dispatch/internal/events"
	model "companion-dispatch.com/companion-dispatch/internal/models"
	repository "companion-dispatch.com/companion-dispatch/internal/repositories"
)

// QueueService keeps the per-worker FIFO backlog: tasks created for a busy
// worker wait in queue order and the earliest one is promoted inside the
// same transaction that frees the worker.
type QueueService struct {
	db      *gorm.DB
	tasks   *repository.TaskRepository
	players *repository.PlayerRepository
	events  events.Broadcaster
	clock   Clock
}

func NewQueueService(
	db *gorm.DB,
	tasks *repository.TaskRepository,
	players *repository.PlayerRepository,
	broadcaster events.Broadcaster,
	clock Clock,
) *QueueService {
	return &QueueService{
		db:      db,
		tasks:   tasks,
		players: players,
		events:  broadcaster,
		clock:   clock,
	}
}

// placeTx stamps the queue position on a task about to be created for a busy
// worker: one past the current tail, FIFO per worker.
func (s *QueueService) placeTx(ctx context.Context, tx *gorm.DB, task *model.Task) error {
	max, err := s.tasks.WithTx(tx).MaxQueueOrder(ctx, *task.PlayerID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	task.Status = constants.StatusQueued
	task.QueueOrder = max + 1
	task.QueuedAt = &now
	return nil
}

// promoteTx moves the worker's earliest queued task straight to accepted and
// reports it to the caller; nil means the backlog was empty and the worker
// goes idle. Runs inside the freeing transaction.
func (s *QueueService) promoteTx(ctx context.Context, tx *gorm.DB, playerID string) (*model.Task, error) {
	taskRepo := s.tasks.WithTx(tx)

	next, err := taskRepo.NextQueuedForPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, nil
	}

	now := s.clock.Now()
	err = taskRepo.UpdateIfStatus(ctx, next.ID, constants.StatusQueued, map[string]interface{}{
		"status":      constants.StatusAccepted,
		"accepted_at": now,
		"queue_order": 0,
		"queued_at":   nil,
	})
	if err != nil {
		return nil, err
	}

	entry := &model.TaskLog{
		TaskID: next.ID,
		UserID: playerID,
		Action: constants.ActionPromote,
		Details: detailsJSON(map[string]interface{}{
			"from": constants.StatusQueued,
			"to":   constants.StatusAccepted,
		}),
		CreatedAt: now,
	}
	if err := taskRepo.AppendLog(ctx, entry); err != nil {
		return nil, err
	}

	next.Status = constants.StatusAccepted
	next.AcceptedAt = &now
	next.QueueOrder = 0
	next.QueuedAt = nil
	return next, nil
}

// Reassign redirects a still-queued task to another worker. The original
// worker never held it, so only the row changes: an idle target takes the
// task immediately, a busy target gets it appended to their backlog.
func (s *QueueService) Reassign(ctx context.Context, taskID, dispatcherID, newPlayerID string) (*model.Task, error) {
	var (
		task    *model.Task
		emitted []events.Event
	)

	err := repository.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		emitted = emitted[:0]

		taskRepo := s.tasks.WithTx(tx)
		playerRepo := s.players.WithTx(tx)

		var err error
		task, err = taskRepo.FindByID(ctx, taskID)
		if err != nil {
			return err
		}
		if task.DispatcherID != dispatcherID {
			return apperrors.Forbidden("only the owning dispatcher may reassign this task")
		}
		if task.Status != constants.StatusQueued {
			return apperrors.Validation("only queued tasks can be reassigned")
		}

		target, err := playerRepo.FindByID(ctx, newPlayerID)
		if err != nil {
			return err
		}
		if target.Status == constants.PlayerOffline {
			return apperrors.Validation("target player is offline")
		}

		now := s.clock.Now()

		if target.Status == constants.PlayerIdle {
			err = taskRepo.UpdateIfStatus(ctx, task.ID, constants.StatusQueued, map[string]interface{}{
				"player_id":   newPlayerID,
				"status":      constants.StatusAccepted,
				"accepted_at": now,
				"queue_order": 0,
				"queued_at":   nil,
			})
			if err != nil {
				return err
			}
			if err := playerRepo.SetStatusIf(ctx, newPlayerID, constants.PlayerIdle, constants.PlayerBusy); err != nil {
				return err
			}

			task.PlayerID = &newPlayerID
			task.Status = constants.StatusAccepted
			task.AcceptedAt = &now
			task.QueueOrder = 0
			task.QueuedAt = nil

			emitted = append(emitted,
				taskStatusEvent(task, constants.StatusQueued),
				playerStatusEvent(task, newPlayerID, constants.PlayerBusy),
			)
		} else {
			max, err := taskRepo.MaxQueueOrder(ctx, newPlayerID)
			if err != nil {
				return err
			}
			err = taskRepo.UpdateIfStatus(ctx, task.ID, constants.StatusQueued, map[string]interface{}{
				"player_id":   newPlayerID,
				"queue_order": max + 1,
				"queued_at":   now,
			})
			if err != nil {
				return err
			}

			task.PlayerID = &newPlayerID
			task.QueueOrder = max + 1
			task.QueuedAt = &now

			emitted = append(emitted, events.Event{
				Name: constants.EventTaskQueueUpdated,
				Payload: map[string]interface{}{
					"task_id":     task.ID,
					"player_id":   newPlayerID,
					"queue_order": task.QueueOrder,
				},
				Audience: events.Audience(task.DispatcherID, task.PlayerID),
			})
		}

		entry := &model.TaskLog{
			TaskID: task.ID,
			UserID: dispatcherID,
			Action: constants.ActionReassign,
			Details: detailsJSON(map[string]interface{}{
				"new_player_id": newPlayerID,
				"status":        task.Status,
			}),
			CreatedAt: now,
		}
		return taskRepo.AppendLog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	for _, event := range emitted {
		s.events.Emit(ctx, event)
	}
	return task, nil
}
