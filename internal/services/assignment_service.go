package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"companion-dispatch.com/companion-dispatch/internal/constants"
	apperrors "companion-dispatch.com/companion-dispatch/internal/errors"
	"companion-dispatch.com/companion-dispatch/internal/events"
	model "companion-dispatch.com/companion-dispatch/internal/models"
	repository "companion-dispatch.com/companion-dispatch/internal/repositories"
	"companion-dispatch.com/companion-dispatch/internal/statemachine"
)

// AssignmentService drives the task lifecycle. Every operation runs one
// transaction; every status transition is a conditional write keyed on the
// expected prior status, so a lost race surfaces as a conflict instead of a
// silent overwrite. Worker status changes ride the same transaction as the
// task mutation that requires them.
type AssignmentService struct {
	db      *gorm.DB
	tasks   *repository.TaskRepository
	players *repository.PlayerRepository
	queue   *QueueService
	events  events.Broadcaster
	clock   Clock
}

func NewAssignmentService(
	db *gorm.DB,
	tasks *repository.TaskRepository,
	players *repository.PlayerRepository,
	queue *QueueService,
	broadcaster events.Broadcaster,
	clock Clock,
) *AssignmentService {
	return &AssignmentService{
		db:      db,
		tasks:   tasks,
		players: players,
		queue:   queue,
		events:  broadcaster,
		clock:   clock,
	}
}

type CreateTaskInput struct {
	CustomerName    string
	CustomerContact string
	GameName        string
	GameMode        string
	Requirements    string
	DurationMinutes int
	Price           float64
	PlayerID        *string
}

type UpdateTaskInput struct {
	CustomerName    *string
	CustomerContact *string
	GameName        *string
	GameMode        *string
	Requirements    *string
	DurationMinutes *int
	Price           *float64
}

// CreateTask opens a work order. An unassigned task is born pending and open
// to any worker. A task targeted at an idle worker is born accepted and the
// worker flips busy in the same transaction. A task targeted at a busy
// worker joins that worker's backlog instead of being rejected.
func (s *AssignmentService) CreateTask(ctx context.Context, input CreateTaskInput, dispatcherID string) (*model.Task, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	var (
		task    *model.Task
		emitted []events.Event
	)

	err := repository.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		emitted = emitted[:0]

		taskRepo := s.tasks.WithTx(tx)
		playerRepo := s.players.WithTx(tx)

		now := s.clock.Now()
		task = &model.Task{
			ID:               uuid.NewString(),
			CustomerName:     input.CustomerName,
			CustomerContact:  input.CustomerContact,
			GameName:         input.GameName,
			GameMode:         input.GameMode,
			Requirements:     input.Requirements,
			DurationMinutes:  input.DurationMinutes,
			OriginalDuration: input.DurationMinutes,
			Price:            input.Price,
			DispatcherID:     dispatcherID,
			Status:           constants.StatusPending,
			CreatedAt:        now,
		}

		action := constants.ActionCreate

		if input.PlayerID != nil && *input.PlayerID != "" {
			player, err := playerRepo.FindByID(ctx, *input.PlayerID)
			if err != nil {
				return err
			}

			switch player.Status {
			case constants.PlayerOffline:
				return apperrors.Validation("target player is offline")

			case constants.PlayerIdle:
				task.PlayerID = input.PlayerID
				task.Status = constants.StatusAccepted
				task.AcceptedAt = &now
				if err := playerRepo.SetStatusIf(ctx, player.ID, constants.PlayerIdle, constants.PlayerBusy); err != nil {
					return err
				}
				emitted = append(emitted,
					taskStatusEvent(task, constants.StatusPending),
					playerStatusEvent(task, player.ID, constants.PlayerBusy),
				)

			case constants.PlayerBusy:
				// Deliberate policy: assigning to a busy worker routes the
				// task into that worker's backlog, it is not an error.
				// The placement is only valid while the worker stays busy;
				// the self-write turns the status read into a guarded one.
				if err := playerRepo.SetStatusIf(ctx, player.ID, constants.PlayerBusy, constants.PlayerBusy); err != nil {
					return err
				}
				task.PlayerID = input.PlayerID
				if err := s.queue.placeTx(ctx, tx, task); err != nil {
					return err
				}
				action = constants.ActionQueue
				emitted = append(emitted, taskQueuedEvent(task))
			}
		}

		if err := taskRepo.Create(ctx, task); err != nil {
			return err
		}

		entry := &model.TaskLog{
			TaskID: task.ID,
			UserID: dispatcherID,
			Action: action,
			Details: detailsJSON(map[string]interface{}{
				"status":    task.Status,
				"player_id": task.PlayerID,
				"duration":  task.DurationMinutes,
			}),
			CreatedAt: now,
		}
		return taskRepo.AppendLog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, emitted)
	return task, nil
}

// AcceptTask claims an open task for a worker. The write is guarded on the
// row still being pending and unassigned (or pre-assigned to this worker),
// so of two racing workers exactly one wins and the other gets a conflict.
func (s *AssignmentService) AcceptTask(ctx context.Context, taskID, playerID string) (*model.Task, error) {
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
		if task.Status != constants.StatusPending {
			return apperrors.Conflict("task is no longer available")
		}

		now := s.clock.Now()
		err = taskRepo.UpdateIfStatusAndPlayer(ctx, task.ID, constants.StatusPending, playerID, map[string]interface{}{
			"status":      constants.StatusAccepted,
			"player_id":   playerID,
			"accepted_at": now,
		})
		if err != nil {
			return err
		}

		if err := playerRepo.SetStatusIf(ctx, playerID, constants.PlayerIdle, constants.PlayerBusy); err != nil {
			if apperrors.IsConflict(err) {
				return apperrors.Conflict("player is not available to accept tasks")
			}
			return err
		}

		task.Status = constants.StatusAccepted
		task.PlayerID = &playerID
		task.AcceptedAt = &now

		emitted = append(emitted,
			taskStatusEvent(task, constants.StatusPending),
			playerStatusEvent(task, playerID, constants.PlayerBusy),
		)

		entry := &model.TaskLog{
			TaskID: task.ID,
			UserID: playerID,
			Action: constants.ActionAccept,
			Details: detailsJSON(map[string]interface{}{
				"from": constants.StatusPending,
				"to":   constants.StatusAccepted,
			}),
			CreatedAt: now,
		}
		return taskRepo.AppendLog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, emitted)
	return task, nil
}

// StartTask begins the clock: started_at is stamped and the overtime
// threshold computed from the current allotment.
func (s *AssignmentService) StartTask(ctx context.Context, taskID, playerID string) (*model.Task, error) {
	return s.transition(ctx, taskID, playerID, constants.StatusInProgress, constants.ActionStart,
		func(task *model.Task, now time.Time) map[string]interface{} {
			overtimeAt := now.Add(time.Duration(task.DurationMinutes) * time.Minute)
			task.StartedAt = &now
			task.OvertimeAt = &overtimeAt
			return map[string]interface{}{
				"started_at":  now,
				"overtime_at": overtimeAt,
			}
		})
}

func (s *AssignmentService) PauseTask(ctx context.Context, taskID, playerID string) (*model.Task, error) {
	return s.transition(ctx, taskID, playerID, constants.StatusPaused, constants.ActionPause, nil)
}

func (s *AssignmentService) ResumeTask(ctx context.Context, taskID, playerID string) (*model.Task, error) {
	return s.transition(ctx, taskID, playerID, constants.StatusInProgress, constants.ActionResume, nil)
}

// transition handles the worker-driven single-row moves (start, pause,
// resume): ownership check, legality against the lifecycle table, then a
// conditional write from the observed status.
func (s *AssignmentService) transition(
	ctx context.Context,
	taskID, playerID string,
	to constants.TaskStatus,
	action string,
	extra func(task *model.Task, now time.Time) map[string]interface{},
) (*model.Task, error) {
	var (
		task    *model.Task
		emitted []events.Event
	)

	err := repository.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		emitted = emitted[:0]

		taskRepo := s.tasks.WithTx(tx)

		var err error
		task, err = taskRepo.FindByID(ctx, taskID)
		if err != nil {
			return err
		}
		if task.PlayerID == nil || *task.PlayerID != playerID {
			return apperrors.Forbidden("task is not assigned to you")
		}
		from := task.Status
		if err := statemachine.ValidateTransition(from, to); err != nil {
			return err
		}

		now := s.clock.Now()
		fields := map[string]interface{}{"status": to}
		if extra != nil {
			for k, v := range extra(task, now) {
				fields[k] = v
			}
		}

		if err := taskRepo.UpdateIfStatus(ctx, task.ID, from, fields); err != nil {
			return err
		}
		task.Status = to

		emitted = append(emitted, taskStatusEvent(task, from))

		entry := &model.TaskLog{
			TaskID: task.ID,
			UserID: playerID,
			Action: action,
			Details: detailsJSON(map[string]interface{}{
				"from": from,
				"to":   to,
			}),
			CreatedAt: now,
		}
		return taskRepo.AppendLog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, emitted)
	return task, nil
}

// CompleteTask closes out a running, paused or overtime task. The freed
// worker's backlog is checked in the same transaction: the earliest queued
// task is promoted to accepted and returned as nextTask, otherwise the
// worker goes idle.
func (s *AssignmentService) CompleteTask(ctx context.Context, taskID, playerID string) (*model.Task, *model.Task, error) {
	var (
		task     *model.Task
		nextTask *model.Task
		emitted  []events.Event
	)

	err := repository.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		emitted = emitted[:0]
		nextTask = nil

		taskRepo := s.tasks.WithTx(tx)
		playerRepo := s.players.WithTx(tx)

		var err error
		task, err = taskRepo.FindByID(ctx, taskID)
		if err != nil {
			return err
		}
		if task.PlayerID == nil || *task.PlayerID != playerID {
			return apperrors.Forbidden("task is not assigned to you")
		}
		from := task.Status
		if !statemachine.CanComplete(from) {
			return apperrors.Validation("task cannot be completed from status " + string(from))
		}

		now := s.clock.Now()
		err = taskRepo.UpdateIfStatus(ctx, task.ID, from, map[string]interface{}{
			"status":       constants.StatusCompleted,
			"completed_at": now,
		})
		if err != nil {
			return err
		}
		task.Status = constants.StatusCompleted
		task.CompletedAt = &now

		emitted = append(emitted, taskStatusEvent(task, from))

		entry := &model.TaskLog{
			TaskID: task.ID,
			UserID: playerID,
			Action: constants.ActionComplete,
			Details: detailsJSON(map[string]interface{}{
				"from": from,
				"to":   constants.StatusCompleted,
			}),
			CreatedAt: now,
		}
		if err := taskRepo.AppendLog(ctx, entry); err != nil {
			return err
		}

		nextTask, err = s.freeWorkerTx(ctx, tx, playerRepo, task, playerID, &emitted)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.emit(ctx, emitted)
	return task, nextTask, nil
}

// CancelTask aborts any non-terminal task. The owning dispatcher or the
// assigned worker may cancel; a worker held by the task is freed the same
// way completion frees it, including backlog promotion.
func (s *AssignmentService) CancelTask(ctx context.Context, taskID, callerID string) (*model.Task, *model.Task, error) {
	var (
		task     *model.Task
		nextTask *model.Task
		emitted  []events.Event
	)

	err := repository.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		emitted = emitted[:0]
		nextTask = nil

		taskRepo := s.tasks.WithTx(tx)
		playerRepo := s.players.WithTx(tx)

		var err error
		task, err = taskRepo.FindByID(ctx, taskID)
		if err != nil {
			return err
		}

		isDispatcher := task.DispatcherID == callerID
		isAssigned := task.PlayerID != nil && *task.PlayerID == callerID
		if !isDispatcher && !isAssigned {
			return apperrors.Forbidden("only the owning dispatcher or the assigned player may cancel this task")
		}

		from := task.Status
		if err := statemachine.ValidateTransition(from, constants.StatusCancelled); err != nil {
			return err
		}

		now := s.clock.Now()
		if err := taskRepo.UpdateIfStatus(ctx, task.ID, from, map[string]interface{}{
			"status": constants.StatusCancelled,
		}); err != nil {
			return err
		}
		task.Status = constants.StatusCancelled

		emitted = append(emitted, taskStatusEvent(task, from))

		entry := &model.TaskLog{
			TaskID: task.ID,
			UserID: callerID,
			Action: constants.ActionCancel,
			Details: detailsJSON(map[string]interface{}{
				"from": from,
				"to":   constants.StatusCancelled,
			}),
			CreatedAt: now,
		}
		if err := taskRepo.AppendLog(ctx, entry); err != nil {
			return err
		}

		if statemachine.HoldsWorker(from) && task.PlayerID != nil {
			// The worker may hold another active task through a path we did
			// not take; never free a worker that is still occupied.
			active, err := taskRepo.CountActiveForPlayer(ctx, *task.PlayerID, task.ID)
			if err != nil {
				return err
			}
			if active == 0 {
				nextTask, err = s.freeWorkerTx(ctx, tx, playerRepo, task, *task.PlayerID, &emitted)
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.emit(ctx, emitted)
	return task, nextTask, nil
}

// UpdateTask edits descriptive and scheduling fields. Only the owning
// dispatcher, only while the task is still pending.
func (s *AssignmentService) UpdateTask(ctx context.Context, taskID, dispatcherID string, input UpdateTaskInput) (*model.Task, error) {
	var task *model.Task

	err := repository.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		taskRepo := s.tasks.WithTx(tx)

		var err error
		task, err = taskRepo.FindByID(ctx, taskID)
		if err != nil {
			return err
		}
		if task.DispatcherID != dispatcherID {
			return apperrors.Forbidden("only the owning dispatcher may edit this task")
		}
		if task.Status != constants.StatusPending {
			return apperrors.Validation("only pending tasks can be edited")
		}

		fields := map[string]interface{}{}
		if input.CustomerName != nil {
			fields["customer_name"] = *input.CustomerName
			task.CustomerName = *input.CustomerName
		}
		if input.CustomerContact != nil {
			fields["customer_contact"] = *input.CustomerContact
			task.CustomerContact = *input.CustomerContact
		}
		if input.GameName != nil {
			fields["game_name"] = *input.GameName
			task.GameName = *input.GameName
		}
		if input.GameMode != nil {
			fields["game_mode"] = *input.GameMode
			task.GameMode = *input.GameMode
		}
		if input.Requirements != nil {
			fields["requirements"] = *input.Requirements
			task.Requirements = *input.Requirements
		}
		if input.DurationMinutes != nil {
			if *input.DurationMinutes <= 0 {
				return apperrors.Validation("duration must be greater than zero")
			}
			fields["duration_minutes"] = *input.DurationMinutes
			task.DurationMinutes = *input.DurationMinutes
		}
		if input.Price != nil {
			if *input.Price < 0 {
				return apperrors.Validation("price must not be negative")
			}
			fields["price"] = *input.Price
			task.Price = *input.Price
		}
		if len(fields) == 0 {
			return apperrors.Validation("no fields to update")
		}

		// Guarded on pending so a concurrent accept cannot interleave with
		// the edit.
		if err := taskRepo.UpdateIfStatus(ctx, task.ID, constants.StatusPending, fields); err != nil {
			return err
		}

		entry := &model.TaskLog{
			TaskID:    task.ID,
			UserID:    dispatcherID,
			Action:    constants.ActionUpdate,
			Details:   detailsJSON(map[string]interface{}{"fields": fields}),
			CreatedAt: s.clock.Now(),
		}
		return taskRepo.AppendLog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *AssignmentService) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	return s.tasks.FindByID(ctx, taskID)
}

func (s *AssignmentService) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]model.Task, error) {
	return s.tasks.List(ctx, filter)
}

// freeWorkerTx runs the slot-freeing path shared by complete and cancel:
// promote the earliest queued task and keep the worker busy, or set the
// worker idle when the backlog is empty.
func (s *AssignmentService) freeWorkerTx(
	ctx context.Context,
	tx *gorm.DB,
	playerRepo *repository.PlayerRepository,
	task *model.Task,
	playerID string,
	emitted *[]events.Event,
) (*model.Task, error) {
	next, err := s.queue.promoteTx(ctx, tx, playerID)
	if err != nil {
		return nil, err
	}

	if next != nil {
		*emitted = append(*emitted,
			taskStatusEvent(next, constants.StatusQueued),
			events.Event{
				Name: constants.EventTaskQueueUpdated,
				Payload: map[string]interface{}{
					"player_id": playerID,
					"task_id":   next.ID,
				},
				Audience: events.Audience(next.DispatcherID, next.PlayerID),
			},
		)
		return next, nil
	}

	if err := playerRepo.SetStatus(ctx, playerID, constants.PlayerIdle); err != nil {
		return nil, err
	}
	*emitted = append(*emitted, playerStatusEvent(task, playerID, constants.PlayerIdle))
	return nil, nil
}

func (s *AssignmentService) emit(ctx context.Context, emitted []events.Event) {
	for _, event := range emitted {
		s.events.Emit(ctx, event)
	}
}

func validateCreateInput(input CreateTaskInput) error {
	if input.CustomerName == "" {
		return apperrors.Validation("customer name is required")
	}
	if input.GameName == "" {
		return apperrors.Validation("game name is required")
	}
	if input.DurationMinutes <= 0 {
		return apperrors.Validation("duration must be greater than zero")
	}
	if input.Price < 0 {
		return apperrors.Validation("price must not be negative")
	}
	return nil
}
