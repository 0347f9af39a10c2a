package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"companion-dispatch.com/companion-dispatch/internal/constants"
	apperrors "companion-dispatch.com/companion-dispatch/internal/errors"
	"companion-dispatch.com/companion-dispatch/internal/events"
	model "companion-dispatch.com/companion-dispatch/internal/models"
	repository "companion-dispatch.com/companion-dispatch/internal/repositories"
	"companion-dispatch.com/companion-dispatch/internal/statemachine"
)

// ExtensionService handles mid-task duration changes: the worker-initiated
// request/review negotiation and the dispatcher's direct extension path.
// Approval is the only route that mutates a task's duration outside creation
// and the direct path.
type ExtensionService struct {
	db         *gorm.DB
	tasks      *repository.TaskRepository
	extensions *repository.ExtensionRepository
	events     events.Broadcaster
	clock      Clock
}

func NewExtensionService(
	db *gorm.DB,
	tasks *repository.TaskRepository,
	extensions *repository.ExtensionRepository,
	broadcaster events.Broadcaster,
	clock Clock,
) *ExtensionService {
	return &ExtensionService{
		db:         db,
		tasks:      tasks,
		extensions: extensions,
		events:     broadcaster,
		clock:      clock,
	}
}

// RequestExtension opens a negotiation while the task is running. At most
// one pending request may exist per task; the check runs inside the insert
// transaction.
func (s *ExtensionService) RequestExtension(ctx context.Context, taskID, playerID string, minutes int, reason string) (*model.ExtensionRequest, error) {
	if minutes <= 0 {
		return nil, apperrors.Validation("requested minutes must be greater than zero")
	}

	var (
		request *model.ExtensionRequest
		emitted []events.Event
	)

	err := repository.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		emitted = emitted[:0]

		taskRepo := s.tasks.WithTx(tx)
		extRepo := s.extensions.WithTx(tx)

		task, err := taskRepo.FindByID(ctx, taskID)
		if err != nil {
			return err
		}
		if task.PlayerID == nil || *task.PlayerID != playerID {
			return apperrors.Forbidden("task is not assigned to you")
		}
		if task.Status != constants.StatusInProgress {
			return apperrors.Validation("extensions can only be requested while the task is in progress")
		}

		pending, err := extRepo.HasPendingForTask(ctx, taskID)
		if err != nil {
			return err
		}
		if pending {
			return apperrors.Validation("a pending extension request already exists for this task")
		}

		now := s.clock.Now()
		request = &model.ExtensionRequest{
			TaskID:           task.ID,
			PlayerID:         playerID,
			DispatcherID:     task.DispatcherID,
			RequestedMinutes: minutes,
			Reason:           reason,
			Status:           constants.ExtensionPending,
			CreatedAt:        now,
		}
		if err := extRepo.Create(ctx, request); err != nil {
			return err
		}

		emitted = append(emitted, events.Event{
			Name: constants.EventExtensionRequested,
			Payload: map[string]interface{}{
				"request_id":        request.ID,
				"task_id":           task.ID,
				"player_id":         playerID,
				"requested_minutes": minutes,
				"reason":            reason,
			},
			Audience: events.Audience(task.DispatcherID, task.PlayerID),
		})

		entry := &model.TaskLog{
			TaskID: task.ID,
			UserID: playerID,
			Action: constants.ActionExtensionOpen,
			Details: detailsJSON(map[string]interface{}{
				"request_id":        request.ID,
				"requested_minutes": minutes,
			}),
			CreatedAt: now,
		}
		return taskRepo.AppendLog(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, emitted)
	return request, nil
}

// ReviewExtensionRequest settles a pending request. Only the task's owning
// dispatcher reviews; approval adds the requested minutes to the task's
// allotment and, when the task is already running, pushes the overtime
// threshold out by the same amount. A request that outlived its task can
// only be rejected.
func (s *ExtensionService) ReviewExtensionRequest(ctx context.Context, requestID, reviewerID string, approve bool, reviewReason string) (*model.ExtensionRequest, error) {
	var (
		request *model.ExtensionRequest
		emitted []events.Event
	)

	err := repository.Transaction(ctx, s.db, func(tx *gorm.DB) error {
		emitted = emitted[:0]

		taskRepo := s.tasks.WithTx(tx)
		extRepo := s.extensions.WithTx(tx)

		var err error
		request, err = extRepo.FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if request.DispatcherID != reviewerID {
			return apperrors.Forbidden("only the task's dispatcher may review this request")
		}
		if request.Status != constants.ExtensionPending {
			return apperrors.Conflict("extension request has already been reviewed")
		}

		now := s.clock.Now()
		status := constants.ExtensionRejected
		if approve {
			status = constants.ExtensionApproved
		}

		err = extRepo.ReviewIfPending(ctx, request.ID, map[string]interface{}{
			"status":        status,
			"reviewed_by":   reviewerID,
			"review_reason": reviewReason,
			"reviewed_at":   now,
		})
		if err != nil {
			return err
		}

		request.Status = status
		request.ReviewedBy = &reviewerID
		request.ReviewReason = reviewReason
		request.ReviewedAt = &now

		if approve {
			task, err := taskRepo.FindByID(ctx, request.TaskID)
			if err != nil {
				return err
			}
			// A pending request outlives completion and cancellation; once
			// the task is terminal its duration is frozen, so approval can
			// only be a conflict. Rejection stays open to clear the request.
			if statemachine.IsTerminal(task.Status) {
				return apperrors.Conflict("task is " + string(task.Status) + " and its duration can no longer change")
			}
			if err := applyExtensionTx(ctx, taskRepo, task, request.RequestedMinutes); err != nil {
				return err
			}

			entry := &model.TaskLog{
				TaskID: task.ID,
				UserID: reviewerID,
				Action: constants.ActionExtensionReview,
				Details: detailsJSON(map[string]interface{}{
					"request_id":   request.ID,
					"decision":     status,
					"old_duration": task.DurationMinutes - request.RequestedMinutes,
					"new_duration": task.DurationMinutes,
				}),
				CreatedAt: now,
			}
			if err := taskRepo.AppendLog(ctx, entry); err != nil {
				return err
			}
		} else {
			entry := &model.TaskLog{
				TaskID: request.TaskID,
				UserID: reviewerID,
				Action: constants.ActionExtensionReview,
				Details: detailsJSON(map[string]interface{}{
					"request_id": request.ID,
					"decision":   status,
				}),
				CreatedAt: now,
			}
			if err := taskRepo.AppendLog(ctx, entry); err != nil {
				return err
			}
		}

		playerID := request.PlayerID
		emitted = append(emitted, events.Event{
			Name: constants.EventExtensionReviewed,
			Payload: map[string]interface{}{
				"request_id":        request.ID,
				"task_id":           request.TaskID,
				"decision":          status,
				"requested_minutes": request.RequestedMinutes,
				"review_reason":     reviewReason,
			},
			Audience: events.Audience(request.DispatcherID, &playerID),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, emitted)
	return request, nil
}

// ExtendTaskDuration is the dispatcher's direct path, no worker request
// involved. Legal while the task is accepted, in progress or paused.
func (s *ExtensionService) ExtendTaskDuration(ctx context.Context, taskID, dispatcherID string, minutes int, reason string) (*model.Task, error) {
	if minutes <= 0 {
		return nil, apperrors.Validation("extension minutes must be greater than zero")
	}

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
		if task.DispatcherID != dispatcherID {
			return apperrors.Forbidden("only the owning dispatcher may extend this task")
		}
		switch task.Status {
		case constants.StatusAccepted, constants.StatusInProgress, constants.StatusPaused:
		default:
			return apperrors.Validation("task duration can only be extended while accepted, in progress or paused")
		}

		oldDuration := task.DurationMinutes
		if err := applyExtensionTx(ctx, taskRepo, task, minutes); err != nil {
			return err
		}

		now := s.clock.Now()
		entry := &model.TaskLog{
			TaskID: task.ID,
			UserID: dispatcherID,
			Action: constants.ActionExtendDirect,
			Details: detailsJSON(map[string]interface{}{
				"old_duration": oldDuration,
				"new_duration": task.DurationMinutes,
				"reason":       reason,
			}),
			CreatedAt: now,
		}
		if err := taskRepo.AppendLog(ctx, entry); err != nil {
			return err
		}

		emitted = append(emitted, events.Event{
			Name: constants.EventDurationExtended,
			Payload: map[string]interface{}{
				"task_id":      task.ID,
				"old_duration": oldDuration,
				"new_duration": task.DurationMinutes,
				"reason":       reason,
			},
			Audience: events.Audience(task.DispatcherID, task.PlayerID),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, emitted)
	return task, nil
}

func (s *ExtensionService) ListPendingForDispatcher(ctx context.Context, dispatcherID string) ([]model.ExtensionRequest, error) {
	return s.extensions.ListPendingByDispatcher(ctx, dispatcherID)
}

func (s *ExtensionService) ListForPlayer(ctx context.Context, playerID, taskID string) ([]model.ExtensionRequest, error) {
	return s.extensions.ListByPlayer(ctx, playerID, taskID)
}

// applyExtensionTx adds minutes to the task's allotment, guarded on the
// status observed in this transaction. A task started earlier gets its
// overtime threshold recomputed from started_at and the new duration so the
// stored value never drifts from the definition.
func applyExtensionTx(ctx context.Context, taskRepo *repository.TaskRepository, task *model.Task, minutes int) error {
	newDuration := task.DurationMinutes + minutes
	fields := map[string]interface{}{
		"duration_minutes": newDuration,
	}
	if task.StartedAt != nil {
		overtimeAt := task.StartedAt.Add(time.Duration(newDuration) * time.Minute)
		fields["overtime_at"] = overtimeAt
		task.OvertimeAt = &overtimeAt
	}

	if err := taskRepo.UpdateIfStatus(ctx, task.ID, task.Status, fields); err != nil {
		return err
	}
	task.DurationMinutes = newDuration
	return nil
}

func (s *ExtensionService) emit(ctx context.Context, emitted []events.Event) {
	for _, event := range emitted {
		s.events.Emit(ctx, event)
	}
}
