package services

import (
	"context"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"companion-dispatch.com/companion-dispatch/internal/constants"
	apperrors "companion-dispatch.com/companion-dispatch/internal/errors"
	"companion-dispatch.com/companion-dispatch/internal/events"
	model "companion-dispatch.com/companion-dispatch/internal/models"
	repository "companion-dispatch.com/companion-dispatch/internal/repositories"
)

const watchdogUserID = "system"

// OvertimeService sweeps running tasks whose allotment has elapsed and moves
// them to overtime. The transition changes no worker status and no duration,
// and because the sweep predicate excludes tasks already in overtime each
// task is processed exactly once.
type OvertimeService struct {
	db        *gorm.DB
	tasks     *repository.TaskRepository
	events    events.Broadcaster
	clock     Clock
	interval  time.Duration
	batchSize int

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewOvertimeService(
	db *gorm.DB,
	tasks *repository.TaskRepository,
	broadcaster events.Broadcaster,
	clock Clock,
	interval time.Duration,
	batchSize int,
) *OvertimeService {
	return &OvertimeService{
		db:        db,
		tasks:     tasks,
		events:    broadcaster,
		clock:     clock,
		interval:  interval,
		batchSize: batchSize,
		stop:      make(chan struct{}),
	}
}

// Start launches the periodic sweep.
func (s *OvertimeService) Start() {
	s.wg.Add(1)
	go s.sweepLoop()
}

func (s *OvertimeService) Shutdown() {
	close(s.stop)
	s.wg.Wait()
}

func (s *OvertimeService) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(context.Background())
		case <-s.stop:
			return
		}
	}
}

// SweepOnce processes every currently overdue task. One task's failure never
// aborts the sweep for the others.
func (s *OvertimeService) SweepOnce(ctx context.Context) {
	overdue, err := s.tasks.ListOverdueInProgress(ctx, s.clock.Now(), s.batchSize)
	if err != nil {
		log.Printf("overtime sweep: failed to list overdue tasks: %v", err)
		return
	}

	for i := range overdue {
		if _, err := s.markOvertime(ctx, overdue[i].ID); err != nil {
			if apperrors.IsConflict(err) {
				// Another path moved the task first; nothing to do.
				continue
			}
			log.Printf("overtime sweep: task %s: %v", overdue[i].ID, err)
		}
	}
}

// CheckTaskOvertime is the on-demand variant. It shares the predicate and
// the transition with the scheduled sweep so the two paths cannot diverge.
// Returns the task and whether it was moved to overtime by this call.
func (s *OvertimeService) CheckTaskOvertime(ctx context.Context, taskID string) (*model.Task, bool, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, false, err
	}
	if !s.isOverdue(task) {
		return task, false, nil
	}

	task, err = s.markOvertime(ctx, taskID)
	if err != nil {
		if apperrors.IsConflict(err) {
			task, ferr := s.tasks.FindByID(ctx, taskID)
			return task, false, ferr
		}
		return nil, false, err
	}
	return task, true, nil
}

func (s *OvertimeService) isOverdue(task *model.Task) bool {
	return task.Status == constants.StatusInProgress &&
		task.OvertimeAt != nil &&
		!task.OvertimeAt.After(s.clock.Now())
}

func (s *OvertimeService) markOvertime(ctx context.Context, taskID string) (*model.Task, error) {
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
		if !s.isOverdue(task) {
			return apperrors.Conflict("task is no longer overdue in progress")
		}

		err = taskRepo.UpdateIfStatus(ctx, task.ID, constants.StatusInProgress, map[string]interface{}{
			"status": constants.StatusOvertime,
		})
		if err != nil {
			return err
		}
		task.Status = constants.StatusOvertime

		now := s.clock.Now()
		entry := &model.TaskLog{
			TaskID: task.ID,
			UserID: watchdogUserID,
			Action: constants.ActionOvertime,
			Details: detailsJSON(map[string]interface{}{
				"overtime_at": task.OvertimeAt,
			}),
			CreatedAt: now,
		}
		if err := taskRepo.AppendLog(ctx, entry); err != nil {
			return err
		}

		emitted = append(emitted,
			events.Event{
				Name: constants.EventTaskOvertime,
				Payload: map[string]interface{}{
					"task_id":     task.ID,
					"player_id":   task.PlayerID,
					"overtime_at": task.OvertimeAt,
				},
				Audience: events.Audience(task.DispatcherID, task.PlayerID),
			},
			taskStatusEvent(task, constants.StatusInProgress),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, event := range emitted {
		s.events.Emit(ctx, event)
	}
	return task, nil
}
