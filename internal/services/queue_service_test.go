package services

import (
	"context"
	"testing"

	"companion-dispatch.com/companion-dispatch/internal/constants"
	apperrors "companion-dispatch.com/companion-dispatch/internal/errors"
)

func TestReassign_ToIdleWorker_PromotesImmediately(t *testing.T) {
	env := setupEnv(t)
	busy := env.seedPlayer(t, constants.PlayerBusy)
	idle := env.seedPlayer(t, constants.PlayerIdle)

	queued := env.createTask(t, dispatcherID, &busy.ID)

	task, err := env.queue.Reassign(context.Background(), queued.ID, dispatcherID, idle.ID)
	if err != nil {
		t.Fatalf("reassign failed: %v", err)
	}
	if task.Status != constants.StatusAccepted {
		t.Errorf("expected accepted, got %s", task.Status)
	}
	if task.PlayerID == nil || *task.PlayerID != idle.ID {
		t.Error("expected the task moved to the idle player")
	}
	if got := env.playerStatus(t, idle.ID); got != constants.PlayerBusy {
		t.Errorf("expected new player busy, got %s", got)
	}
	// The original worker never held the queued task.
	if got := env.playerStatus(t, busy.ID); got != constants.PlayerBusy {
		t.Errorf("expected original player unchanged, got %s", got)
	}
}

func TestReassign_ToBusyWorker_AppendsToBacklog(t *testing.T) {
	env := setupEnv(t)
	busyA := env.seedPlayer(t, constants.PlayerBusy)
	busyB := env.seedPlayer(t, constants.PlayerBusy)

	existing := env.createTask(t, dispatcherID, &busyB.ID)
	queued := env.createTask(t, dispatcherID, &busyA.ID)

	task, err := env.queue.Reassign(context.Background(), queued.ID, dispatcherID, busyB.ID)
	if err != nil {
		t.Fatalf("reassign failed: %v", err)
	}
	if task.Status != constants.StatusQueued {
		t.Errorf("expected still queued, got %s", task.Status)
	}
	if task.QueueOrder <= existing.QueueOrder {
		t.Errorf("expected the task behind the existing backlog entry, got order %d", task.QueueOrder)
	}
}

func TestReassign_OnlyOwner(t *testing.T) {
	env := setupEnv(t)
	busy := env.seedPlayer(t, constants.PlayerBusy)
	idle := env.seedPlayer(t, constants.PlayerIdle)
	queued := env.createTask(t, dispatcherID, &busy.ID)

	_, err := env.queue.Reassign(context.Background(), queued.ID, "other-dispatcher", idle.ID)
	if !apperrors.IsForbidden(err) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestReassign_NonQueuedTask_ValidationError(t *testing.T) {
	env := setupEnv(t)
	idleA := env.seedPlayer(t, constants.PlayerIdle)
	idleB := env.seedPlayer(t, constants.PlayerIdle)

	accepted := env.createTask(t, dispatcherID, &idleA.ID)

	_, err := env.queue.Reassign(context.Background(), accepted.ID, dispatcherID, idleB.ID)
	if !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestReassign_OfflineTarget_ValidationError(t *testing.T) {
	env := setupEnv(t)
	busy := env.seedPlayer(t, constants.PlayerBusy)
	offline := env.seedPlayer(t, constants.PlayerOffline)
	queued := env.createTask(t, dispatcherID, &busy.ID)

	_, err := env.queue.Reassign(context.Background(), queued.ID, dispatcherID, offline.ID)
	if !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestQueuePromotionKeepsFIFOAcrossCompletions(t *testing.T) {
	env := setupEnv(t)
	player := env.seedPlayer(t, constants.PlayerIdle)

	ctx := context.Background()
	running := env.runningTask(t, dispatcherID, player.ID)

	first := env.createTask(t, dispatcherID, &player.ID)
	second := env.createTask(t, dispatcherID, &player.ID)
	third := env.createTask(t, dispatcherID, &player.ID)

	order := []string{first.ID, second.ID, third.ID}
	current := running.ID
	for _, wantNext := range order {
		if current != running.ID {
			if _, err := env.assignments.StartTask(ctx, current, player.ID); err != nil {
				t.Fatalf("start failed: %v", err)
			}
		}
		_, next, err := env.assignments.CompleteTask(ctx, current, player.ID)
		if err != nil {
			t.Fatalf("complete failed: %v", err)
		}
		if next == nil || next.ID != wantNext {
			t.Fatalf("expected next task %s, got %v", wantNext, next)
		}
		current = next.ID
	}

	if _, err := env.assignments.StartTask(ctx, current, player.ID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_, next, err := env.assignments.CompleteTask(ctx, current, player.ID)
	if err != nil {
		t.Fatalf("final complete failed: %v", err)
	}
	if next != nil {
		t.Errorf("expected empty backlog, got %s", next.ID)
	}
	if got := env.playerStatus(t, player.ID); got != constants.PlayerIdle {
		t.Errorf("expected player idle at the end, got %s", got)
	}
}
