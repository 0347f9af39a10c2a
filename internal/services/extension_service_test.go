package services

import (
	"context"
	"testing"
	"time"

	"companion-dispatch.com/companion-dispatch/internal/constants"
	apperrors "companion-dispatch.com/companion-dispatch/internal/errors"
)

func TestRequestExtension_ApproveIncreasesDuration(t *testing.T) {
	env := setupEnv(t)
	player := env.seedPlayer(t, constants.PlayerIdle)
	task := env.runningTask(t, dispatcherID, player.ID)

	ctx := context.Background()

	request, err := env.extension.RequestExtension(ctx, task.ID, player.ID, 30, "customer wants more")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if request.Status != constants.ExtensionPending {
		t.Errorf("expected pending request, got %s", request.Status)
	}
	if request.DispatcherID != dispatcherID {
		t.Errorf("expected dispatcher copied from task, got %s", request.DispatcherID)
	}

	reviewed, err := env.extension.ReviewExtensionRequest(ctx, request.ID, dispatcherID, true, "ok")
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if reviewed.Status != constants.ExtensionApproved {
		t.Errorf("expected approved, got %s", reviewed.Status)
	}
	if reviewed.ReviewedBy == nil || *reviewed.ReviewedBy != dispatcherID {
		t.Error("expected reviewed_by to be the dispatcher")
	}
	if reviewed.ReviewReason != "ok" {
		t.Errorf("expected review reason, got %q", reviewed.ReviewReason)
	}

	updated, err := env.tasks.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if updated.DurationMinutes != 90 {
		t.Errorf("expected duration 90, got %d", updated.DurationMinutes)
	}
	if updated.OriginalDuration != 60 {
		t.Errorf("expected original duration unchanged at 60, got %d", updated.OriginalDuration)
	}
	wantOvertime := updated.StartedAt.Add(90 * time.Minute)
	if updated.OvertimeAt == nil || !updated.OvertimeAt.Equal(wantOvertime) {
		t.Errorf("expected overtime_at recomputed to %v, got %v", wantOvertime, updated.OvertimeAt)
	}
}

func TestRequestExtension_RejectLeavesDuration(t *testing.T) {
	env := setupEnv(t)
	player := env.seedPlayer(t, constants.PlayerIdle)
	task := env.runningTask(t, dispatcherID, player.ID)

	ctx := context.Background()
	request, err := env.extension.RequestExtension(ctx, task.ID, player.ID, 30, "more time")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	reviewed, err := env.extension.ReviewExtensionRequest(ctx, request.ID, dispatcherID, false, "no budget")
	if err != nil {
		t.Fatalf("review failed: %v", err)
	}
	if reviewed.Status != constants.ExtensionRejected {
		t.Errorf("expected rejected, got %s", reviewed.Status)
	}

	updated, _ := env.tasks.FindByID(ctx, task.ID)
	if updated.DurationMinutes != 60 {
		t.Errorf("expected duration unchanged at 60, got %d", updated.DurationMinutes)
	}
}

func TestRequestExtension_SecondPendingRejected(t *testing.T) {
	env := setupEnv(t)
	player := env.seedPlayer(t, constants.PlayerIdle)
	task := env.runningTask(t, dispatcherID, player.ID)

	ctx := context.Background()
	if _, err := env.extension.RequestExtension(ctx, task.ID, player.ID, 15, "first"); err != nil {
		t.Fatalf("first request failed: %v", err)
	}

	_, err := env.extension.RequestExtension(ctx, task.ID, player.ID, 15, "second")
	if !apperrors.IsValidation(err) {
		t.Errorf("expected validation error for duplicate pending request, got %v", err)
	}
}

func TestRequestExtension_OnlyWhileInProgress(t *testing.T) {
	env := setupEnv(t)
	player := env.seedPlayer(t, constants.PlayerIdle)
	task := env.createTask(t, dispatcherID, &player.ID) // accepted, not started

	_, err := env.extension.RequestExtension(context.Background(), task.ID, player.ID, 15, "early")
	if !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRequestExtension_OnlyAssignedPlayer(t *testing.T) {
	env := setupEnv(t)
	player := env.seedPlayer(t, constants.PlayerIdle)
	task := env.runningTask(t, dispatcherID, player.ID)

	_, err := env.extension.RequestExtension(context.Background(), task.ID, "intruder", 15, "mine now")
	if !apperrors.IsForbidden(err) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestReviewExtension_OnlyTaskDispatcher(t *testing.T) {
	env := setupEnv(t)
	player := env.seedPlayer(t, constants.PlayerIdle)
	task := env.runningTask(t, dispatcherID, player.ID)

	ctx := context.Background()
	request, err := env.extension.RequestExtension(ctx, task.ID, player.ID, 30, "please")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	_, err = env.extension.ReviewExtensionRequest(ctx, request.ID, "other-dispatcher", true, "ok")
	if !apperrors.IsForbidden(err) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestReviewExtension_AlreadyReviewed_Conflict(t *testing.T) {
	env := setupEnv(t)
	player := env.seedPlayer(t, constants.PlayerIdle)
	task := env.runningTask(t, dispatcherID, player.ID)

	ctx := context.Background()
	request, err := env.extension.RequestExtension(ctx, task.ID, player.ID, 30, "please")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if _, err := env.extension.ReviewExtensionRequest(ctx, request.ID, dispatcherID, false, "no"); err != nil {
		t.Fatalf("review failed: %v", err)
	}

	_, err = env.extension.ReviewExtensionRequest(ctx, request.ID, dispatcherID, true, "changed my mind")
	if !apperrors.IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestReviewExtension_AfterTaskFinished_ApproveConflicts(t *testing.T) {
	env := setupEnv(t)
	player := env.seedPlayer(t, constants.PlayerIdle)
	task := env.runningTask(t, dispatcherID, player.ID)

	ctx := context.Background()
	request, err := env.extension.RequestExtension(ctx, task.ID, player.ID, 30, "going long")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if _, _, err := env.assignments.CompleteTask(ctx, task.ID, player.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	_, err = env.extension.ReviewExtensionRequest(ctx, request.ID, dispatcherID, true, "ok")
	if !apperrors.IsConflict(err) {
		t.Errorf("expected conflict approving after completion, got %v", err)
	}

	updated, err := env.tasks.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if updated.Status != constants.StatusCompleted {
		t.Errorf("expected task still completed, got %s", updated.Status)
	}
	if updated.DurationMinutes != 60 {
		t.Errorf("expected duration frozen at 60, got %d", updated.DurationMinutes)
	}

	// The failed approval rolls back whole; the request stays pending and
	// the dispatcher can still reject it to clear the backlog.
	stale, err := env.extensions.FindByID(ctx, request.ID)
	if err != nil {
		t.Fatalf("fetch request failed: %v", err)
	}
	if stale.Status != constants.ExtensionPending {
		t.Errorf("expected request still pending, got %s", stale.Status)
	}
	rejected, err := env.extension.ReviewExtensionRequest(ctx, request.ID, dispatcherID, false, "task already done")
	if err != nil {
		t.Fatalf("reject after completion failed: %v", err)
	}
	if rejected.Status != constants.ExtensionRejected {
		t.Errorf("expected rejected, got %s", rejected.Status)
	}
}

func TestReviewExtension_AfterTaskCancelled_ApproveConflicts(t *testing.T) {
	env := setupEnv(t)
	player := env.seedPlayer(t, constants.PlayerIdle)
	task := env.runningTask(t, dispatcherID, player.ID)

	ctx := context.Background()
	request, err := env.extension.RequestExtension(ctx, task.ID, player.ID, 30, "going long")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if _, _, err := env.assignments.CancelTask(ctx, task.ID, dispatcherID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	_, err = env.extension.ReviewExtensionRequest(ctx, request.ID, dispatcherID, true, "ok")
	if !apperrors.IsConflict(err) {
		t.Errorf("expected conflict approving after cancellation, got %v", err)
	}
	updated, _ := env.tasks.FindByID(ctx, task.ID)
	if updated.DurationMinutes != 60 {
		t.Errorf("expected duration frozen at 60, got %d", updated.DurationMinutes)
	}
}

func TestExtendTaskDuration_DirectPath(t *testing.T) {
	env := setupEnv(t)
	player := env.seedPlayer(t, constants.PlayerIdle)
	task := env.createTask(t, dispatcherID, &player.ID) // accepted

	extended, err := env.extension.ExtendTaskDuration(context.Background(), task.ID, dispatcherID, 45, "pre-game prep")
	if err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	if extended.DurationMinutes != 105 {
		t.Errorf("expected duration 105, got %d", extended.DurationMinutes)
	}

	extendEvents := env.broadcaster.ByName(constants.EventDurationExtended)
	if len(extendEvents) != 1 {
		t.Errorf("expected one duration_extended event, got %d", len(extendEvents))
	}
}

func TestExtendTaskDuration_OnlyOwnerAndActiveStates(t *testing.T) {
	env := setupEnv(t)
	player := env.seedPlayer(t, constants.PlayerIdle)
	task := env.createTask(t, dispatcherID, &player.ID)

	ctx := context.Background()

	if _, err := env.extension.ExtendTaskDuration(ctx, task.ID, "other", 10, ""); !apperrors.IsForbidden(err) {
		t.Errorf("expected forbidden, got %v", err)
	}

	pending := env.createTask(t, dispatcherID, nil)
	if _, err := env.extension.ExtendTaskDuration(ctx, pending.ID, dispatcherID, 10, ""); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error for pending task, got %v", err)
	}
}

func TestExtensionQueries(t *testing.T) {
	env := setupEnv(t)
	player := env.seedPlayer(t, constants.PlayerIdle)
	task := env.runningTask(t, dispatcherID, player.ID)

	ctx := context.Background()
	request, err := env.extension.RequestExtension(ctx, task.ID, player.ID, 20, "query me")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	pending, err := env.extension.ListPendingForDispatcher(ctx, dispatcherID)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != request.ID {
		t.Errorf("expected the pending request in dispatcher listing")
	}

	mine, err := env.extension.ListForPlayer(ctx, player.ID, task.ID)
	if err != nil {
		t.Fatalf("list mine failed: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != request.ID {
		t.Errorf("expected the request in player listing")
	}

	none, err := env.extension.ListForPlayer(ctx, player.ID, "other-task")
	if err != nil {
		t.Fatalf("list filtered failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected empty listing for other task, got %d", len(none))
	}
}
