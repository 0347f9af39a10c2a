package statemachine

import (
	"fmt"

	"companion-dispatch.com/companion-dispatch/internal/constants"
	apperrors "companion-dispatch.com/companion-dispatch/internal/errors"
)

// validTransitions is the single source of truth for the task lifecycle.
// A queued task promoted from a worker's backlog goes straight to accepted;
// it never re-enters pending.
var validTransitions = map[constants.TaskStatus]map[constants.TaskStatus]bool{
	constants.StatusPending: {
		constants.StatusAccepted:  true,
		constants.StatusCancelled: true,
	},
	constants.StatusAccepted: {
		constants.StatusInProgress: true,
		constants.StatusCancelled:  true,
	},
	constants.StatusQueued: {
		constants.StatusAccepted:  true,
		constants.StatusCancelled: true,
	},
	constants.StatusInProgress: {
		constants.StatusPaused:    true,
		constants.StatusCompleted: true,
		constants.StatusCancelled: true,
		constants.StatusOvertime:  true,
	},
	constants.StatusPaused: {
		constants.StatusInProgress: true,
		constants.StatusCancelled:  true,
	},
	constants.StatusOvertime: {
		constants.StatusCompleted: true,
		constants.StatusCancelled: true,
	},
}

var terminalStatuses = map[constants.TaskStatus]bool{
	constants.StatusCompleted: true,
	constants.StatusCancelled: true,
}

// completableStatuses are the states the assigned worker may complete from.
var completableStatuses = map[constants.TaskStatus]bool{
	constants.StatusInProgress: true,
	constants.StatusPaused:     true,
	constants.StatusOvertime:   true,
}

// workerHoldingStatuses are the states in which the task occupies its
// assigned worker; leaving them for a terminal state frees the worker.
var workerHoldingStatuses = map[constants.TaskStatus]bool{
	constants.StatusAccepted:   true,
	constants.StatusInProgress: true,
	constants.StatusPaused:     true,
	constants.StatusOvertime:   true,
}

// activeStatuses are the states counted against the one-active-task-per-
// worker invariant.
var activeStatuses = map[constants.TaskStatus]bool{
	constants.StatusInProgress: true,
	constants.StatusPaused:     true,
}

func IsTerminal(s constants.TaskStatus) bool {
	return terminalStatuses[s]
}

func CanComplete(s constants.TaskStatus) bool {
	return completableStatuses[s]
}

func HoldsWorker(s constants.TaskStatus) bool {
	return workerHoldingStatuses[s]
}

func IsActive(s constants.TaskStatus) bool {
	return activeStatuses[s]
}

// ValidateTransition rejects anything outside the lifecycle table.
func ValidateTransition(from, to constants.TaskStatus) error {
	if terminalStatuses[from] {
		return apperrors.Validation(fmt.Sprintf("task is %s and can no longer change status", from))
	}
	allowed, ok := validTransitions[from]
	if !ok {
		return apperrors.Validation(fmt.Sprintf("unknown task status %q", from))
	}
	if !allowed[to] {
		return apperrors.Validation(fmt.Sprintf("cannot change task status from %s to %s", from, to))
	}
	return nil
}
