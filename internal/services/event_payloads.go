package services

import (
	"companion-dispatch.com/companion-dispatch/internal/constants"
	"companion-dispatch.com/companion-dispatch/internal/events"
	model "companion-dispatch.com/companion-dispatch/internal/models"
)

func taskStatusEvent(task *model.Task, from constants.TaskStatus) events.Event {
	return events.Event{
		Name: constants.EventTaskStatusChanged,
		Payload: map[string]interface{}{
			"task_id":     task.ID,
			"from_status": from,
			"to_status":   task.Status,
			"player_id":   task.PlayerID,
		},
		Audience: events.Audience(task.DispatcherID, task.PlayerID),
	}
}

func playerStatusEvent(task *model.Task, playerID string, status constants.PlayerStatus) events.Event {
	return events.Event{
		Name: constants.EventPlayerStatusChanged,
		Payload: map[string]interface{}{
			"player_id": playerID,
			"status":    status,
		},
		Audience: events.Audience(task.DispatcherID, &playerID),
	}
}

func taskQueuedEvent(task *model.Task) events.Event {
	return events.Event{
		Name: constants.EventTaskQueued,
		Payload: map[string]interface{}{
			"task_id":     task.ID,
			"player_id":   task.PlayerID,
			"queue_order": task.QueueOrder,
		},
		Audience: events.Audience(task.DispatcherID, task.PlayerID),
	}
}
