package constants

// Event names pushed through the broadcaster after a committed mutation.
const (
	EventTaskStatusChanged   = "task_status_changed"
	EventPlayerStatusChanged = "player_status_changed"
	EventTaskOvertime        = "task_overtime"
	EventExtensionRequested  = "extension_requested"
	EventExtensionReviewed   = "extension_reviewed"
	EventDurationExtended    = "duration_extended"
	EventTaskQueued          = "task_queued"
	EventTaskQueueUpdated    = "task_queue_updated"
)

// Audit log actions, one per state-changing operation.
const (
	ActionCreate          = "create"
	ActionAccept          = "accept"
	ActionStart           = "start"
	ActionComplete        = "complete"
	ActionCancel          = "cancel"
	ActionUpdate          = "update"
	ActionPause           = "pause"
	ActionResume          = "resume"
	ActionQueue           = "queue"
	ActionPromote         = "promote"
	ActionReassign        = "reassign"
	ActionOvertime        = "overtime"
	ActionExtendDirect    = "extend_direct"
	ActionExtensionOpen   = "extension_request"
	ActionExtensionReview = "extension_review"
)
