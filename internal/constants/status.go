package constants

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusAccepted   TaskStatus = "accepted"
	StatusQueued     TaskStatus = "queued"
	StatusInProgress TaskStatus = "in_progress"
	StatusPaused     TaskStatus = "paused"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
	StatusOvertime   TaskStatus = "overtime"
)

type PlayerStatus string

const (
	PlayerIdle    PlayerStatus = "idle"
	PlayerBusy    PlayerStatus = "busy"
	PlayerOffline PlayerStatus = "offline"
)

type ExtensionStatus string

const (
	ExtensionPending  ExtensionStatus = "pending"
	ExtensionApproved ExtensionStatus = "approved"
	ExtensionRejected ExtensionStatus = "rejected"
)

type Role string

const (
	RoleDispatcher Role = "dispatcher"
	RolePlayer     Role = "player"
)
