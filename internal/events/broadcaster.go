package events

import "context"

// Event is a committed domain mutation pushed to the real-time layer. The
// audience is always the owning dispatcher plus the assigned worker, derived
// from the task or request row.
type Event struct {
	Name     string                 `json:"event"`
	Payload  map[string]interface{} `json:"payload"`
	Audience []string               `json:"-"`
}

// Broadcaster is the sink the core pushes events into after commit. Fan-out
// itself lives outside the core.
type Broadcaster interface {
	Emit(ctx context.Context, event Event)
}

// Audience builds the recipient list, skipping unassigned slots.
func Audience(dispatcherID string, playerID *string) []string {
	audience := []string{dispatcherID}
	if playerID != nil && *playerID != "" && *playerID != dispatcherID {
		audience = append(audience, *playerID)
	}
	return audience
}
