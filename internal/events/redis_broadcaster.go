package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/rueidis"
)

// RedisBroadcaster publishes events to per-user redis channels; the session
// gateway subscribes to "<prefix><userID>" for each connected user. Delivery
// is fire-and-forget: a publish failure is logged, never surfaced to the
// operation that already committed.
type RedisBroadcaster struct {
	client        rueidis.Client
	channelPrefix string
}

func NewRedisBroadcaster(client rueidis.Client, channelPrefix string) *RedisBroadcaster {
	return &RedisBroadcaster{
		client:        client,
		channelPrefix: channelPrefix,
	}
}

func (b *RedisBroadcaster) Emit(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("events: failed to marshal %s: %v", event.Name, err)
		return
	}

	for _, userID := range event.Audience {
		cmd := b.client.B().Publish().
			Channel(b.channelPrefix + userID).
			Message(string(body)).
			Build()

		if err := b.client.Do(ctx, cmd).Error(); err != nil {
			log.Printf("events: failed to publish %s to %s: %v", event.Name, userID, err)
		}
	}
}
