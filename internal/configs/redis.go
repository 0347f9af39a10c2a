package config

import (
	"log"

	"github.com/redis/rueidis"
)

// NewRedisClient opens the connection the event broadcaster publishes on.
// The process only ever publishes, so one client with default options is
// enough; subscribing session gateways bring their own.
func NewRedisClient(addr string) rueidis.Client {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{addr},
		ClientName:  "companion-dispatch",
	})
	if err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}
	return client
}
