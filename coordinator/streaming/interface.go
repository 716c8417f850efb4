package streaming

import (
	"context"
	"time"
)

// Topics published by the coordinator.
const (
	TopicLeader     = "poet.leader"
	TopicRegistered = "poet.node.registered"
	TopicRetired    = "poet.node.retired"
)

// Event is the envelope every publisher emits.
type Event struct {
	Topic     string    `json:"topic"`
	Payload   []byte    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Publisher fans scheduling events out to interested consumers.
// Publishing is best-effort: a failed publish never blocks or fails
// the scheduling decision that produced the event.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Close() error
}
