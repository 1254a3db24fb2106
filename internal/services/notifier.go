package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"chat-go/internal/config"
	"chat-go/internal/kafka"
)

// NotificationEvent is the envelope published to the notifications topic.
// Downstream consumers (push senders, badges) fan these out; the API itself
// never depends on delivery.
type NotificationEvent struct {
	Type        string      `json:"type"`
	ActorUserID uint        `json:"actorUserId"`
	TargetIDs   []uint      `json:"targetIds"`
	Payload     interface{} `json:"payload,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Notifier publishes notification events. Publishing is fire-and-forget:
// failures are logged, never returned, so request handling is unaffected.
type Notifier struct {
	producer kafka.MessageProducer
	topic    string
}

// NewNotifier creates a Notifier publishing to the configured topic.
func NewNotifier(producer kafka.MessageProducer, cfg config.KafkaConfig) *Notifier {
	return &Notifier{producer: producer, topic: cfg.NotificationsTopic}
}

// Publish emits an event in the background. Safe to call on a nil Notifier.
func (n *Notifier) Publish(eventType string, actorUserID uint, targetIDs []uint, payload interface{}) {
	if n == nil || n.producer == nil {
		return
	}
	event := NotificationEvent{
		Type:        eventType,
		ActorUserID: actorUserID,
		TargetIDs:   targetIDs,
		Payload:     payload,
		Timestamp:   time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal notification event %s: %v", eventType, err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.producer.SendMessage(ctx, n.topic, []byte(eventType), data); err != nil {
			log.Printf("Failed to publish notification event %s: %v", eventType, err)
		}
	}()
}
