package server

import (
	"log/slog"
	"sync"

	"signaged/proto"
)

// Event topics consumed by dashboard subscribers.
const (
	TopicScreens = "screens" // status + screen_deleted
	TopicLayout  = "layouts" // layout_applied
)

// EventBroker fans informational events out to dashboard subscribers.
// Screens are never subscribers; the engine pushes to them directly.
type EventBroker struct {
	mu   sync.RWMutex
	subs map[string]map[Client]struct{} // Map topic to hashset of subscribers
}

func NewEventBroker() *EventBroker {
	return &EventBroker{
		subs: make(map[string]map[Client]struct{}),
	}
}

func (b *EventBroker) Subscribe(topic string, client Client) {
	slog.Debug("Subscribing", "topic", topic, "clientId", client.Meta().Id)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[Client]struct{})
	}
	b.subs[topic][client] = struct{}{}
}

func (b *EventBroker) Publish(topic string, msg proto.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sentCount := 0
	for client := range b.subs[topic] {
		err := client.Send(msg)
		if err != nil {
			slog.Warn("There was an error publishing an event to a subscriber", "type", msg.Type, "topic", topic, "error", err.Error())
			continue
		}
		sentCount++
	}
	slog.Debug("Event published",
		"type", msg.Type,
		"topic", topic,
		"subscribers", sentCount,
		"size", len(msg.Payload),
	)
}

func (b *EventBroker) Unsubscribe(topic string, client Client) {
	slog.Debug("Unsubscribing", "topic", topic, "clientId", client.Meta().Id)
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subs[topic]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(b.subs, topic)
		}
	}
}
