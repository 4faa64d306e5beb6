package server

import (
	"context"
	"log/slog"
	"time"

	"signaged/proto"
)

// HeartbeatSupervisor sweeps the registry on a fixed interval and
// disconnects screens that went silent, covering connections dropped
// without a close frame. It never touches the layout store.
type HeartbeatSupervisor struct {
	registry *ScreenRegistry
	events   *EventBroker
	interval time.Duration
	timeout  time.Duration
}

func NewHeartbeatSupervisor(registry *ScreenRegistry, events *EventBroker, interval, timeout time.Duration) *HeartbeatSupervisor {
	return &HeartbeatSupervisor{
		registry: registry,
		events:   events,
		interval: interval,
		timeout:  timeout,
	}
}

// Run sweeps until the context is cancelled.
func (s *HeartbeatSupervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

// sweep transitions every Connected screen silent past the timeout to
// Disconnected. The registry transition happens at most once per
// silence episode, so each expiry produces exactly one status event.
// Returns the number of screens expired, for tests.
func (s *HeartbeatSupervisor) sweep(now time.Time) int {
	cutoff := now.Add(-s.timeout)
	timedOut := s.registry.expire(cutoff)
	for _, exp := range timedOut {
		slog.Warn("Screen heartbeat timeout", "id", exp.id, "timeout", s.timeout)
		if exp.client != nil {
			exp.client.Close()
		}
		s.publishStatus(exp.id)
	}
	return len(timedOut)
}

func (s *HeartbeatSupervisor) publishStatus(screenID string) {
	if s.events == nil {
		return
	}
	screen, ok := s.registry.Get(screenID)
	if !ok {
		return
	}
	msg, err := proto.NewMessage(proto.TypeStatus, proto.StatusPayload{
		ScreenID:   screen.ID,
		Name:       screen.Name,
		Connected:  screen.Connected,
		LastSeen:   screen.LastSeen.Unix(),
		Resolution: screen.Resolution,
	})
	if err != nil {
		return
	}
	s.events.Publish(TopicScreens, msg)
}
