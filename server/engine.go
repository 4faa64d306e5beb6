package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"signaged/proto"
	"signaged/store"
)

// TargetAll addresses every registered screen in ApplyLayout and
// RequestRefresh.
const TargetAll = "all"

// SyncEngine keeps every screen's rendered state consistent with the
// dashboard's intent. It is the only writer of layout content and the
// only component that pushes over a screen's connection.
//
// The resilience contract is store-then-best-effort-push: a layout is
// persisted first, the push to a Connected screen may fail without
// retry, and a disconnected or unlucky screen is guaranteed to catch up
// through the registered reply on its next reconnect.
type SyncEngine struct {
	registry *ScreenRegistry
	store    store.LayoutStore
	events   *EventBroker

	mu    sync.RWMutex
	conns map[string]Client // live connections by connection id
}

func NewSyncEngine(registry *ScreenRegistry, layouts store.LayoutStore, events *EventBroker) *SyncEngine {
	return &SyncEngine{
		registry: registry,
		store:    layouts,
		events:   events,
		conns:    make(map[string]Client),
	}
}

// HandleConnect tracks a fresh connection. Nothing is known about the
// screen until it sends a register message.
func (e *SyncEngine) HandleConnect(client Client) error {
	e.mu.Lock()
	e.conns[client.Meta().Id] = client
	e.mu.Unlock()
	return nil
}

// HandleDisconnect drops the connection and, if a screen was attached
// to it, marks that screen Disconnected. Idempotent: a handle that was
// already superseded changes nothing.
func (e *SyncEngine) HandleDisconnect(client Client) {
	e.mu.Lock()
	delete(e.conns, client.Meta().Id)
	e.mu.Unlock()

	screenID, changed := e.registry.MarkDisconnectedClient(client)
	if changed {
		slog.Info("Screen disconnected", "id", screenID)
		e.publishStatus(screenID)
	}
}

// Handle dispatches an inbound screen message.
func (e *SyncEngine) Handle(msg proto.Message) {
	switch msg.Type {
	case proto.TypeRegister:
		e.handleRegister(msg)
	case proto.TypeHeartbeat:
		e.handleHeartbeat(msg)
	default:
		slog.Warn("Unhandled message type", "type", msg.Type, "sender", msg.Sender)
	}
}

func (e *SyncEngine) handleRegister(msg proto.Message) {
	var p proto.RegisterPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		slog.Warn("Invalid register payload", "sender", msg.Sender, "error", err)
		return
	}

	e.mu.RLock()
	client, ok := e.conns[msg.Sender]
	e.mu.RUnlock()
	if !ok {
		slog.Warn("Register from unknown connection", "sender", msg.Sender)
		return
	}

	screenID := p.ScreenID
	if screenID == "" {
		screenID = uuid.NewString()
	}

	isNew, superseded := e.registry.Attach(screenID, p.Name, p.Resolution, client)
	if superseded != nil {
		slog.Info("Superseding previous connection", "id", screenID, "old_conn", superseded.Meta().Id)
		superseded.Close()
	}

	// Reconciliation: the reply always carries the authoritative
	// layout so a reconnecting screen catches up on every push it
	// missed. A store read failure degrades to the empty layout; the
	// screen keeps rendering its cached copy because the version can
	// never regress below what it already acknowledged.
	rec, err := e.store.Get(context.Background(), screenID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Error("Layout store read failed during register", "id", screenID, "error", err)
		rec = store.Record{}
	}

	screen, _ := e.registry.Get(screenID)
	reply, err := proto.NewMessage(proto.TypeRegistered, proto.RegisteredPayload{
		ScreenID: screenID,
		Name:     screen.Name,
		Layout:   rec.Layout,
		Version:  rec.Version,
	})
	if err != nil {
		slog.Error("Failed to build registered reply", "id", screenID, "error", err)
		return
	}
	if err := e.registry.push(screenID, rec.Version, true, reply); err != nil {
		slog.Warn("Failed to deliver registered reply", "id", screenID, "error", err)
	}

	slog.Info("Screen registered", "id", screenID, "new", isNew, "version", rec.Version, "resolution", p.Resolution)
	e.publishStatus(screenID)
}

func (e *SyncEngine) handleHeartbeat(msg proto.Message) {
	var p proto.HeartbeatPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		slog.Warn("Invalid heartbeat payload", "sender", msg.Sender, "error", err)
		return
	}
	if err := e.registry.Heartbeat(p.ScreenID); err != nil {
		slog.Warn("Heartbeat for unknown screen", "id", p.ScreenID, "error", err)
	}
}

// ApplyLayout persists the layout for the target screen (or every
// screen for TargetAll) and pushes it to each target that is Connected.
// Push failures are logged and deferred to reconnect-time
// reconciliation; store failures are returned so the operator sees the
// mutation did not apply.
func (e *SyncEngine) ApplyLayout(ctx context.Context, target string, layout proto.Layout) error {
	var targets []string
	if target == TargetAll {
		for _, screen := range e.registry.List() {
			targets = append(targets, screen.ID)
		}
	} else {
		if _, ok := e.registry.Get(target); !ok {
			return fmt.Errorf("apply layout to %s: %w", target, ErrUnknownScreen)
		}
		targets = []string{target}
	}

	var errs []error
	for _, screenID := range targets {
		version, err := e.store.Put(ctx, screenID, layout)
		if err != nil {
			slog.Error("Layout store write failed", "id", screenID, "error", err)
			errs = append(errs, fmt.Errorf("apply layout to %s: %w", screenID, err))
			continue
		}

		update, err := proto.NewMessage(proto.TypeLayoutUpdate, proto.LayoutUpdatePayload{
			Layout:  layout,
			Version: version,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := e.registry.push(screenID, version, false, update); err != nil {
			// Persisted but not delivered. The screen reconciles on
			// its next register; no retry here.
			slog.Info("Layout push deferred to reconnect", "id", screenID, "version", version, "error", err)
		} else {
			slog.Info("Layout pushed", "id", screenID, "version", version, "checksum", layout.Checksum())
		}

		e.publish(TopicLayout, proto.TypeLayoutApplied, proto.LayoutAppliedPayload{
			ScreenID: screenID,
			Version:  version,
			Checksum: layout.Checksum(),
		})
	}
	return errors.Join(errs...)
}

// RequestRefresh re-sends the current persisted layout to a Connected
// screen without bumping its version. If the store is unreachable it
// falls back to a bare refresh message so the screen re-renders its
// cached layout; the screen never sees the failure.
func (e *SyncEngine) RequestRefresh(ctx context.Context, target string) error {
	var targets []string
	if target == TargetAll {
		for _, screen := range e.registry.List() {
			targets = append(targets, screen.ID)
		}
	} else {
		if _, ok := e.registry.Get(target); !ok {
			return fmt.Errorf("refresh %s: %w", target, ErrUnknownScreen)
		}
		targets = []string{target}
	}

	for _, screenID := range targets {
		rec, err := e.store.Get(ctx, screenID)
		if err != nil {
			slog.Warn("Store read failed for refresh, sending bare refresh", "id", screenID, "error", err)
			refresh, merr := proto.NewMessage(proto.TypeRefresh, struct{}{})
			if merr != nil {
				continue
			}
			if perr := e.registry.pushRefresh(screenID, refresh); perr != nil {
				slog.Info("Refresh not delivered", "id", screenID, "error", perr)
			}
			continue
		}

		update, err := proto.NewMessage(proto.TypeLayoutUpdate, proto.LayoutUpdatePayload{
			Layout:  rec.Layout,
			Version: rec.Version,
		})
		if err != nil {
			continue
		}
		if err := e.registry.push(screenID, rec.Version, true, update); err != nil {
			slog.Info("Refresh not delivered", "id", screenID, "version", rec.Version, "error", err)
		}
	}
	return nil
}

// ListScreens returns dashboard snapshots of every screen.
func (e *SyncEngine) ListScreens() []Screen {
	return e.registry.List()
}

// GetScreen returns one screen snapshot.
func (e *SyncEngine) GetScreen(screenID string) (Screen, bool) {
	return e.registry.Get(screenID)
}

// GetLayout reads the persisted layout record for a screen. Unknown
// screens resolve to the empty layout at version 0.
func (e *SyncEngine) GetLayout(ctx context.Context, screenID string) (store.Record, error) {
	rec, err := e.store.Get(ctx, screenID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Record{}, nil
	}
	return rec, err
}

// RenameScreen updates the display name and notifies the dashboard.
func (e *SyncEngine) RenameScreen(screenID, name string) error {
	if err := e.registry.Rename(screenID, name); err != nil {
		return err
	}
	e.publishStatus(screenID)
	return nil
}

// RemoveScreen deletes a screen and its stored layout. Only operator
// action reaches this; disconnects never evict.
func (e *SyncEngine) RemoveScreen(ctx context.Context, screenID string) error {
	client, existed := e.registry.Remove(screenID)
	if client != nil {
		client.Close()
	}
	if err := e.store.Delete(ctx, screenID); err != nil {
		return fmt.Errorf("remove screen %s: %w", screenID, err)
	}
	if existed {
		e.publish(TopicScreens, proto.TypeScreenDeleted, proto.ScreenDeletedPayload{ScreenID: screenID})
		slog.Info("Screen removed", "id", screenID)
	}
	return nil
}

// RegisterTransport wires a transport's callbacks into the engine.
func (e *SyncEngine) RegisterTransport(t Transport) {
	t.OnMessage(e.Handle)
	t.OnConnect(e.HandleConnect)
	t.OnDisconnect(e.HandleDisconnect)
}

func (e *SyncEngine) publishStatus(screenID string) {
	screen, ok := e.registry.Get(screenID)
	if !ok {
		return
	}
	e.publish(TopicScreens, proto.TypeStatus, proto.StatusPayload{
		ScreenID:   screen.ID,
		Name:       screen.Name,
		Connected:  screen.Connected,
		LastSeen:   screen.LastSeen.Unix(),
		Resolution: screen.Resolution,
	})
}

func (e *SyncEngine) publish(topic, msgType string, payload any) {
	if e.events == nil {
		return
	}
	msg, err := proto.NewMessage(msgType, payload)
	if err != nil {
		slog.Error("Failed to build event message", "type", msgType, "error", err)
		return
	}
	e.events.Publish(topic, msg)
}
