package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"signaged/proto"
)

var (
	// ErrUnknownScreen is returned for operations against an id that
	// was never registered.
	ErrUnknownScreen = errors.New("unknown screen")

	errNotConnected = errors.New("screen not connected")
	errStaleVersion = errors.New("stale layout version")
)

// Screen is a point-in-time snapshot of a registry entry, safe to hand
// to dashboard queries.
type Screen struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Resolution   string    `json:"resolution,omitempty"`
	Connected    bool      `json:"connected"`
	LastSeen     time.Time `json:"last_seen"`
	RegisteredAt time.Time `json:"registered_at"`
	Version      int64     `json:"version"` // last version delivered to this screen
}

// screenEntry holds the live state of one screen. All field access goes
// through entry.mu so writes for different screens never contend.
type screenEntry struct {
	mu           sync.Mutex
	id           string
	name         string
	resolution   string
	connected    bool
	lastSeen     time.Time
	registeredAt time.Time
	client       Client // nil while disconnected
	delivered    int64  // highest layout version pushed or reconciled
}

// ScreenRegistry is the authoritative table of screens. Entries are
// never evicted automatically; only Remove deletes one.
type ScreenRegistry struct {
	mu      sync.RWMutex
	screens map[string]*screenEntry
	order   []string // insertion order for stable List output
}

func NewScreenRegistry() *ScreenRegistry {
	return &ScreenRegistry{screens: make(map[string]*screenEntry)}
}

// Attach binds a connection handle to a screen id, creating the entry
// on first contact. When the screen already has a live handle, the new
// one supersedes it and the old handle is returned for closing.
func (r *ScreenRegistry) Attach(screenID, name, resolution string, client Client) (isNew bool, superseded Client) {
	now := time.Now()

	r.mu.Lock()
	entry, ok := r.screens[screenID]
	if !ok {
		entry = &screenEntry{
			id:           screenID,
			name:         defaultScreenName(screenID),
			registeredAt: now,
		}
		r.screens[screenID] = entry
		r.order = append(r.order, screenID)
	}
	r.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.client != nil && entry.client != client {
		superseded = entry.client
	}
	entry.client = client
	entry.connected = true
	entry.lastSeen = now
	if name != "" {
		entry.name = name
	}
	if resolution != "" {
		entry.resolution = resolution
	}
	return !ok, superseded
}

// Heartbeat refreshes the liveness timestamp. Unknown ids are an error
// the caller logs and drops.
func (r *ScreenRegistry) Heartbeat(screenID string) error {
	entry, ok := r.entry(screenID)
	if !ok {
		return fmt.Errorf("heartbeat from %s: %w", screenID, ErrUnknownScreen)
	}

	entry.mu.Lock()
	entry.lastSeen = time.Now()
	entry.mu.Unlock()
	return nil
}

// MarkDisconnected flips the screen to Disconnected, keeping all other
// metadata. When client is non-nil the transition only happens if that
// handle is still the active one, so a superseded connection closing
// late cannot knock out its replacement. Returns whether the state
// actually changed.
func (r *ScreenRegistry) MarkDisconnected(screenID string, client Client) bool {
	entry, ok := r.entry(screenID)
	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if client != nil && entry.client != client {
		return false
	}
	if !entry.connected {
		return false
	}
	entry.connected = false
	entry.client = nil
	entry.lastSeen = time.Now()
	return true
}

// MarkDisconnectedClient resolves the screen attached to the given
// handle and disconnects it. Used by transport close callbacks, which
// only know the connection.
func (r *ScreenRegistry) MarkDisconnectedClient(client Client) (string, bool) {
	r.mu.RLock()
	entries := make([]*screenEntry, 0, len(r.screens))
	for _, entry := range r.screens {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	for _, entry := range entries {
		entry.mu.Lock()
		match := entry.client == client && client != nil
		entry.mu.Unlock()
		if match {
			return entry.id, r.MarkDisconnected(entry.id, client)
		}
	}
	return "", false
}

// Rename updates the display name.
func (r *ScreenRegistry) Rename(screenID, name string) error {
	entry, ok := r.entry(screenID)
	if !ok {
		return fmt.Errorf("rename %s: %w", screenID, ErrUnknownScreen)
	}

	entry.mu.Lock()
	entry.name = name
	entry.mu.Unlock()
	return nil
}

// Get returns a snapshot of one screen.
func (r *ScreenRegistry) Get(screenID string) (Screen, bool) {
	entry, ok := r.entry(screenID)
	if !ok {
		return Screen{}, false
	}
	return entry.snapshot(), true
}

// List returns snapshots of every screen in insertion order.
func (r *ScreenRegistry) List() []Screen {
	r.mu.RLock()
	entries := make([]*screenEntry, 0, len(r.order))
	for _, id := range r.order {
		if entry, ok := r.screens[id]; ok {
			entries = append(entries, entry)
		}
	}
	r.mu.RUnlock()

	screens := make([]Screen, 0, len(entries))
	for _, entry := range entries {
		screens = append(screens, entry.snapshot())
	}
	return screens
}

// Remove deletes a screen entry. Idempotent; returns the live handle
// (if any) so the caller can close it.
func (r *ScreenRegistry) Remove(screenID string) (Client, bool) {
	r.mu.Lock()
	entry, ok := r.screens[screenID]
	if ok {
		delete(r.screens, screenID)
		for i, id := range r.order {
			if id == screenID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()
	if !ok {
		return nil, false
	}

	entry.mu.Lock()
	client := entry.client
	entry.client = nil
	entry.connected = false
	entry.mu.Unlock()
	return client, true
}

// expired is one screen transitioned to Disconnected by a sweep.
type expired struct {
	id     string
	client Client
}

// expire disconnects every Connected screen whose last heartbeat is
// older than cutoff. The check and the transition happen under the
// entry lock, so a heartbeat racing the sweep wins cleanly.
func (r *ScreenRegistry) expire(cutoff time.Time) []expired {
	r.mu.RLock()
	entries := make([]*screenEntry, 0, len(r.screens))
	for _, entry := range r.screens {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	var out []expired
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.connected && entry.lastSeen.Before(cutoff) {
			entry.connected = false
			client := entry.client
			entry.client = nil
			out = append(out, expired{id: entry.id, client: client})
		}
		entry.mu.Unlock()
	}
	return out
}

// push delivers a message to the screen's live handle, serialized per
// screen. Versions at or below the last delivered one are rejected
// (allowEqual lets a refresh resend the current version). On success
// the delivered watermark advances.
func (r *ScreenRegistry) push(screenID string, version int64, allowEqual bool, msg proto.Message) error {
	entry, ok := r.entry(screenID)
	if !ok {
		return fmt.Errorf("push to %s: %w", screenID, ErrUnknownScreen)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.connected || entry.client == nil {
		return fmt.Errorf("push to %s: %w", screenID, errNotConnected)
	}
	if version < entry.delivered || (version == entry.delivered && !allowEqual) {
		return fmt.Errorf("push v%d to %s at v%d: %w", version, screenID, entry.delivered, errStaleVersion)
	}

	if err := entry.client.Send(msg); err != nil {
		return fmt.Errorf("push to %s: %w", screenID, err)
	}
	entry.delivered = version
	return nil
}

// pushRefresh delivers a bare refresh message. It carries no layout, so
// the delivered watermark is left alone.
func (r *ScreenRegistry) pushRefresh(screenID string, msg proto.Message) error {
	entry, ok := r.entry(screenID)
	if !ok {
		return fmt.Errorf("refresh %s: %w", screenID, ErrUnknownScreen)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.connected || entry.client == nil {
		return fmt.Errorf("refresh %s: %w", screenID, errNotConnected)
	}
	if err := entry.client.Send(msg); err != nil {
		return fmt.Errorf("refresh %s: %w", screenID, err)
	}
	return nil
}

func (r *ScreenRegistry) entry(screenID string) (*screenEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.screens[screenID]
	return entry, ok
}

func (e *screenEntry) snapshot() Screen {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Screen{
		ID:           e.id,
		Name:         e.name,
		Resolution:   e.resolution,
		Connected:    e.connected,
		LastSeen:     e.lastSeen,
		RegisteredAt: e.registeredAt,
		Version:      e.delivered,
	}
}

func defaultScreenName(screenID string) string {
	short := screenID
	if len(short) > 8 {
		short = short[:8]
	}
	return "Screen " + short
}
