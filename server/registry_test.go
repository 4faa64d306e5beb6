package server

import (
	"errors"
	"testing"
	"time"

	"signaged/proto"
)

func TestScreenRegistry_Attach_New(t *testing.T) {
	registry := NewScreenRegistry()
	client := newMockClient("conn-1")

	isNew, superseded := registry.Attach("screen-1", "", "1920x1080", client)

	if !isNew {
		t.Error("Expected first attach to report a new screen")
	}
	if superseded != nil {
		t.Error("Expected no superseded client on first attach")
	}

	screen, ok := registry.Get("screen-1")
	if !ok {
		t.Fatal("Expected screen to exist after attach")
	}
	if !screen.Connected {
		t.Error("Expected screen to be Connected")
	}
	if screen.Name != "Screen screen-1" {
		t.Errorf("Expected default name, got %q", screen.Name)
	}
	if screen.Resolution != "1920x1080" {
		t.Errorf("Expected resolution to be recorded, got %q", screen.Resolution)
	}
}

func TestScreenRegistry_Attach_Supersedes(t *testing.T) {
	registry := NewScreenRegistry()
	first := newMockClient("conn-1")
	second := newMockClient("conn-2")

	registry.Attach("screen-1", "", "", first)
	isNew, superseded := registry.Attach("screen-1", "", "", second)

	if isNew {
		t.Error("Expected reconnect not to report a new screen")
	}
	if superseded != first {
		t.Error("Expected the first handle to be superseded")
	}

	// The superseded handle's late close must not disconnect the
	// replacement.
	if registry.MarkDisconnected("screen-1", first) {
		t.Error("Expected superseded handle to be ignored")
	}
	screen, _ := registry.Get("screen-1")
	if !screen.Connected {
		t.Error("Expected screen to stay Connected")
	}
}

func TestScreenRegistry_Heartbeat(t *testing.T) {
	registry := NewScreenRegistry()
	registry.Attach("screen-1", "", "", newMockClient("conn-1"))

	before, _ := registry.Get("screen-1")
	time.Sleep(5 * time.Millisecond)
	if err := registry.Heartbeat("screen-1"); err != nil {
		t.Fatalf("Heartbeat failed: %v", err)
	}

	after, _ := registry.Get("screen-1")
	if !after.LastSeen.After(before.LastSeen) {
		t.Error("Expected heartbeat to advance LastSeen")
	}
}

func TestScreenRegistry_Heartbeat_Unknown(t *testing.T) {
	registry := NewScreenRegistry()

	err := registry.Heartbeat("nonexistent")
	if !errors.Is(err, ErrUnknownScreen) {
		t.Errorf("Expected ErrUnknownScreen, got %v", err)
	}
}

func TestScreenRegistry_MarkDisconnected_Idempotent(t *testing.T) {
	registry := NewScreenRegistry()
	registry.Attach("screen-1", "", "", newMockClient("conn-1"))

	if !registry.MarkDisconnected("screen-1", nil) {
		t.Error("Expected first disconnect to report a change")
	}
	if registry.MarkDisconnected("screen-1", nil) {
		t.Error("Expected second disconnect to be a no-op")
	}

	// Metadata survives disconnection.
	screen, ok := registry.Get("screen-1")
	if !ok {
		t.Fatal("Expected screen to still exist")
	}
	if screen.Connected {
		t.Error("Expected screen to be Disconnected")
	}
}

func TestScreenRegistry_List_InsertionOrder(t *testing.T) {
	registry := NewScreenRegistry()
	registry.Attach("b", "", "", newMockClient("conn-1"))
	registry.Attach("a", "", "", newMockClient("conn-2"))
	registry.Attach("c", "", "", newMockClient("conn-3"))

	screens := registry.List()
	if len(screens) != 3 {
		t.Fatalf("Expected 3 screens, got %d", len(screens))
	}
	for i, want := range []string{"b", "a", "c"} {
		if screens[i].ID != want {
			t.Errorf("Expected screens[%d] = %s, got %s", i, want, screens[i].ID)
		}
	}
}

func TestScreenRegistry_Remove(t *testing.T) {
	registry := NewScreenRegistry()
	client := newMockClient("conn-1")
	registry.Attach("screen-1", "", "", client)

	handle, existed := registry.Remove("screen-1")
	if !existed {
		t.Error("Expected remove to find the screen")
	}
	if handle != client {
		t.Error("Expected remove to return the live handle")
	}

	if _, ok := registry.Get("screen-1"); ok {
		t.Error("Expected screen to be gone")
	}

	// Idempotent.
	if _, existed := registry.Remove("screen-1"); existed {
		t.Error("Expected second remove to be a no-op")
	}
}

func TestScreenRegistry_Push_StaleVersionRejected(t *testing.T) {
	registry := NewScreenRegistry()
	client := newMockClient("conn-1")
	registry.Attach("screen-1", "", "", client)

	msg, _ := proto.NewMessage(proto.TypeLayoutUpdate, proto.LayoutUpdatePayload{Version: 2})
	if err := registry.push("screen-1", 2, false, msg); err != nil {
		t.Fatalf("Expected push of version 2 to succeed: %v", err)
	}

	stale, _ := proto.NewMessage(proto.TypeLayoutUpdate, proto.LayoutUpdatePayload{Version: 1})
	if err := registry.push("screen-1", 1, false, stale); !errors.Is(err, errStaleVersion) {
		t.Errorf("Expected stale version error, got %v", err)
	}
	if err := registry.push("screen-1", 2, false, msg); !errors.Is(err, errStaleVersion) {
		t.Errorf("Expected equal version to be rejected without allowEqual, got %v", err)
	}
	if err := registry.push("screen-1", 2, true, msg); err != nil {
		t.Errorf("Expected equal version with allowEqual to succeed, got %v", err)
	}

	if got := len(client.sentMessages()); got != 2 {
		t.Errorf("Expected 2 delivered messages, got %d", got)
	}
}

func TestScreenRegistry_Push_Disconnected(t *testing.T) {
	registry := NewScreenRegistry()
	registry.Attach("screen-1", "", "", newMockClient("conn-1"))
	registry.MarkDisconnected("screen-1", nil)

	msg, _ := proto.NewMessage(proto.TypeLayoutUpdate, proto.LayoutUpdatePayload{Version: 1})
	if err := registry.push("screen-1", 1, false, msg); !errors.Is(err, errNotConnected) {
		t.Errorf("Expected not-connected error, got %v", err)
	}
}

func TestScreenRegistry_Expire(t *testing.T) {
	registry := NewScreenRegistry()
	client := newMockClient("conn-1")
	registry.Attach("screen-1", "", "", client)

	entry, _ := registry.entry("screen-1")
	entry.mu.Lock()
	entry.lastSeen = time.Now().Add(-time.Minute)
	entry.mu.Unlock()

	expired := registry.expire(time.Now().Add(-30 * time.Second))
	if len(expired) != 1 || expired[0].id != "screen-1" {
		t.Fatalf("Expected screen-1 to expire, got %v", expired)
	}

	// A second sweep over the same silence finds nothing.
	if again := registry.expire(time.Now().Add(-30 * time.Second)); len(again) != 0 {
		t.Errorf("Expected no screens on second sweep, got %d", len(again))
	}
}
