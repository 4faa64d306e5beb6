package server

import (
	"context"
	"errors"
	"testing"

	"signaged/proto"
	"signaged/store"
)

func startCommands(t *testing.T, engine *SyncEngine) *CommandChannel {
	t.Helper()
	commands := NewCommandChannel(engine)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go commands.Run(ctx)
	return commands
}

func TestCommandChannel_Apply(t *testing.T) {
	engine := newTestEngine()
	commands := startCommands(t, engine)

	client := newMockClient("conn-1")
	screenID := registerScreen(t, engine, client, "")

	if err := commands.Apply(context.Background(), screenID, testLayout("v1")); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	rec, err := engine.GetLayout(context.Background(), screenID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Version != 1 {
		t.Errorf("Expected version 1 after apply, got %d", rec.Version)
	}
}

func TestCommandChannel_Apply_UnknownScreen(t *testing.T) {
	engine := newTestEngine()
	commands := startCommands(t, engine)

	err := commands.Apply(context.Background(), "nonexistent", testLayout("x"))
	if !errors.Is(err, ErrUnknownScreen) {
		t.Errorf("Expected ErrUnknownScreen, got %v", err)
	}
}

// failingStore simulates a backing store outage.
type failingStore struct {
	store.LayoutStore
	err error
}

func (s failingStore) Put(ctx context.Context, screenID string, layout proto.Layout) (int64, error) {
	return 0, s.err
}

func TestCommandChannel_Apply_StoreFailureIsSynchronous(t *testing.T) {
	storeErr := errors.New("store unavailable")
	engine := NewSyncEngine(NewScreenRegistry(), failingStore{LayoutStore: store.NewMemoryStore(), err: storeErr}, NewEventBroker())
	commands := startCommands(t, engine)

	client := newMockClient("conn-1")
	screenID := registerScreen(t, engine, client, "")

	err := commands.Apply(context.Background(), screenID, testLayout("v1"))
	if !errors.Is(err, storeErr) {
		t.Errorf("Expected the store failure back on the command, got %v", err)
	}
}

func TestCommandChannel_Submit_ContextCancelled(t *testing.T) {
	engine := newTestEngine()
	commands := NewCommandChannel(engine) // no Run consumer

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The buffered channel accepts the command, but with no consumer
	// the reply never arrives; the caller's context unblocks it.
	err := commands.Refresh(ctx, TargetAll)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
