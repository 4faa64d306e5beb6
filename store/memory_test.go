package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signaged/proto"
)

func sampleLayout(text string) proto.Layout {
	settings, _ := json.Marshal(map[string]string{"content": text})
	return proto.Layout{
		Widgets: []proto.Widget{
			{ID: "w1", Type: "text", Width: 100, Height: 50, Settings: settings},
		},
	}
}

func TestMemoryStore_PutBumpsVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	v1, err := s.Put(ctx, "screen-1", sampleLayout("a"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v1)

	v2, err := s.Put(ctx, "screen-1", sampleLayout("b"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2)

	// Versions are per screen.
	other, err := s.Put(ctx, "screen-2", sampleLayout("c"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}

func TestMemoryStore_GetRoundtrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	layout := sampleLayout("hello")
	_, err := s.Put(ctx, "screen-1", layout)
	require.NoError(t, err)

	rec, err := s.Get(ctx, "screen-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, layout.Checksum(), rec.Checksum)
	require.Len(t, rec.Layout.Widgets, 1)
	assert.Equal(t, "w1", rec.Layout.Widgets[0].ID)
	assert.False(t, rec.UpdatedAt.IsZero())
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Put(ctx, "screen-1", sampleLayout("a"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "screen-1"))
	_, err = s.Get(ctx, "screen-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is not an error.
	assert.NoError(t, s.Delete(ctx, "screen-1"))
}

func TestMemoryStore_ConcurrentPuts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Put(ctx, "screen-1", sampleLayout("race"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := s.Get(ctx, "screen-1")
	require.NoError(t, err)
	assert.Equal(t, int64(writers), rec.Version)
}
