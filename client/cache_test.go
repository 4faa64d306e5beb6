package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signaged/proto"
)

func TestLayoutCache_Roundtrip(t *testing.T) {
	cache := NewLayoutCache(filepath.Join(t.TempDir(), "nested", "layout.json"))

	layout := proto.Layout{
		Widgets:    []proto.Widget{{ID: "w1", Type: "clock", Width: 300, Height: 150}},
		Background: "#1a1a2e",
	}
	require.NoError(t, cache.Store("screen-1", layout, 7))

	cached, ok := cache.Load()
	require.True(t, ok)
	assert.Equal(t, "screen-1", cached.ScreenID)
	assert.Equal(t, int64(7), cached.Version)
	require.Len(t, cached.Layout.Widgets, 1)
	assert.Equal(t, "clock", cached.Layout.Widgets[0].Type)
}

func TestLayoutCache_Missing(t *testing.T) {
	cache := NewLayoutCache(filepath.Join(t.TempDir(), "layout.json"))

	_, ok := cache.Load()
	assert.False(t, ok)
}

func TestLayoutCache_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	_, ok := NewLayoutCache(path).Load()
	assert.False(t, ok)
}

func TestLayoutCache_StoreOverwrites(t *testing.T) {
	cache := NewLayoutCache(filepath.Join(t.TempDir(), "layout.json"))

	require.NoError(t, cache.Store("screen-1", proto.Layout{}, 1))
	require.NoError(t, cache.Store("screen-1", proto.Layout{Background: "#fff"}, 2))

	cached, ok := cache.Load()
	require.True(t, ok)
	assert.Equal(t, int64(2), cached.Version)
	assert.Equal(t, "#fff", cached.Layout.Background)
}
