package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"signaged/proto"
)

// cachedLayout is the on-disk last-known-good record.
type cachedLayout struct {
	ScreenID string       `json:"screen_id"`
	Layout   proto.Layout `json:"layout"`
	Version  int64        `json:"version"`
}

// LayoutCache persists the last applied layout so the screen keeps
// rendering across restarts and disconnects.
type LayoutCache struct {
	path string
}

func NewLayoutCache(path string) *LayoutCache {
	return &LayoutCache{path: path}
}

// Load reads the cached layout. A missing or corrupt cache is not an
// error condition; ok is simply false and the caller falls back.
func (c *LayoutCache) Load() (cachedLayout, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return cachedLayout{}, false
	}
	var cached cachedLayout
	if err := json.Unmarshal(data, &cached); err != nil {
		return cachedLayout{}, false
	}
	return cached, true
}

// Store writes the layout atomically via a temp file rename, so a crash
// mid-write never corrupts the last-known-good copy.
func (c *LayoutCache) Store(screenID string, layout proto.Layout, version int64) error {
	data, err := json.Marshal(cachedLayout{
		ScreenID: screenID,
		Layout:   layout,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal layout cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write layout cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace layout cache: %w", err)
	}
	return nil
}
