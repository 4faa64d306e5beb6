package proto

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"
)

// Widget is a single placement on a screen. The settings blob is opaque
// to the sync engine; only the renderer interprets it.
type Widget struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"` // e.g. "clock", "weather", "text", "image", "website"
	X        int             `json:"x"`
	Y        int             `json:"y"`
	Width    int             `json:"width"`
	Height   int             `json:"height"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// Layout is the ordered set of widgets a screen renders, always
// delivered as a whole document so a screen never observes a
// half-applied edit.
type Layout struct {
	Widgets    []Widget `json:"widgets"`
	Background string   `json:"background,omitempty"`
}

// Checksum hashes the canonical JSON encoding of the layout. Two
// layouts with the same checksum render identically.
func (l Layout) Checksum() uint64 {
	data, err := json.Marshal(l)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(data)
}

// Empty reports whether the layout has no widgets.
func (l Layout) Empty() bool {
	return len(l.Widgets) == 0
}
