package client

import (
	"encoding/json"

	"github.com/google/uuid"

	"signaged/proto"
)

// fallbackLayout is what a screen renders when it has neither a cached
// layout nor an assigned one: a single clock on a dark background, so
// the panel is never blank.
func fallbackLayout() proto.Layout {
	settings, _ := json.Marshal(map[string]any{
		"format":   "24h",
		"showDate": true,
		"timezone": "local",
	})
	return proto.Layout{
		Widgets: []proto.Widget{
			{
				ID:       uuid.NewString(),
				Type:     "clock",
				X:        50,
				Y:        50,
				Width:    300,
				Height:   150,
				Settings: settings,
			},
		},
		Background: "#1a1a2e",
	}
}
