// Package store holds the durable layout records the sync engine treats
// as the source of truth. Implementations must bump versions atomically
// per screen so concurrent applies never hand out the same version.
package store

import (
	"context"
	"errors"
	"time"

	"signaged/proto"
)

// ErrNotFound is returned by Get for a screen with no stored layout.
var ErrNotFound = errors.New("layout not found")

// Record is one persisted layout. Version is monotonic per screen and
// starts at 1 on the first Put.
type Record struct {
	Layout    proto.Layout
	Version   int64
	Checksum  uint64
	UpdatedAt time.Time
}

// LayoutStore is the engine's only durable dependency. Put assigns the
// next version under a per-key mutation lock, so the second of two
// racing writers strictly supersedes the first.
type LayoutStore interface {
	Get(ctx context.Context, screenID string) (Record, error)
	Put(ctx context.Context, screenID string, layout proto.Layout) (int64, error)
	Delete(ctx context.Context, screenID string) error
}
