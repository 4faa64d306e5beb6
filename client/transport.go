// Package client implements a headless signage screen: it registers
// with the server, heartbeats, applies pushed layouts, and keeps
// rendering its last-known-good layout through any failure. No error
// ever reaches the render surface.
package client

import "signaged/proto"

type Transport interface {
	Connect(addr string) error
	Send(msg proto.Message) error
	Read() (proto.Message, error) // for one-at-a-time processing
	Close() error
}
