package server

import (
	"time"

	"github.com/google/uuid"

	"signaged/proto"
)

// Transport accepts screen connections and feeds decoded messages to
// the sync engine. A transport never interprets messages itself.
type Transport interface {
	Start() error
	OnMessage(func(proto.Message))
	OnConnect(func(Client) error)
	OnDisconnect(func(Client))
	Shutdown() error
	Meta() TransportMetadata
	SetName(name string)
}

type TransportMetadata struct {
	Name       string // Human-friendly name, e.g. "Lobby WebSocket"
	Protocol   string // "tcp" or "websocket"
	Address    string // Bind address, e.g. "0.0.0.0:8080"
	MaxClients int    // Max allowed connections
	Connected  bool   // Whether the transport is currently bound
}

// Client is one live connection handle. The sync engine is the only
// component that pushes layout data through Send.
type Client interface {
	Send(proto.Message) error
	Close() error
	Meta() *ConnMetadata
}

// ConnMetadata identifies a connection, not a screen. A screen keeps
// its identity across many connections.
type ConnMetadata struct {
	Id          string
	RemoteAddr  string
	ConnectedAt time.Time
	Transport   Transport
}

func generateConnId(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
