package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"signaged/proto"
)

// mockClient implements Client for registry and engine testing.
type mockClient struct {
	metadata ConnMetadata

	mu       sync.Mutex
	sent     []proto.Message
	failSend bool
	closed   bool
}

func newMockClient(id string) *mockClient {
	return &mockClient{
		metadata: ConnMetadata{
			Id:          id,
			RemoteAddr:  "test",
			ConnectedAt: time.Now(),
		},
	}
}

func (c *mockClient) Send(msg proto.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return fmt.Errorf("send failed")
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *mockClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *mockClient) Meta() *ConnMetadata {
	return &c.metadata
}

func (c *mockClient) sentMessages() []proto.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]proto.Message, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *mockClient) lastSent(t *testing.T) proto.Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		t.Fatal("Expected at least one sent message")
	}
	return c.sent[len(c.sent)-1]
}

func (c *mockClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func decodePayload(t *testing.T, msg proto.Message, v any) {
	t.Helper()
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		t.Fatalf("Failed to decode %s payload: %v", msg.Type, err)
	}
}

// registerScreen drives the full register handshake for a mock client
// and returns the id the server settled on.
func registerScreen(t *testing.T, engine *SyncEngine, client *mockClient, screenID string) string {
	t.Helper()
	if err := engine.HandleConnect(client); err != nil {
		t.Fatalf("HandleConnect failed: %v", err)
	}

	msg, err := proto.NewMessage(proto.TypeRegister, proto.RegisterPayload{ScreenID: screenID})
	if err != nil {
		t.Fatalf("Failed to build register message: %v", err)
	}
	msg.Sender = client.metadata.Id
	engine.Handle(msg)

	reply := client.lastSent(t)
	if reply.Type != proto.TypeRegistered {
		t.Fatalf("Expected registered reply, got %s", reply.Type)
	}
	var p proto.RegisteredPayload
	decodePayload(t, reply, &p)
	return p.ScreenID
}
