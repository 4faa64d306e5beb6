package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"signaged/proto"
)

// SSEClient adapts an http.ResponseWriter into an event subscriber for
// the dashboard feed. It satisfies Client so the broker can treat it
// like any other connection.
type SSEClient struct {
	ConnMetadata
	ctx     context.Context
	writer  http.ResponseWriter
	flusher http.Flusher
	writeMu sync.Mutex
}

func NewSSEClient(ctx context.Context, w http.ResponseWriter, remoteAddr string) *SSEClient {
	flusher, _ := w.(http.Flusher)
	return &SSEClient{
		ctx:     ctx,
		writer:  w,
		flusher: flusher,
		ConnMetadata: ConnMetadata{
			Id:          generateConnId("sse"),
			RemoteAddr:  remoteAddr,
			ConnectedAt: time.Now(),
		},
	}
}

func (s *SSEClient) Send(msg proto.Message) error {
	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := fmt.Fprintf(s.writer, "event: %s\ndata: %s\n\n", msg.Type, msg.Payload); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Close is a no-op; the subscriber's lifetime is the request context.
func (s *SSEClient) Close() error {
	return nil
}

func (s *SSEClient) Meta() *ConnMetadata {
	return &s.ConnMetadata
}
