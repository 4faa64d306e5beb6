package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"signaged/proto"
)

// RenderFunc draws a layout. It is total over its inputs: the screen
// hands it only a known-good layout, never an error.
type RenderFunc func(layout proto.Layout, version int64)

type ScreenOptions struct {
	ScreenID       string // Optional; empty asks the server to assign one
	Name           string
	Resolution     string
	Transport      func() Transport // Dialed fresh for every connection attempt
	Cache          *LayoutCache     // Optional
	Render         RenderFunc       // Required
	HeartbeatEvery time.Duration    // Optional (defaults to 5s)
}

// Screen is a display client. It registers with the server, heartbeats,
// applies pushed layouts, and across any failure keeps rendering the
// last-known-good layout from its cache.
type Screen struct {
	opts ScreenOptions

	mu       sync.Mutex
	screenID string
	version  int64
	layout   proto.Layout
	rendered bool
}

func NewScreen(opts ScreenOptions) (*Screen, error) {
	if opts.Render == nil {
		return nil, fmt.Errorf("a render function is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("a transport factory is required")
	}
	if opts.HeartbeatEvery == 0 {
		opts.HeartbeatEvery = 5 * time.Second
	}
	return &Screen{opts: opts, screenID: opts.ScreenID}, nil
}

// Run renders the best layout available immediately, then keeps a
// connection to the server for as long as the context lives,
// reconnecting with capped backoff. It returns only on context
// cancellation.
func (s *Screen) Run(ctx context.Context, addr string) error {
	s.renderInitial()

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if err := s.session(ctx, addr); err != nil {
			slog.Warn("Session ended, keeping last layout", "error", err, "retry_in", backoff)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// renderInitial shows the cached layout, or the built-in fallback when
// there is no usable cache. The viewer sees content before the first
// byte reaches the server.
func (s *Screen) renderInitial() {
	if s.opts.Cache != nil {
		if cached, ok := s.opts.Cache.Load(); ok {
			if s.screenID == "" {
				s.screenID = cached.ScreenID
			}
			s.apply(cached.Layout, cached.Version, false)
			return
		}
	}
	s.apply(fallbackLayout(), 0, false)
}

// session runs one connection: register, heartbeat loop, read loop.
func (s *Screen) session(ctx context.Context, addr string) error {
	transport := s.opts.Transport()
	if err := transport.Connect(addr); err != nil {
		return err
	}
	defer transport.Close()

	// Unblock the read loop on shutdown.
	stop := context.AfterFunc(ctx, func() { transport.Close() })
	defer stop()

	register, err := proto.NewMessage(proto.TypeRegister, proto.RegisterPayload{
		ScreenID:   s.currentID(),
		Name:       s.opts.Name,
		Resolution: s.opts.Resolution,
	})
	if err != nil {
		return err
	}
	if err := transport.Send(register); err != nil {
		return err
	}

	// The registered reply is the reconciliation point: it carries the
	// authoritative layout, which we adopt unless we already rendered
	// something newer.
	if err := s.awaitRegistered(transport); err != nil {
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.heartbeatLoop(sessionCtx, transport)

	return s.readLoop(transport)
}

func (s *Screen) awaitRegistered(transport Transport) error {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		msg, err := transport.Read()
		if err != nil {
			return err
		}
		if msg.Type != proto.TypeRegistered {
			slog.Warn("Expected registered reply", "type", msg.Type)
			continue
		}

		var p proto.RegisteredPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid registered payload: %w", err)
		}

		s.mu.Lock()
		s.screenID = p.ScreenID
		s.mu.Unlock()

		slog.Info("Registered with server", "id", p.ScreenID, "version", p.Version)
		s.apply(p.Layout, p.Version, true)
		return nil
	}
	return fmt.Errorf("timeout waiting for registered reply")
}

func (s *Screen) heartbeatLoop(ctx context.Context, transport Transport) {
	ticker := time.NewTicker(s.opts.HeartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb, err := proto.NewMessage(proto.TypeHeartbeat, proto.HeartbeatPayload{ScreenID: s.currentID()})
			if err != nil {
				continue
			}
			if err := transport.Send(hb); err != nil {
				slog.Debug("Heartbeat send failed", "error", err)
				return
			}
		}
	}
}

func (s *Screen) readLoop(transport Transport) error {
	for {
		msg, err := transport.Read()
		if err != nil {
			return err
		}

		switch msg.Type {
		case proto.TypeLayoutUpdate:
			var p proto.LayoutUpdatePayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				slog.Warn("Invalid layout_update payload, keeping last layout", "error", err)
				continue
			}
			s.apply(p.Layout, p.Version, true)

		case proto.TypeRefresh:
			s.rerender()

		default:
			slog.Debug("Ignoring message", "type", msg.Type)
		}
	}
}

// apply renders a layout if its version is not older than what is
// already on screen. Equal versions re-render (refresh, reconcile);
// lower versions are dropped so the screen never regresses.
func (s *Screen) apply(layout proto.Layout, version int64, persist bool) {
	s.mu.Lock()
	if s.rendered && version < s.version {
		slog.Debug("Dropping stale layout", "version", version, "current", s.version)
		s.mu.Unlock()
		return
	}
	if layout.Empty() && version == 0 {
		// Nothing assigned yet: show the fallback rather than a blank
		// panel.
		layout = fallbackLayout()
	}
	s.layout = layout
	s.version = version
	s.rendered = true
	screenID := s.screenID
	s.mu.Unlock()

	s.opts.Render(layout, version)

	if persist && s.opts.Cache != nil {
		if err := s.opts.Cache.Store(screenID, layout, version); err != nil {
			slog.Warn("Failed to persist layout cache", "error", err)
		}
	}
}

func (s *Screen) rerender() {
	s.mu.Lock()
	layout := s.layout
	version := s.version
	s.mu.Unlock()
	s.opts.Render(layout, version)
}

func (s *Screen) currentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screenID
}

// ID returns the screen's identifier, which may have been assigned by
// the server during registration.
func (s *Screen) ID() string {
	return s.currentID()
}

// Version returns the version of the layout currently rendered.
func (s *Screen) Version() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}
