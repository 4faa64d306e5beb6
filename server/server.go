package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signaged/store"
)

type SignageServerOptions struct {
	Store             store.LayoutStore // Required
	Registry          *ScreenRegistry   // Optional (defaults to new registry if nil)
	Events            *EventBroker      // Optional (defaults to new broker if nil)
	MCPServer         *MCPServer        // Optional MCP control surface to run alongside
	HeartbeatInterval time.Duration     // Optional (defaults to 5s)
	HeartbeatTimeout  time.Duration     // Optional (defaults to 15s)
	Context           context.Context   // Optional (defaults to context.Background())
}

// SignageServer wires the registry, sync engine, command channel, and
// heartbeat supervisor together and owns transport lifecycle.
type SignageServer struct {
	options    SignageServerOptions
	engine     *SyncEngine
	commands   *CommandChannel
	supervisor *HeartbeatSupervisor
	transports []Transport
}

func NewSignageServer(opts SignageServerOptions) *SignageServer {
	if opts.Registry == nil {
		opts.Registry = NewScreenRegistry()
	}
	if opts.Events == nil {
		opts.Events = NewEventBroker()
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = 5 * time.Second
	}
	if opts.HeartbeatTimeout == 0 {
		opts.HeartbeatTimeout = 15 * time.Second
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	engine := NewSyncEngine(opts.Registry, opts.Store, opts.Events)
	commands := NewCommandChannel(engine)
	supervisor := NewHeartbeatSupervisor(opts.Registry, opts.Events, opts.HeartbeatInterval, opts.HeartbeatTimeout)

	s := &SignageServer{
		options:    opts,
		engine:     engine,
		commands:   commands,
		supervisor: supervisor,
	}
	if opts.MCPServer != nil {
		opts.MCPServer.RegisterTools(engine, commands)
	}
	return s
}

func (s *SignageServer) RegisterTransport(t Transport) {
	s.engine.RegisterTransport(t)
	s.transports = append(s.transports, t)
}

func (s *SignageServer) Engine() *SyncEngine       { return s.engine }
func (s *SignageServer) Commands() *CommandChannel { return s.commands }
func (s *SignageServer) Events() *EventBroker      { return s.options.Events }
func (s *SignageServer) Transports() []Transport   { return s.transports }
func (s *SignageServer) Registry() *ScreenRegistry { return s.options.Registry }

// SetupLogger installs the process-wide structured logger. Logs go to
// stderr so an attached stdio MCP session keeps stdout to itself.
func SetupLogger(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// Start runs the command channel, heartbeat supervisor, and all
// registered transports until an interrupt arrives, then shuts the
// transports down.
func (s *SignageServer) Start() error {
	ctx, stop := signal.NotifyContext(s.options.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.commands.Run(ctx)
	go s.supervisor.Run(ctx)
	if s.options.MCPServer != nil {
		go s.options.MCPServer.Start()
	}
	for _, t := range s.transports {
		go t.Start()
	}

	<-ctx.Done()
	slog.Info("Shutting down transports and server")

	for _, t := range s.transports {
		if err := t.Shutdown(); err != nil {
			slog.Error("There was an error when shutting down a transport", "error", err.Error())
		}
	}
	return nil
}
