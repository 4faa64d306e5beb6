package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"signaged/client"
	"signaged/proto"
)

func main() {
	var (
		addr      = flag.String("server", "", "server address (e.g. ws://host:8080); empty discovers via mDNS")
		screenID  = flag.String("id", "", "screen id; empty lets the server assign one")
		name      = flag.String("name", "", "display name reported to the dashboard")
		useTCP    = flag.Bool("tcp", false, "use the TCP transport instead of WebSocket")
		cachePath = flag.String("cache", defaultCachePath(), "path of the last-known-good layout cache")
	)
	flag.Parse()

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))

	serverAddr := *addr
	if serverAddr == "" {
		serverAddr = discover(*useTCP)
	}

	transportFactory := func() client.Transport {
		if *useTCP {
			return client.NewTCPTransport()
		}
		return client.NewWebSocketTransport()
	}

	screen, err := client.NewScreen(client.ScreenOptions{
		ScreenID:   *screenID,
		Name:       *name,
		Resolution: "1920x1080",
		Transport:  transportFactory,
		Cache:      client.NewLayoutCache(*cachePath),
		Render:     renderToLog,
	})
	if err != nil {
		slog.Error("Failed to create screen", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := screen.Run(ctx, serverAddr); err != nil && err != context.Canceled {
		slog.Error("Screen stopped", "error", err)
	}
}

// renderToLog is the headless render surface: it reports what a real
// renderer would draw. It accepts anything it is given and never fails.
func renderToLog(layout proto.Layout, version int64) {
	types := make([]string, 0, len(layout.Widgets))
	for _, w := range layout.Widgets {
		types = append(types, w.Type)
	}
	slog.Info("Rendering layout", "version", version, "widgets", types, "background", layout.Background)
}

func discover(useTCP bool) string {
	var (
		svc *client.DiscoveredService
		err error
	)
	if useTCP {
		svc, err = client.DiscoverTCPService(5 * time.Second)
	} else {
		svc, err = client.DiscoverWebSocketService(5 * time.Second)
	}
	if err != nil {
		slog.Error("No server address given and discovery failed", "error", err)
		os.Exit(1)
	}
	if useTCP {
		return fmt.Sprintf("%s:%d", svc.Address, svc.Port)
	}
	return fmt.Sprintf("ws://%s:%d/", svc.Address, svc.Port)
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "signaged", "layout.json")
}
