package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"signaged/config"
	"signaged/server"
	"signaged/store"
)

func main() {
	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	server.SetupLogger(cfg.LogLevel)

	ctx := context.Background()

	// Layout store: Redis when configured, in-memory otherwise.
	var layouts store.LayoutStore
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		layouts = redisStore
		slog.Info("Using redis layout store")
	} else {
		layouts = store.NewMemoryStore()
		slog.Info("Using in-memory layout store")
	}

	var mcpServer *server.MCPServer
	if cfg.MCP {
		mcpServer = server.NewMCPServer()
	}

	signageServer := server.NewSignageServer(server.SignageServerOptions{
		Store:             layouts,
		MCPServer:         mcpServer,
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatTimeout:  cfg.HeartbeatTimeout,
		Context:           ctx,
	})

	wsTransport := server.NewWSTransport(cfg.WSAddr)
	wsTransport.SetName("Screen WebSocket")
	signageServer.RegisterTransport(wsTransport)

	tcpTransport := server.NewTCPTransport(cfg.TCPAddr)
	tcpTransport.SetName("Screen TCP")
	signageServer.RegisterTransport(tcpTransport)

	if cfg.MDNS {
		advertiser, err := server.AdvertiseMDNS("signaged", addrPort(cfg.WSAddr), addrPort(cfg.TCPAddr))
		if err != nil {
			slog.Warn("mDNS advertising disabled", "error", err)
		} else {
			defer advertiser.Shutdown()
		}
	}

	webServer := server.NewWebServer(cfg.HTTPAddr, signageServer.Engine(), signageServer.Commands(), signageServer.Events())
	go func() {
		if err := webServer.Start(); err != nil {
			slog.Error("Dashboard API error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		webServer.Shutdown(shutdownCtx)
	}()

	if err := signageServer.Start(); err != nil {
		slog.Error("Error running signage server", "error", err.Error())
	}
}

func addrPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
