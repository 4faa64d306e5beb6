package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"signaged/proto"
)

// WebServer exposes the dashboard control surface: list screens,
// read/write layouts, rename, remove, refresh, and a live event feed.
// Every mutation goes through the command channel so the operator gets
// a synchronous success-or-failure answer.
type WebServer struct {
	engine   *SyncEngine
	commands *CommandChannel
	events   *EventBroker
	server   *http.Server
}

func NewWebServer(addr string, engine *SyncEngine, commands *CommandChannel, events *EventBroker) *WebServer {
	s := &WebServer{
		engine:   engine,
		commands: commands,
		events:   events,
	}
	s.server = &http.Server{Addr: addr, Handler: s.routes()}
	return s
}

func (s *WebServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/screens", s.handleListScreens)
		r.Get("/screens/{id}", s.handleGetScreen)
		r.Put("/screens/{id}", s.handleRenameScreen)
		r.Delete("/screens/{id}", s.handleDeleteScreen)
		r.Get("/screens/{id}/layout", s.handleGetLayout)
		r.Put("/screens/{id}/layout", s.handlePutLayout)
		r.Post("/screens/{id}/refresh", s.handleRefresh)
		r.Put("/layouts", s.handleBroadcastLayout)
		r.Post("/refresh", s.handleBroadcastRefresh)
		r.Get("/events", s.handleEvents)
	})

	return r
}

func (s *WebServer) Start() error {
	slog.Info("Starting dashboard API", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *WebServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *WebServer) handleListScreens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ListScreens())
}

func (s *WebServer) handleGetScreen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	screen, ok := s.engine.GetScreen(id)
	if !ok {
		writeError(w, http.StatusNotFound, "screen not found")
		return
	}

	rec, err := s.engine.GetLayout(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "layout store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":         screen.ID,
		"name":       screen.Name,
		"connected":  screen.Connected,
		"last_seen":  screen.LastSeen,
		"resolution": screen.Resolution,
		"layout":     rec.Layout,
		"version":    rec.Version,
	})
}

func (s *WebServer) handleRenameScreen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := s.engine.RenameScreen(id, body.Name); err != nil {
		writeError(w, http.StatusNotFound, "screen not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *WebServer) handleDeleteScreen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.engine.GetScreen(id); !ok {
		writeError(w, http.StatusNotFound, "screen not found")
		return
	}

	if err := s.commands.Remove(r.Context(), id); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *WebServer) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.engine.GetLayout(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "layout store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"layout":  rec.Layout,
		"version": rec.Version,
	})
}

func (s *WebServer) handlePutLayout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var layout proto.Layout
	if err := json.NewDecoder(r.Body).Decode(&layout); err != nil {
		writeError(w, http.StatusBadRequest, "invalid layout document")
		return
	}

	if err := s.commands.Apply(r.Context(), id, layout); err != nil {
		if errors.Is(err, ErrUnknownScreen) {
			writeError(w, http.StatusNotFound, "screen not found")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *WebServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.commands.Refresh(r.Context(), id); err != nil {
		if errors.Is(err, ErrUnknownScreen) {
			writeError(w, http.StatusNotFound, "screen not found")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *WebServer) handleBroadcastLayout(w http.ResponseWriter, r *http.Request) {
	var layout proto.Layout
	if err := json.NewDecoder(r.Body).Decode(&layout); err != nil {
		writeError(w, http.StatusBadRequest, "invalid layout document")
		return
	}

	if err := s.commands.Apply(r.Context(), TargetAll, layout); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *WebServer) handleBroadcastRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.commands.Refresh(r.Context(), TargetAll); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleEvents streams registry and layout events to the dashboard as
// server-sent events until the client goes away.
func (s *WebServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	client := NewSSEClient(r.Context(), w, r.RemoteAddr)
	s.events.Subscribe(TopicScreens, client)
	s.events.Subscribe(TopicLayout, client)
	defer func() {
		s.events.Unsubscribe(TopicScreens, client)
		s.events.Unsubscribe(TopicLayout, client)
	}()

	<-r.Context().Done()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
