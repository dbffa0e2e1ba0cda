// Package web serves the workspace over HTTP and pushes state changes on a WebSocket feed.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rbright/polyglot/internal/image"
	"github.com/rbright/polyglot/internal/ipc"
	"github.com/rbright/polyglot/internal/languages"
	"github.com/rbright/polyglot/internal/workspace"
)

const (
	maxCommandBytes = 1 << 20
	shutdownTimeout = 3 * time.Second
)

// Workspace is the command and state surface exposed over HTTP.
type Workspace interface {
	Snapshot() workspace.Snapshot
	Subscribe(fn func(workspace.Snapshot)) func()
	Handle(ctx context.Context, req ipc.Request) ipc.Response
}

// Server routes HTTP and WebSocket requests to a workspace.
type Server struct {
	logger   *slog.Logger
	ws       Workspace
	upgrader websocket.Upgrader
}

// NewServer builds a server for ws. logger may be nil.
func NewServer(logger *slog.Logger, ws Workspace) *Server {
	return &Server{
		logger: logger,
		ws:     ws,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/image", s.handleImage)
	mux.HandleFunc("POST /api/command", s.handleCommand)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	s.logInfo("web server listening", "addr", listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
		}
		<-errCh
		return nil
	}
}

type catalog struct {
	Languages    []catalogLanguage  `json:"languages"`
	Styles       []image.Style      `json:"styles"`
	Backgrounds  []image.Background `json:"backgrounds"`
	AspectRatios []string           `json:"aspect_ratios"`
}

type catalogLanguage struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ws.Snapshot())
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	out := catalog{
		Styles:       image.Styles(),
		Backgrounds:  image.Backgrounds(),
		AspectRatios: image.AspectRatios(),
	}
	for _, lang := range languages.All() {
		out.Languages = append(out.Languages, catalogLanguage{Code: lang.Code, Name: lang.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleImage(w http.ResponseWriter, _ *http.Request) {
	result := s.ws.Snapshot().Image.Result
	if result == "" {
		http.Error(w, "no image generated", http.StatusNotFound)
		return
	}
	mime, data, err := image.DecodeDataURI(result)
	if err != nil {
		s.logWarn("stored image is not decodable", "error", err.Error())
		http.Error(w, "image unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", image.DownloadFilename))
	_, _ = w.Write(data)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req ipc.Request
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ipc.Response{OK: false, Error: fmt.Sprintf("decode request: %v", err)})
		return
	}

	resp := s.ws.Handle(r.Context(), req)
	status := http.StatusOK
	if !resp.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) logDebug(message string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Debug(message, args...)
}

func (s *Server) logInfo(message string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Info(message, args...)
}

func (s *Server) logWarn(message string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(message, args...)
}
