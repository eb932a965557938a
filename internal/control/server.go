// Package control exposes the texture swap operation and viewer status over
// HTTP and WebSocket, for a thumbnail slider or any other remote UI.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/mirror-viewer/internal/logger"
	"github.com/Faultbox/mirror-viewer/internal/viewer"
)

// requestTimeout bounds how long a request waits for the frame loop.
const requestTimeout = 5 * time.Second

// Viewer is the part of viewer.Viewer the server drives.
type Viewer interface {
	RequestTexture(ctx context.Context, path string) (uint64, error)
	Status() viewer.Status
	Subscribe(fn func(viewer.Event)) (unsubscribe func())
}

// Server serves the control API.
type Server struct {
	viewer      Viewer
	hub         *Hub
	mux         *http.ServeMux
	unsubscribe func()
}

// NewServer creates a server and starts relaying viewer events to WebSocket
// clients.
func NewServer(v Viewer) *Server {
	s := &Server{
		viewer: v,
		hub:    NewHub(),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /texture", s.handleTexture)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)

	s.unsubscribe = v.Subscribe(func(e viewer.Event) {
		s.hub.Broadcast(eventMessage(e))
	})
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Hub returns the WebSocket client hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("control server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.close()
	logger.Info("control server stopped")
	return err
}

func (s *Server) close() {
	s.unsubscribe()
	s.hub.Close()
}

type textureRequest struct {
	Path string `json:"path"`
}

type textureResponse struct {
	Token uint64 `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleTexture(w http.ResponseWriter, r *http.Request) {
	var req textureRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "path is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	token, err := s.viewer.RequestTexture(ctx, req.Path)
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	logger.Debug("texture requested over http", zap.String("path", req.Path), zap.Uint64("token", token))
	writeJSON(w, http.StatusAccepted, textureResponse{Token: token})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, viewer.ErrTargetNotReady), errors.Is(err, viewer.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, viewer.ErrEmptyPath):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.viewer.Status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", zap.Error(err))
	}
}
