// Package server provides the HTTP relay that shares one key/value space
// between every participant of a table.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/grovetools/crownest/pkg/kv"
	"github.com/grovetools/crownest/version"
)

// maxValueBytes bounds a single PUT body.
const maxValueBytes = 4 << 20

// RunningConfig describes the relay as started. It is exposed via
// /api/config so clients can check what they are talking to.
type RunningConfig struct {
	Listen    string    `json:"listen"`
	DataFile  string    `json:"data_file,omitempty"`
	Shape     string    `json:"shape"`
	Version   string    `json:"version,omitempty"`
	Protocol  int       `json:"protocol"`
	StartedAt time.Time `json:"started_at"`
}

// Server serves a kv.Memory over HTTP and a websocket stream.
type Server struct {
	logger        *logrus.Entry
	server        *http.Server
	mem           *kv.Memory
	shape         kv.Shape
	runningConfig *RunningConfig
	upgrader      websocket.Upgrader
}

// New creates a relay over mem. shape must match the shape mem was created
// with; it decides how stream frames are rendered.
func New(logger *logrus.Entry, mem *kv.Memory, shape kv.Shape) *Server {
	return &Server{
		logger: logger,
		mem:    mem,
		shape:  shape,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// SetRunningConfig sets the configuration reported by /api/config.
func (s *Server) SetRunningConfig(cfg *RunningConfig) {
	s.runningConfig = cfg
}

// Handler returns the relay's routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.accessLog)

	r.Methods(http.MethodGet).Path("/health").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Methods(http.MethodGet).Path("/api/state").HandlerFunc(s.handleGetState)
	r.Methods(http.MethodGet).Path("/api/config").HandlerFunc(s.handleGetConfig)
	r.Methods(http.MethodGet).Path("/api/kv/{namespace}/{key}").HandlerFunc(s.handleGetKey)
	r.Methods(http.MethodPut).Path("/api/kv/{namespace}/{key}").HandlerFunc(s.handlePutKey)
	r.Methods(http.MethodGet).Path("/api/ws").HandlerFunc(s.handleStream)

	return h2c.NewHandler(r, &http2.Server{})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(kv.ProtocolHeader, strconv.Itoa(version.Protocol))
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   m.Code,
			"duration": m.Duration,
			"origin":   r.Header.Get(kv.OriginHeader),
			"agent":    r.UserAgent(),
		}).Debug("Handled request")
	})
}

// ListenAndServe starts the relay on address (see kv.ParseAddress).
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(address string) error {
	network, addr, err := kv.ParseAddress(address)
	if err != nil {
		return err
	}

	if network == "unix" {
		// Cleanup stale socket
		if _, err := os.Stat(addr); err == nil {
			if err := os.Remove(addr); err != nil {
				return fmt.Errorf("failed to remove stale socket: %w", err)
			}
		}
		if err := os.MkdirAll(filepath.Dir(addr), 0755); err != nil {
			return fmt.Errorf("failed to create socket directory: %w", err)
		}
	}

	listener, err := net.Listen(network, addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	if network == "unix" {
		if err := os.Chmod(addr, 0600); err != nil {
			_ = listener.Close()
			return fmt.Errorf("failed to set socket permissions: %w", err)
		}
	}

	return s.Serve(listener)
}

// Serve accepts connections on listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.WithField("address", listener.Addr().String()).Info("Relay listening")
	err := s.server.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server. Open streams are ended by closing
// the underlying space, which the caller owns.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down relay...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleGetState returns every stored entry.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	space := s.mem.Space()
	out := make(map[string]map[string]kv.WireEntry, len(space))
	for ns, keys := range space {
		out[ns] = make(map[string]kv.WireEntry, len(keys))
		for key, e := range keys {
			out[ns][key] = kv.WireEntry{Value: string(e.Value), Origin: e.Origin, UpdatedAt: e.UpdatedAt}
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not set", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.runningConfig)
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	e, ok := s.mem.Lookup(vars["namespace"], vars["key"])
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, kv.WireEntry{Value: string(e.Value), Origin: e.Origin, UpdatedAt: e.UpdatedAt})
}

func (s *Server) handlePutKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxValueBytes))
	if err != nil {
		http.Error(w, "value too large", http.StatusRequestEntityTooLarge)
		return
	}
	if !json.Valid(body) {
		http.Error(w, "value is not valid JSON", http.StatusBadRequest)
		return
	}

	origin := r.Header.Get(kv.OriginHeader)
	if err := s.mem.Put(r.Context(), origin, vars["namespace"], vars["key"], json.RawMessage(body)); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"namespace": vars["namespace"],
			"key":       vars["key"],
		}).Error("Failed to store value")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStream upgrades to a websocket and forwards every write to the space
// as a kv.WireNotification frame until either side goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Watch before the handshake completes so no write after the client's
	// dial returns is missed.
	notes, err := s.mem.Watch(ctx)
	if err != nil {
		http.Error(w, "relay closing", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to upgrade stream")
		return
	}
	defer conn.Close()

	origin := r.Header.Get(kv.OriginHeader)
	s.logger.WithField("participant", origin).Info("Participant connected")
	defer s.logger.WithField("participant", origin).Info("Participant disconnected")

	// The client never sends data frames; reading detects when it leaves.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notes:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay closing"), time.Now().Add(time.Second))
				return
			}
			frame, err := s.frame(n)
			if err != nil {
				s.logger.WithError(err).WithField("key", n.Key).Warn("Skipping unencodable notification")
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}

// frame renders n with its value as JSON text.
func (s *Server) frame(n kv.Notification) (kv.WireNotification, error) {
	wn := kv.WireNotification{Namespace: n.Namespace, Key: n.Key, Origin: n.Origin}
	if text, ok := n.Value.(string); ok && s.shape == kv.ShapeString {
		wn.Value = text
		return wn, nil
	}
	b, err := json.Marshal(n.Value)
	if err != nil {
		return wn, err
	}
	wn.Value = string(b)
	return wn, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
