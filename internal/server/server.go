// Package server exposes the simulation over HTTP: a websocket that takes
// key events and streams frames, plus health, telemetry and metrics
// endpoints.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kkonteh97/AmmoCarExample/internal/input"
	"github.com/kkonteh97/AmmoCarExample/internal/registry"
	"github.com/kkonteh97/AmmoCarExample/internal/shared/types"
	"github.com/kkonteh97/AmmoCarExample/internal/telemetry"
)

const (
	readTimeout   = 90 * time.Second
	writeTimeout  = 10 * time.Second
	pingInterval  = 20 * time.Second
	sendQueueSize = 64
	defaultLimit  = 100
)

// FrameSource yields the most recent completed frame.
type FrameSource interface {
	Latest() (types.Frame, bool)
}

// BatchSource resolves instanced batches by name.
type BatchSource interface {
	Batch(name string) (*registry.InstancedBatch, error)
}

type Options struct {
	Frames      FrameSource
	Batches     BatchSource
	Actions     *input.ActionState
	Store       *telemetry.Store
	AllowOrigin string
	Log         zerolog.Logger
}

type client struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	versions map[string]uint64
}

// Server fans frames out to every connected client. Key events from any
// client drive the one car.
type Server struct {
	frames      FrameSource
	batches     BatchSource
	actions     *input.ActionState
	store       *telemetry.Store
	allowOrigin string
	log         zerolog.Logger
	upgrader    websocket.Upgrader

	mu       sync.RWMutex
	clients  map[uint64]*client
	nextID   uint64
	lastSent uint64
}

func New(opts Options) *Server {
	if opts.AllowOrigin == "" {
		opts.AllowOrigin = "*"
	}
	return &Server{
		frames:      opts.Frames,
		batches:     opts.Batches,
		actions:     opts.Actions,
		store:       opts.Store,
		allowOrigin: opts.AllowOrigin,
		log:         opts.Log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[uint64]*client),
	}
}

// Handler routes every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/v1/telemetry", s.handleTelemetry)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return s.withCORS(mux)
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{"status": "ok", "clients": s.ClientCount()}
	if f, ok := s.frames.Latest(); ok {
		status["tick"] = f.Tick
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method_not_allowed"})
		return
	}
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_limit"})
			return
		}
		limit = n
	}
	recent := s.store.ListRecent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(recent),
		"summary": s.store.Summary(),
		"samples": recent,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if err := s.store.WriteMetrics(w); err != nil {
		s.log.Warn().Err(err).Msg("Failed writing metrics")
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendQueueSize), versions: make(map[string]uint64)}
	s.register(c)
	s.log.Info().Uint64("client", c.id).Str("remote", r.RemoteAddr).Msg("Client connected")

	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Info().Uint64("client", c.id).Msg("Client disconnected")
				return
			}
			s.log.Warn().Err(err).Uint64("client", c.id).Msg("Read failed")
			return
		}

		var in types.ClientEnvelope
		if err := json.Unmarshal(msg, &in); err != nil {
			s.sendError(c, "bad_payload")
			continue
		}

		switch in.Type {
		case "key":
			if !s.actions.HandleKey(in.Code, in.Pressed) {
				s.log.Trace().Str("code", in.Code).Msg("Ignoring unmapped key")
			}
		case "release_all":
			s.actions.Reset()
		case "ping":
			pong := types.ServerEnvelope{Type: "pong", ServerMS: time.Now().UTC().UnixMilli()}
			if payload, err := json.Marshal(pong); err == nil {
				s.enqueue(c, payload)
			}
		default:
			s.sendError(c, "unsupported_message_type")
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				return
			}
		}
	}
}

// RunReplication pushes the latest frame to every client at rate Hz until
// ctx is cancelled. A frame is sent at most once.
func (s *Server) RunReplication(ctx context.Context, rate float64) {
	if rate <= 0 {
		rate = 30
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Broadcast()
		}
	}
}

// Broadcast sends the latest frame if it has not been sent yet.
func (s *Server) Broadcast() {
	s.mu.Lock()
	f, ok := s.frames.Latest()
	if !ok {
		s.mu.Unlock()
		return
	}
	if f.Tick == s.lastSent {
		s.mu.Unlock()
		return
	}
	s.lastSent = f.Tick
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	now := time.Now().UTC().UnixMilli()
	for _, c := range clients {
		cf := s.frameFor(c, f)
		payload, err := json.Marshal(types.ServerEnvelope{
			Type:     "frame",
			Tick:     cf.Tick,
			Frame:    &cf,
			ServerMS: now,
		})
		if err != nil {
			s.log.Error().Err(err).Uint64("tick", f.Tick).Msg("Marshal frame failed")
			return
		}
		s.enqueue(c, payload)
	}
}

// frameFor attaches batch matrices the client has not seen yet. Frames may
// be skipped between replications, so versions are tracked per client
// rather than trusting the frame's dirty flag.
func (s *Server) frameFor(c *client, f types.Frame) types.Frame {
	if len(f.Batches) == 0 {
		return f
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	batches := make(map[string]types.BatchFrame, len(f.Batches))
	for name, b := range f.Batches {
		out := types.BatchFrame{Count: b.Count, Version: b.Version}
		if c.versions[name] != b.Version {
			matrices := b.Matrices
			if matrices == nil && s.batches != nil {
				if batch, err := s.batches.Batch(name); err == nil {
					matrices = batch.Matrices()
				}
			}
			if matrices != nil {
				out.Dirty = true
				out.Matrices = matrices
				c.versions[name] = b.Version
			}
		}
		batches[name] = out
	}
	f.Batches = batches
	return f
}

// register adds the client and queues its welcome under the same lock that
// Broadcast takes, so no frame can reach the client ahead of the welcome.
func (s *Server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.id = s.nextID
	s.clients[c.id] = c

	welcome := types.ServerEnvelope{
		Type:     "welcome",
		ServerMS: time.Now().UTC().UnixMilli(),
		Message:  "connected",
	}
	if f, ok := s.frames.Latest(); ok {
		f = s.frameFor(c, f)
		welcome.Tick = f.Tick
		welcome.Frame = &f
	}
	payload, err := json.Marshal(welcome)
	if err != nil {
		s.log.Error().Err(err).Uint64("client", c.id).Msg("Marshal welcome failed")
		return
	}
	// send is fresh and buffered, so this never blocks
	c.send <- payload
}

// unregister drops the client. When the last client leaves every held key
// is released so the car does not keep driving.
func (s *Server) unregister(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c.id]; ok {
		close(c.send)
		delete(s.clients, c.id)
	}
	remaining := len(s.clients)
	s.mu.Unlock()

	if remaining == 0 {
		s.actions.Reset()
	}
}

// enqueue drops the message when the client is not keeping up. It holds the
// read lock so that unregister cannot close send underneath it.
func (s *Server) enqueue(c *client, payload []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (s *Server) sendError(c *client, message string) {
	errPayload, _ := json.Marshal(types.ServerEnvelope{
		Type:    "error",
		Message: message,
	})
	s.enqueue(c, errPayload)
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
