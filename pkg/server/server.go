package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lithe-dev/lithe/internal/errors"
	"github.com/lithe-dev/lithe/pkg/protocol"
)

// Server exposes a hub over WebSocket for live sync and over REST for
// one-shot reads and writes.
type Server struct {
	config  *Config
	hub     *Hub
	manager *Manager
	metrics *Metrics
	logger  *slog.Logger

	registry *prometheus.Registry
	upgrader websocket.Upgrader
	http     *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server's base logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRegistry sets the Prometheus registry used for server metrics.
func WithRegistry(reg *prometheus.Registry) ServerOption {
	return func(s *Server) {
		s.registry = reg
	}
}

// NewServer creates a server around hub. A nil config uses defaults.
func NewServer(hub *Hub, config *Config, opts ...ServerOption) *Server {
	s := &Server{
		config: config.withDefaults(),
		hub:    hub,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	if s.config.EnableMetrics {
		if s.registry == nil {
			s.registry = prometheus.NewRegistry()
		}
		s.metrics = NewMetrics(s.registry)
		hub.metrics = s.metrics
	}

	s.manager = NewManager(s.config, s.metrics, s.logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.http = &http.Server{
		Addr:    s.config.Addr,
		Handler: s.Handler(),
	}

	return s
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Get("/stores", s.handleListStores)
	r.Get("/stores/{name}", s.handleGetStore)
	r.Post("/stores/{name}", s.handleSetStore)

	if s.config.EnableMetrics && s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	return r
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.config.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown closes all sessions and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down", "sessions", s.manager.Count())
	s.manager.CloseAll()
	return s.http.Shutdown(ctx)
}

// Manager returns the session manager.
func (s *Server) Manager() *Manager {
	return s.manager
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // Non-browser client
	}
	if len(s.config.AllowedOrigins) == 0 {
		// Same-origin only
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// handleWebSocket upgrades the connection, runs the handshake, and
// serves the session until it closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	hello, ok := s.readHello(conn)
	if !ok {
		conn.Close()
		return
	}

	if hello.Version.Major != protocol.CurrentVersion.Major {
		s.rejectHandshake(conn, protocol.HandshakeVersionMismatch)
		conn.Close()
		return
	}

	ip := clientIP(r, s.config.TrustProxyHeaders)

	// Resume path: a known session ID within the resume window keeps
	// its identity and catches up via history replay.
	resumed := false
	sessionID := ""
	stores := hello.Stores
	if hello.SessionID != "" {
		d, ok := s.manager.Resume(hello.SessionID)
		if !ok {
			s.rejectHandshake(conn, protocol.HandshakeSessionExpired)
			conn.Close()
			return
		}
		resumed = true
		sessionID = d.id
		if len(stores) == 0 {
			stores = d.stores
		}
	}

	sess := newSession(conn, sessionID, ip, stores, s.hub, s.config, s.metrics, s.logger)
	if err := s.manager.Add(sess); err != nil {
		s.logger.Warn("session rejected", "error", err, "ip", ip)
		s.rejectHandshake(conn, protocol.HandshakeServerBusy)
		conn.Close()
		return
	}

	welcome := protocol.NewWelcome(sess.ID, s.hub.Seq()+1, uint64(time.Now().UnixMilli()))
	if err := sess.write(protocol.NewFrame(protocol.FrameWelcome, protocol.EncodeWelcome(welcome)).Encode()); err != nil {
		s.manager.Remove(sess)
		conn.Close()
		return
	}

	sess.onClose = func(closed *Session) {
		s.hub.RemoveSink(closed.ID)
		s.manager.Remove(closed)
	}
	s.hub.AddSink(sess)

	// Initial state: a fresh session gets a full snapshot, a resumed
	// one gets the frames it missed (or a snapshot when history has a
	// gap).
	if resumed {
		sess.resync(hello.LastSeq)
	} else {
		sess.sendSnapshot()
	}

	s.logger.Info("session connected",
		"session_id", sess.ID,
		"ip", ip,
		"resumed", resumed,
		"stores", len(stores))

	sess.run()
}

// readHello reads the opening Hello frame with a short deadline.
func (s *Server) readHello(conn *websocket.Conn) (*protocol.ClientHello, bool) {
	conn.SetReadLimit(protocol.DefaultMaxPayload + 16)
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	_, data, err := conn.ReadMessage()
	if err != nil {
		s.logger.Warn("handshake read failed", "error", err)
		return nil, false
	}

	frame, err := protocol.DecodeFrame(data)
	if err != nil || frame.Type != protocol.FrameHello {
		s.rejectHandshake(conn, protocol.HandshakeInvalidFormat)
		return nil, false
	}
	hello, err := protocol.DecodeClientHello(frame.Payload)
	if err != nil {
		s.rejectHandshake(conn, protocol.HandshakeInvalidFormat)
		return nil, false
	}
	return hello, true
}

func (s *Server) rejectHandshake(conn *websocket.Conn, status protocol.HandshakeStatus) {
	welcome := protocol.NewWelcomeError(status)
	frame := protocol.NewFrame(protocol.FrameWelcome, protocol.EncodeWelcome(welcome))
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	conn.WriteMessage(websocket.BinaryMessage, frame.Encode())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.manager.Count(),
		"stores":   len(s.hub.Stores()),
	})
}

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Stores())
}

func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, rev, err := s.hub.GetJSON(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Lithe-Rev", strconv.FormatUint(rev, 10))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleSetStore(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	body, err := io.ReadAll(io.LimitReader(r.Body, protocol.DefaultMaxPayload+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body: " + err.Error()})
		return
	}
	if len(body) > protocol.DefaultMaxPayload {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "value too large"})
		return
	}

	batch := &protocol.SetFrame{Writes: []protocol.Write{{Store: name, Value: body}}}
	if _, err := s.hub.Apply(r.Context(), "http:"+clientIP(r, s.config.TrustProxyHeaders), batch); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, "E003"):
			status = http.StatusNotFound
		case errors.Is(err, "E007"):
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	_, rev, _ := s.hub.GetJSON(name)
	writeJSON(w, http.StatusOK, map[string]any{"store": name, "rev": rev})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
