package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/lithe-dev/lithe/internal/errors"
	"github.com/lithe-dev/lithe/pkg/protocol"
)

// Session represents a single WebSocket connection. It relays client
// write batches into the hub and implements Sink to receive broadcast
// update frames for the stores it subscribed to.
type Session struct {
	// Identity
	ID        string
	IP        string
	CreatedAt time.Time

	lastActive atomic.Int64 // Unix nanos

	// Connection
	conn   *websocket.Conn
	wmu    sync.Mutex // Protects conn writes
	closed atomic.Bool
	done   chan struct{}

	hub     *Hub
	config  *Config
	metrics *Metrics
	logger  *slog.Logger

	// Subscribed store names. Empty means all stores.
	stores map[string]struct{}

	// Outbound frame queue drained by writeLoop.
	sendQ chan []byte

	// Sequence tracking for resume and resync
	lastSent atomic.Uint64 // Highest update seq sent
	lastAck  atomic.Uint64 // Highest seq acknowledged by client

	// Inbound set-frame rate limiting
	limiter *rate.Limiter

	// Metrics
	setCount  atomic.Uint64
	bytesSent atomic.Uint64
	bytesRecv atomic.Uint64

	// onClose runs once when the session shuts down.
	onClose func(*Session)
}

// generateSessionID generates a cryptographically random session ID.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// SECURITY: Fatal on entropy failure - weak IDs are dangerous
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// newSession creates a session for an upgraded connection. A non-empty
// id resumes an existing identity; otherwise a fresh one is generated.
func newSession(conn *websocket.Conn, id, ip string, stores []string, hub *Hub, config *Config, metrics *Metrics, logger *slog.Logger) *Session {
	if id == "" {
		id = generateSessionID()
	}

	s := &Session{
		ID:        id,
		IP:        ip,
		CreatedAt: time.Now(),
		conn:      conn,
		done:      make(chan struct{}),
		hub:       hub,
		config:    config,
		metrics:   metrics,
		logger:    logger.With("session_id", id),
		sendQ:     make(chan []byte, config.SendQueueSize),
		limiter:   rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
	}
	s.lastActive.Store(time.Now().UnixNano())

	if len(stores) > 0 {
		s.stores = make(map[string]struct{}, len(stores))
		for _, name := range stores {
			s.stores[name] = struct{}{}
		}
	}

	return s
}

// SessionID implements Sink.
func (s *Session) SessionID() string {
	return s.ID
}

// WantsStore implements Sink. An empty subscription set means all.
func (s *Session) WantsStore(name string) bool {
	if len(s.stores) == 0 {
		return true
	}
	_, ok := s.stores[name]
	return ok
}

// StoreNames returns the subscribed store names, nil meaning all.
func (s *Session) StoreNames() []string {
	if len(s.stores) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.stores))
	for name := range s.stores {
		names = append(names, name)
	}
	return names
}

// SendFrame implements Sink. It never blocks: a session that cannot
// drain its queue is closed rather than allowed to stall broadcasts.
func (s *Session) SendFrame(frame []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.sendQ <- frame:
	default:
		s.logger.Warn("send queue full, closing session", "queue", cap(s.sendQ))
		s.closeWith(protocol.CloseError, ErrSendQueueFull.Error())
	}
}

// sendUpdate encodes an update frame and queues it.
func (s *Session) sendUpdate(frame *protocol.UpdateFrame) {
	if frame == nil {
		return
	}
	s.trackSeq(frame.Seq)
	s.SendFrame(protocol.NewFrame(protocol.FrameUpdate, protocol.EncodeUpdate(frame)).Encode())
}

func (s *Session) trackSeq(seq uint64) {
	for {
		cur := s.lastSent.Load()
		if seq <= cur || s.lastSent.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// run serves the connection until it closes. It blocks; the write loop
// runs in its own goroutine.
func (s *Session) run() {
	go s.writeLoop()
	s.readLoop()
}

// readLoop reads and dispatches inbound frames.
func (s *Session) readLoop() {
	defer s.Close()

	s.conn.SetReadLimit(protocol.DefaultMaxPayload + 16)

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("read error", "error", err)
				if s.metrics != nil {
					s.metrics.WebsocketErrors.WithLabelValues("read").Inc()
				}
			}
			return
		}
		s.bytesRecv.Add(uint64(len(data)))
		s.lastActive.Store(time.Now().UnixNano())

		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			s.logger.Warn("bad frame", "error", err)
			if s.metrics != nil {
				s.metrics.WebsocketErrors.WithLabelValues("decode").Inc()
			}
			s.sendError(protocol.ErrInvalidFrame, "malformed frame", false)
			continue
		}

		if !s.handleFrame(frame) {
			return
		}
	}
}

// handleFrame dispatches one inbound frame. It returns false when the
// session should stop reading.
func (s *Session) handleFrame(frame *protocol.Frame) bool {
	switch frame.Type {
	case protocol.FrameSet:
		s.handleSet(frame.Payload)

	case protocol.FrameAck:
		ack, err := protocol.DecodeAck(frame.Payload)
		if err != nil {
			s.sendError(protocol.ErrInvalidFrame, "malformed ack", false)
			return true
		}
		s.lastAck.Store(ack.LastSeq)

	case protocol.FrameControl:
		return s.handleControl(frame.Payload)

	default:
		s.sendError(protocol.ErrInvalidFrame, "unexpected frame type "+frame.Type.String(), false)
	}
	return true
}

// handleSet applies a client write batch through the hub.
func (s *Session) handleSet(payload []byte) {
	if !s.limiter.Allow() {
		if s.metrics != nil {
			s.metrics.RateLimited.Inc()
		}
		s.sendError(protocol.ErrRateLimited, "too many writes", false)
		return
	}

	batch, err := protocol.DecodeSet(payload)
	if err != nil {
		if s.metrics != nil {
			s.metrics.WebsocketErrors.WithLabelValues("decode").Inc()
		}
		s.sendError(protocol.ErrInvalidSet, "malformed set frame", false)
		return
	}
	if len(batch.Writes) == 0 {
		return
	}
	s.setCount.Add(1)

	if _, err := s.hub.Apply(context.Background(), s.ID, batch); err != nil {
		s.logger.Warn("set rejected", "writes", len(batch.Writes), "error", err)
		switch {
		case errors.Is(err, "E003"):
			s.sendError(protocol.ErrUnknownStore, err.Error(), false)
		case errors.Is(err, "E007"):
			s.sendError(protocol.ErrValueRejected, err.Error(), false)
		default:
			s.sendError(protocol.ErrServerError, "internal error", false)
		}
	}
}

// handleControl dispatches a control message. It returns false when
// the client asked to close.
func (s *Session) handleControl(payload []byte) bool {
	ct, msg, err := protocol.DecodeControl(payload)
	if err != nil {
		s.sendError(protocol.ErrInvalidFrame, "malformed control frame", false)
		return true
	}

	switch ct {
	case protocol.ControlPing:
		if pp, ok := msg.(*protocol.PingPong); ok {
			t, pong := protocol.NewPong(pp.Timestamp)
			s.SendFrame(protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(t, pong)).Encode())
		}

	case protocol.ControlPong:
		// Heartbeat answered; LastActive already bumped in readLoop.

	case protocol.ControlResyncRequest:
		if rr, ok := msg.(*protocol.ResyncRequest); ok {
			s.resync(rr.LastSeq)
		}

	case protocol.ControlClose:
		s.logger.Debug("client requested close")
		return false
	}
	return true
}

// resync brings a client that missed updates back in step: replay the
// retained frames when the gap is covered, send a full snapshot when
// it is not.
func (s *Session) resync(lastSeq uint64) {
	frames, ok := s.hub.History().Frames(lastSeq)
	if ok {
		for _, frame := range frames {
			s.SendFrame(frame)
		}
		if len(frames) > 0 {
			s.trackSeq(s.hub.History().MaxSeq())
			if s.metrics != nil {
				s.metrics.Resyncs.WithLabelValues("replay").Inc()
			}
			s.logger.Info("resync replayed", "after_seq", lastSeq, "frames", len(frames))
		}
		return
	}

	s.sendSnapshot()
	if s.metrics != nil {
		s.metrics.Resyncs.WithLabelValues("snapshot").Inc()
	}
	s.logger.Info("resync fell back to snapshot", "after_seq", lastSeq)
}

// sendSnapshot queues a full-state update frame for the subscribed
// stores.
func (s *Session) sendSnapshot() {
	s.sendUpdate(s.hub.SnapshotFrame(s.WantsStore))
}

// writeLoop drains the send queue and emits heartbeat pings.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.sendQ:
			if err := s.write(frame); err != nil {
				s.logger.Warn("write error", "error", err)
				if s.metrics != nil {
					s.metrics.WebsocketErrors.WithLabelValues("write").Inc()
				}
				s.Close()
				return
			}

		case <-ticker.C:
			ct, pp := protocol.NewPing(uint64(time.Now().UnixMilli()))
			frame := protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(ct, pp))
			if err := s.write(frame.Encode()); err != nil {
				s.Close()
				return
			}

		case <-s.done:
			return
		}
	}
}

func (s *Session) write(frame []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return NewSessionError(s.ID, "write", err)
	}
	s.bytesSent.Add(uint64(len(frame)))
	return nil
}

// sendError writes an error frame directly, bypassing the queue so the
// client hears about problems even when broadcasts are backed up.
func (s *Session) sendError(code protocol.ErrorCode, message string, fatal bool) {
	em := protocol.NewError(code, message)
	if fatal {
		em = protocol.NewFatalError(code, message)
	}
	frame := protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em))
	if err := s.write(frame.Encode()); err != nil {
		return
	}
	if fatal {
		s.Close()
	}
}

// Close shuts the session down. Safe to call more than once.
func (s *Session) Close() {
	s.closeWith(protocol.CloseNormal, "")
}

func (s *Session) closeWith(reason protocol.CloseReason, message string) {
	if s.closed.Swap(true) {
		return
	}
	close(s.done)

	s.wmu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	s.conn.WriteMessage(websocket.BinaryMessage,
		protocol.NewFrame(protocol.FrameControl,
			protocol.EncodeControl(protocol.NewClose(reason, message))).Encode())
	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.conn.Close()
	s.wmu.Unlock()

	if s.onClose != nil {
		s.onClose(s)
	}

	s.logger.Info("session closed",
		"sets", s.setCount.Load(),
		"bytes_sent", s.bytesSent.Load(),
		"bytes_recv", s.bytesRecv.Load())
}

// IsClosed reports whether the session has shut down.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done returns a channel closed when the session shuts down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// LastActive returns the time of the last inbound traffic.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// LastAck returns the highest update sequence the client acknowledged.
func (s *Session) LastAck() uint64 {
	return s.lastAck.Load()
}

// Stats returns a point-in-time summary of the session.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		ID:         s.ID,
		IP:         s.IP,
		CreatedAt:  s.CreatedAt,
		LastActive: s.LastActive(),
		SetCount:   s.setCount.Load(),
		BytesSent:  s.bytesSent.Load(),
		BytesRecv:  s.bytesRecv.Load(),
		LastSent:   s.lastSent.Load(),
		LastAck:    s.lastAck.Load(),
	}
}

// SessionStats contains session statistics.
type SessionStats struct {
	ID         string
	IP         string
	CreatedAt  time.Time
	LastActive time.Time
	SetCount   uint64
	BytesSent  uint64
	BytesRecv  uint64
	LastSent   uint64
	LastAck    uint64
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}
