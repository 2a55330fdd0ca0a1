package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lithe-dev/lithe/internal/errors"
	"github.com/lithe-dev/lithe/pkg/protocol"
	"github.com/lithe-dev/lithe/pkg/snapshot"
	"github.com/lithe-dev/lithe/pkg/store"
)

// ApplyFunc applies one client write batch and returns the coalesced
// update frame broadcast for it, or nil when no store actually changed.
type ApplyFunc func(ctx context.Context, sessionID string, batch *protocol.SetFrame) (*protocol.UpdateFrame, error)

// Middleware wraps the hub's apply pipeline.
type Middleware func(next ApplyFunc) ApplyFunc

// Sink receives broadcast update frames. Sessions implement it.
type Sink interface {
	SessionID() string

	// WantsStore reports whether the sink subscribed to name.
	WantsStore(name string) bool

	// SendFrame queues a pre-encoded frame. It must not block.
	SendFrame(frame []byte)
}

// hubEntry is one registered store, erased behind JSON codecs.
type hubEntry struct {
	name  string
	check func(data []byte) error
	set   func(data []byte) error
	unsub func()

	// Guarded by Hub.mu.
	last []byte
	rev  uint64
}

// Hub is the registry of named stores. It applies client write
// batches, assigns hub-global sequence numbers, and fans out coalesced
// update frames to subscribed sessions. Server-side writes to
// registered stores broadcast exactly like client writes.
type Hub struct {
	mu     sync.Mutex
	stores map[string]*hubEntry
	sinks  map[string]Sink
	seq    uint64

	// Coalescing state for an in-flight batch.
	collecting bool
	restoring  bool
	pending    map[string][]byte

	// applyMu serializes batches so sequence numbers are assigned in
	// apply order.
	applyMu sync.Mutex
	apply   ApplyFunc

	history *History
	metrics *Metrics
	log     *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHistory sets how many update frames are retained for resync.
func WithHistory(capacity int) HubOption {
	return func(h *Hub) {
		h.history = NewHistory(capacity)
	}
}

// WithMetrics attaches Prometheus collectors to the hub.
func WithMetrics(m *Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		stores:  make(map[string]*hubEntry),
		sinks:   make(map[string]Sink),
		pending: make(map[string][]byte),
		history: NewHistory(0),
		log:     slog.Default().With("component", "hub"),
	}
	h.apply = h.applyCore
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Use wraps the apply pipeline with mw. The last middleware added runs
// outermost. Call before serving traffic.
func (h *Hub) Use(mw Middleware) {
	h.apply = mw(h.apply)
}

// Register adds a named store to hub. The store's value type must
// round-trip through JSON. Duplicate names are rejected.
func Register[T any](h *Hub, name string, s store.Settable[T]) error {
	h.mu.Lock()
	if _, exists := h.stores[name]; exists {
		h.mu.Unlock()
		return errors.New("E004").WithDetail("store %q is already registered", name)
	}
	h.mu.Unlock()

	e := &hubEntry{
		name: name,
		check: func(data []byte) error {
			var v T
			return json.Unmarshal(data, &v)
		},
		set: func(data []byte) error {
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				return errors.New("E007").WithDetail("store %q: %v", name, err).Wrap(err)
			}
			s.Set(v)
			return nil
		},
	}

	// The initial synchronous callback seeds the entry; later
	// callbacks broadcast.
	initial := true
	e.unsub = s.Subscribe(func(v T) {
		data, err := json.Marshal(v)
		if err != nil {
			h.log.Error("store value not marshalable", "store", name, "error", err)
			return
		}
		if initial {
			initial = false
			e.last = data
			return
		}
		h.storeChanged(name, data)
	})

	h.mu.Lock()
	if _, exists := h.stores[name]; exists {
		h.mu.Unlock()
		e.unsub()
		return errors.New("E004").WithDetail("store %q is already registered", name)
	}
	h.stores[name] = e
	h.mu.Unlock()

	h.log.Info("store registered", "store", name)
	return nil
}

// Unregister removes a named store and detaches its subscription.
func (h *Hub) Unregister(name string) {
	h.mu.Lock()
	e := h.stores[name]
	delete(h.stores, name)
	h.mu.Unlock()

	if e != nil && e.unsub != nil {
		e.unsub()
	}
}

// Apply runs one client write batch through the middleware chain. The
// whole batch is validated first and applied as one coalesced update.
func (h *Hub) Apply(ctx context.Context, sessionID string, batch *protocol.SetFrame) (*protocol.UpdateFrame, error) {
	start := time.Now()
	frame, err := h.apply(ctx, sessionID, batch)
	if h.metrics != nil {
		h.metrics.SetsTotal.Inc()
		h.metrics.SetDuration.Observe(time.Since(start).Seconds())
	}
	return frame, err
}

func (h *Hub) applyCore(_ context.Context, _ string, batch *protocol.SetFrame) (*protocol.UpdateFrame, error) {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()

	// Validate every write before applying any, so a bad batch leaves
	// no partial state behind.
	entries := make([]*hubEntry, len(batch.Writes))
	h.mu.Lock()
	for i, w := range batch.Writes {
		e, ok := h.stores[w.Store]
		if !ok {
			h.mu.Unlock()
			return nil, errors.New("E003").WithDetail("no store named %q", w.Store)
		}
		entries[i] = e
	}
	h.mu.Unlock()

	for i, w := range batch.Writes {
		if err := entries[i].check(w.Value); err != nil {
			return nil, errors.New("E007").WithDetail("store %q: %v", w.Store, err).Wrap(err)
		}
	}

	h.mu.Lock()
	h.collecting = true
	h.pending = make(map[string][]byte)
	h.mu.Unlock()

	for i, w := range batch.Writes {
		// Checked above; identity equality may still swallow the write.
		_ = entries[i].set(w.Value)
	}

	return h.flush(), nil
}

// storeChanged is the subscription callback path: it runs for both
// server-side writes and batch applies.
func (h *Hub) storeChanged(name string, data []byte) {
	h.mu.Lock()
	e, ok := h.stores[name]
	if !ok {
		h.mu.Unlock()
		return
	}
	e.last = data

	if h.restoring {
		h.mu.Unlock()
		return
	}
	e.rev++
	if h.collecting {
		h.pending[name] = data
		h.mu.Unlock()
		return
	}

	h.seq++
	frame := &protocol.UpdateFrame{
		Seq:     h.seq,
		Changes: []protocol.Change{{Store: name, Rev: e.rev, Value: data}},
	}
	sinks := h.sinksLocked()
	h.mu.Unlock()

	h.broadcast(frame, sinks)
}

// flush ends a coalescing window: one frame per batch, one change per
// store no matter how many writes touched it.
func (h *Hub) flush() *protocol.UpdateFrame {
	h.mu.Lock()
	h.collecting = false
	if len(h.pending) == 0 {
		h.mu.Unlock()
		return nil
	}

	names := make([]string, 0, len(h.pending))
	for name := range h.pending {
		names = append(names, name)
	}
	sort.Strings(names)

	h.seq++
	frame := &protocol.UpdateFrame{Seq: h.seq}
	for _, name := range names {
		frame.Changes = append(frame.Changes, protocol.Change{
			Store: name,
			Rev:   h.stores[name].rev,
			Value: h.pending[name],
		})
	}
	h.pending = make(map[string][]byte)
	sinks := h.sinksLocked()
	h.mu.Unlock()

	h.broadcast(frame, sinks)
	return frame
}

func (h *Hub) sinksLocked() []Sink {
	sinks := make([]Sink, 0, len(h.sinks))
	for _, s := range h.sinks {
		sinks = append(sinks, s)
	}
	return sinks
}

// broadcast encodes the frame once, retains it for resync, and fans it
// out. Sinks subscribed to a subset get a filtered copy.
func (h *Hub) broadcast(frame *protocol.UpdateFrame, sinks []Sink) {
	encoded := protocol.NewFrame(protocol.FrameUpdate, protocol.EncodeUpdate(frame)).Encode()
	h.history.Add(frame.Seq, encoded)

	for _, sink := range sinks {
		wanted := 0
		for i := range frame.Changes {
			if sink.WantsStore(frame.Changes[i].Store) {
				wanted++
			}
		}
		switch wanted {
		case 0:
			continue
		case len(frame.Changes):
			sink.SendFrame(encoded)
		default:
			filtered := &protocol.UpdateFrame{Seq: frame.Seq}
			for i := range frame.Changes {
				if sink.WantsStore(frame.Changes[i].Store) {
					filtered.Changes = append(filtered.Changes, frame.Changes[i])
				}
			}
			sink.SendFrame(protocol.NewFrame(protocol.FrameUpdate, protocol.EncodeUpdate(filtered)).Encode())
		}
		if h.metrics != nil {
			h.metrics.UpdatesSent.Inc()
			h.metrics.UpdateBytes.Add(float64(len(encoded)))
		}
	}
}

// AddSink subscribes a session to broadcasts.
func (h *Hub) AddSink(s Sink) {
	h.mu.Lock()
	h.sinks[s.SessionID()] = s
	h.mu.Unlock()
}

// RemoveSink detaches a session from broadcasts.
func (h *Hub) RemoveSink(id string) {
	h.mu.Lock()
	delete(h.sinks, id)
	h.mu.Unlock()
}

// GetJSON returns a store's current JSON value and revision.
func (h *Hub) GetJSON(name string) ([]byte, uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.stores[name]
	if !ok {
		return nil, 0, errors.New("E003").WithDetail("no store named %q", name)
	}
	return e.last, e.rev, nil
}

// StoreInfo describes one registered store.
type StoreInfo struct {
	Name string `json:"name"`
	Rev  uint64 `json:"rev"`
}

// Stores lists registered stores in name order.
func (h *Hub) Stores() []StoreInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]StoreInfo, 0, len(h.stores))
	for name, e := range h.stores {
		out = append(out, StoreInfo{Name: name, Rev: e.rev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Seq returns the last assigned sequence number.
func (h *Hub) Seq() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seq
}

// History returns the retained update frames for resync.
func (h *Hub) History() *History {
	return h.history
}

// SnapshotFrame builds a full-state update frame for the stores
// accepted by filter (nil means all).
func (h *Hub) SnapshotFrame(filter func(name string) bool) *protocol.UpdateFrame {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.stores))
	for name := range h.stores {
		if filter == nil || filter(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	frame := &protocol.UpdateFrame{Seq: h.seq, Snapshot: true}
	for _, name := range names {
		e := h.stores[name]
		frame.Changes = append(frame.Changes, protocol.Change{
			Store: name,
			Rev:   e.rev,
			Value: e.last,
		})
	}
	return frame
}

// SnapshotAll implements snapshot.Source for checkpointing.
func (h *Hub) SnapshotAll() map[string]snapshot.Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string]snapshot.Record, len(h.stores))
	for name, e := range h.stores {
		data := make([]byte, len(e.last))
		copy(data, e.last)
		out[name] = snapshot.Record{Data: data, Rev: e.rev}
	}
	return out
}

// Restore loads persisted state from backend into the registered
// stores without broadcasting. Records for unregistered names are
// ignored. Call at boot, after registration and before serving.
func (h *Hub) Restore(ctx context.Context, backend snapshot.Store) error {
	records, err := backend.LoadAll(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.restoring = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.restoring = false
		h.mu.Unlock()
	}()

	for name, rec := range records {
		h.mu.Lock()
		e, ok := h.stores[name]
		h.mu.Unlock()
		if !ok {
			h.log.Warn("snapshot for unregistered store ignored", "store", name)
			continue
		}
		if err := e.set(rec.Data); err != nil {
			return errors.New("E201").WithDetail("store %q: %v", name, err).Wrap(err)
		}
		h.mu.Lock()
		e.rev = rec.Rev
		h.mu.Unlock()

		h.log.Info("store restored", "store", name, "rev", rec.Rev)
	}
	return nil
}
