package server

import (
	"context"
	"sync"
	"testing"

	"github.com/lithe-dev/lithe/internal/errors"
	"github.com/lithe-dev/lithe/pkg/protocol"
	"github.com/lithe-dev/lithe/pkg/snapshot"
	"github.com/lithe-dev/lithe/pkg/store"
)

// fakeSink records broadcast frames for assertions.
type fakeSink struct {
	mu     sync.Mutex
	id     string
	wants  map[string]bool // nil means all
	frames []*protocol.UpdateFrame
}

func newFakeSink(id string, stores ...string) *fakeSink {
	s := &fakeSink{id: id}
	if len(stores) > 0 {
		s.wants = make(map[string]bool)
		for _, name := range stores {
			s.wants[name] = true
		}
	}
	return s
}

func (s *fakeSink) SessionID() string { return s.id }

func (s *fakeSink) WantsStore(name string) bool {
	if s.wants == nil {
		return true
	}
	return s.wants[name]
}

func (s *fakeSink) SendFrame(frame []byte) {
	f, err := protocol.DecodeFrame(frame)
	if err != nil || f.Type != protocol.FrameUpdate {
		return
	}
	uf, err := protocol.DecodeUpdate(f.Payload)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.frames = append(s.frames, uf)
	s.mu.Unlock()
}

func (s *fakeSink) updates() []*protocol.UpdateFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*protocol.UpdateFrame(nil), s.frames...)
}

func setBatch(writes ...protocol.Write) *protocol.SetFrame {
	return &protocol.SetFrame{Writes: writes}
}

func TestHubRegisterSeedsValue(t *testing.T) {
	h := NewHub()
	counter := store.NewWritable(42)
	if err := Register(h, "counter", counter); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	data, rev, err := h.GetJSON("counter")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(data) != "42" {
		t.Errorf("expected 42, got %s", data)
	}
	if rev != 0 {
		t.Errorf("expected rev 0, got %d", rev)
	}
}

func TestHubRegisterDuplicate(t *testing.T) {
	h := NewHub()
	if err := Register(h, "counter", store.NewWritable(0)); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	err := Register(h, "counter", store.NewWritable(0))
	if !errors.Is(err, "E004") {
		t.Errorf("expected E004, got %v", err)
	}
}

func TestHubApplyUnknownStore(t *testing.T) {
	h := NewHub()
	_, err := h.Apply(context.Background(), "s1", setBatch(protocol.Write{Store: "missing", Value: []byte("1")}))
	if !errors.Is(err, "E003") {
		t.Errorf("expected E003, got %v", err)
	}
}

func TestHubApplyRejectsBadValueAtomically(t *testing.T) {
	h := NewHub()
	a := store.NewWritable(0)
	b := store.NewWritable(0)
	Register(h, "a", a)
	Register(h, "b", b)

	_, err := h.Apply(context.Background(), "s1", setBatch(
		protocol.Write{Store: "a", Value: []byte("1")},
		protocol.Write{Store: "b", Value: []byte("not-a-number")},
	))
	if !errors.Is(err, "E007") {
		t.Fatalf("expected E007, got %v", err)
	}

	// The valid write in the same batch must not have been applied.
	if a.Get() != 0 {
		t.Errorf("expected a unchanged, got %d", a.Get())
	}
	data, rev, _ := h.GetJSON("a")
	if string(data) != "0" || rev != 0 {
		t.Errorf("expected a at 0/rev 0, got %s/rev %d", data, rev)
	}
}

func TestHubApplyCoalescesBatch(t *testing.T) {
	h := NewHub()
	Register(h, "counter", store.NewWritable(0))
	Register(h, "label", store.NewWritable(""))
	sink := newFakeSink("s1")
	h.AddSink(sink)

	frame, err := h.Apply(context.Background(), "s1", setBatch(
		protocol.Write{Store: "counter", Value: []byte("1")},
		protocol.Write{Store: "counter", Value: []byte("2")},
		protocol.Write{Store: "label", Value: []byte(`"hi"`)},
	))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if frame == nil {
		t.Fatal("expected an update frame")
	}
	if frame.Seq != 1 {
		t.Errorf("expected seq 1, got %d", frame.Seq)
	}
	if len(frame.Changes) != 2 {
		t.Fatalf("expected 2 coalesced changes, got %d", len(frame.Changes))
	}
	// Changes are name-ordered; counter carries only the final value.
	if frame.Changes[0].Store != "counter" || string(frame.Changes[0].Value) != "2" {
		t.Errorf("expected counter=2, got %s=%s", frame.Changes[0].Store, frame.Changes[0].Value)
	}
	if frame.Changes[0].Rev != 2 {
		t.Errorf("expected counter rev 2, got %d", frame.Changes[0].Rev)
	}
	if frame.Changes[1].Store != "label" || string(frame.Changes[1].Value) != `"hi"` {
		t.Errorf("expected label=hi, got %s=%s", frame.Changes[1].Store, frame.Changes[1].Value)
	}

	got := sink.updates()
	if len(got) != 1 {
		t.Fatalf("expected 1 broadcast frame, got %d", len(got))
	}
	if got[0].Seq != 1 || len(got[0].Changes) != 2 {
		t.Errorf("expected broadcast of seq 1 with 2 changes, got seq %d with %d", got[0].Seq, len(got[0].Changes))
	}
}

func TestHubEqualWriteProducesNoFrame(t *testing.T) {
	h := NewHub()
	Register(h, "counter", store.NewWritable(5))
	sink := newFakeSink("s1")
	h.AddSink(sink)

	frame, err := h.Apply(context.Background(), "s1", setBatch(protocol.Write{Store: "counter", Value: []byte("5")}))
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if frame != nil {
		t.Errorf("expected nil frame for identical value, got seq %d", frame.Seq)
	}
	if len(sink.updates()) != 0 {
		t.Errorf("expected no broadcast, got %d", len(sink.updates()))
	}
}

func TestHubServerSideWriteBroadcasts(t *testing.T) {
	h := NewHub()
	counter := store.NewWritable(0)
	Register(h, "counter", counter)
	sink := newFakeSink("s1")
	h.AddSink(sink)

	counter.Set(7)

	got := sink.updates()
	if len(got) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(got))
	}
	if got[0].Seq != 1 || len(got[0].Changes) != 1 {
		t.Fatalf("expected seq 1 with 1 change, got seq %d with %d", got[0].Seq, len(got[0].Changes))
	}
	if string(got[0].Changes[0].Value) != "7" || got[0].Changes[0].Rev != 1 {
		t.Errorf("expected 7/rev 1, got %s/rev %d", got[0].Changes[0].Value, got[0].Changes[0].Rev)
	}
}

func TestHubSinkFiltering(t *testing.T) {
	h := NewHub()
	Register(h, "a", store.NewWritable(0))
	Register(h, "b", store.NewWritable(0))
	all := newFakeSink("all")
	onlyA := newFakeSink("only-a", "a")
	h.AddSink(all)
	h.AddSink(onlyA)

	if _, err := h.Apply(context.Background(), "x", setBatch(
		protocol.Write{Store: "a", Value: []byte("1")},
		protocol.Write{Store: "b", Value: []byte("2")},
	)); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if got := all.updates(); len(got) != 1 || len(got[0].Changes) != 2 {
		t.Errorf("expected unfiltered sink to see 2 changes")
	}
	got := onlyA.updates()
	if len(got) != 1 || len(got[0].Changes) != 1 {
		t.Fatalf("expected filtered sink to see 1 change, got %v", got)
	}
	if got[0].Changes[0].Store != "a" {
		t.Errorf("expected change for a, got %s", got[0].Changes[0].Store)
	}

	// Write only to b: the filtered sink hears nothing.
	if _, err := h.Apply(context.Background(), "x", setBatch(protocol.Write{Store: "b", Value: []byte("3")})); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if len(onlyA.updates()) != 1 {
		t.Errorf("expected filtered sink to stay at 1 frame, got %d", len(onlyA.updates()))
	}
}

func TestHubMiddlewareOrder(t *testing.T) {
	h := NewHub()
	Register(h, "counter", store.NewWritable(0))

	var order []string
	h.Use(func(next ApplyFunc) ApplyFunc {
		return func(ctx context.Context, sessionID string, batch *protocol.SetFrame) (*protocol.UpdateFrame, error) {
			order = append(order, "inner")
			return next(ctx, sessionID, batch)
		}
	})
	h.Use(func(next ApplyFunc) ApplyFunc {
		return func(ctx context.Context, sessionID string, batch *protocol.SetFrame) (*protocol.UpdateFrame, error) {
			order = append(order, "outer")
			return next(ctx, sessionID, batch)
		}
	})

	if _, err := h.Apply(context.Background(), "s1", setBatch(protocol.Write{Store: "counter", Value: []byte("1")})); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("expected outer then inner, got %v", order)
	}
}

func TestHubSnapshotFrame(t *testing.T) {
	h := NewHub()
	counter := store.NewWritable(0)
	Register(h, "counter", counter)
	Register(h, "label", store.NewWritable("x"))
	counter.Set(3)

	frame := h.SnapshotFrame(nil)
	if !frame.Snapshot {
		t.Error("expected snapshot flag")
	}
	if len(frame.Changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(frame.Changes))
	}
	if string(frame.Changes[0].Value) != "3" || frame.Changes[0].Rev != 1 {
		t.Errorf("expected counter 3/rev 1, got %s/rev %d", frame.Changes[0].Value, frame.Changes[0].Rev)
	}

	filtered := h.SnapshotFrame(func(name string) bool { return name == "label" })
	if len(filtered.Changes) != 1 || filtered.Changes[0].Store != "label" {
		t.Errorf("expected only label, got %v", filtered.Changes)
	}
}

func TestHubSnapshotAllAndRestore(t *testing.T) {
	ctx := context.Background()

	h := NewHub()
	counter := store.NewWritable(0)
	Register(h, "counter", counter)
	counter.Set(9)

	records := h.SnapshotAll()
	if rec, ok := records["counter"]; !ok || string(rec.Data) != "9" || rec.Rev != 1 {
		t.Fatalf("expected counter 9/rev 1, got %+v", records["counter"])
	}

	backend := snapshot.NewMemory()
	for name, rec := range records {
		if err := backend.Save(ctx, name, rec.Data, rec.Rev); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	// Fresh hub restores from the backend without broadcasting.
	h2 := NewHub()
	counter2 := store.NewWritable(0)
	Register(h2, "counter", counter2)
	sink := newFakeSink("s1")
	h2.AddSink(sink)

	if err := h2.Restore(ctx, backend); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if counter2.Get() != 9 {
		t.Errorf("expected restored value 9, got %d", counter2.Get())
	}
	data, rev, _ := h2.GetJSON("counter")
	if string(data) != "9" || rev != 1 {
		t.Errorf("expected 9/rev 1, got %s/rev %d", data, rev)
	}
	if len(sink.updates()) != 0 {
		t.Errorf("expected no broadcast during restore, got %d", len(sink.updates()))
	}
}

func TestHubHistoryRecordsBroadcasts(t *testing.T) {
	h := NewHub(WithHistory(16))
	counter := store.NewWritable(0)
	Register(h, "counter", counter)

	counter.Set(1)
	counter.Set(2)

	frames, ok := h.History().Frames(0)
	if !ok {
		t.Fatal("expected history to cover both frames")
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
}

func TestHubUnregister(t *testing.T) {
	h := NewHub()
	counter := store.NewWritable(0)
	Register(h, "counter", counter)
	h.Unregister("counter")

	if _, _, err := h.GetJSON("counter"); !errors.Is(err, "E003") {
		t.Errorf("expected E003 after unregister, got %v", err)
	}

	// The subscription is detached: later writes do not reach the hub.
	sink := newFakeSink("s1")
	h.AddSink(sink)
	counter.Set(5)
	if len(sink.updates()) != 0 {
		t.Errorf("expected no broadcast after unregister, got %d", len(sink.updates()))
	}
}

func TestHubStores(t *testing.T) {
	h := NewHub()
	Register(h, "b", store.NewWritable(0))
	Register(h, "a", store.NewWritable(0))

	infos := h.Stores()
	if len(infos) != 2 {
		t.Fatalf("expected 2 stores, got %d", len(infos))
	}
	if infos[0].Name != "a" || infos[1].Name != "b" {
		t.Errorf("expected name order a,b, got %s,%s", infos[0].Name, infos[1].Name)
	}
}
