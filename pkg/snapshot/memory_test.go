package snapshot

import (
	"context"
	"testing"
)

// exerciseBackend runs the backend contract shared by every Store
// implementation.
func exerciseBackend(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	// Missing names load as absent, not as errors.
	data, rev, err := s.Load(ctx, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data != nil || rev != 0 {
		t.Errorf("expected absent record, got %q rev %d", data, rev)
	}

	if err := s.Save(ctx, "counter", []byte(`5`), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Save(ctx, "user", []byte(`{"name":"ada"}`), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, rev, err = s.Load(ctx, "counter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `5` || rev != 3 {
		t.Errorf("expected 5 rev 3, got %q rev %d", data, rev)
	}

	// Saving again overwrites.
	if err := s.Save(ctx, "counter", []byte(`6`), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, rev, _ = s.Load(ctx, "counter")
	if string(data) != `6` || rev != 4 {
		t.Errorf("expected 6 rev 4, got %q rev %d", data, rev)
	}

	all, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 records, got %d", len(all))
	}
	if rec := all["user"]; string(rec.Data) != `{"name":"ada"}` || rec.Rev != 1 {
		t.Errorf("unexpected user record: %q rev %d", rec.Data, rec.Rev)
	}

	if err := s.Delete(ctx, "counter"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _, _ = s.Load(ctx, "counter")
	if data != nil {
		t.Errorf("expected deleted record to be absent, got %q", data)
	}

	// Deleting a missing name is a no-op.
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMemoryBackend(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	exerciseBackend(t, s)
}

func TestMemoryCopiesData(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	src := []byte(`5`)
	s.Save(ctx, "counter", src, 1)
	src[0] = '9'

	data, _, _ := s.Load(ctx, "counter")
	if string(data) != `5` {
		t.Errorf("expected stored data independent of the caller's slice, got %q", data)
	}
}
