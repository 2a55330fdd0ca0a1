package protocol

import "testing"

func TestClientHelloRoundTrip(t *testing.T) {
	ch := &ClientHello{
		Version:   CurrentVersion,
		SessionID: "sess_abc123",
		LastSeq:   42,
		Stores:    []string{"counter", "progress"},
	}

	decoded, err := DecodeClientHello(EncodeClientHello(ch))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Version != CurrentVersion {
		t.Errorf("expected version %v, got %v", CurrentVersion, decoded.Version)
	}
	if decoded.SessionID != "sess_abc123" {
		t.Errorf("expected session id, got %q", decoded.SessionID)
	}
	if decoded.LastSeq != 42 {
		t.Errorf("expected LastSeq 42, got %d", decoded.LastSeq)
	}
	if len(decoded.Stores) != 2 || decoded.Stores[0] != "counter" || decoded.Stores[1] != "progress" {
		t.Errorf("expected store subscriptions, got %v", decoded.Stores)
	}
}

func TestClientHelloEmptyStores(t *testing.T) {
	ch := NewClientHello()

	decoded, err := DecodeClientHello(EncodeClientHello(ch))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded.Stores) != 0 {
		t.Errorf("expected no subscriptions (subscribe all), got %v", decoded.Stores)
	}
}

func TestWelcomeRoundTrip(t *testing.T) {
	w := NewWelcome("sess_xyz", 7, 1700000000000)

	decoded, err := DecodeWelcome(EncodeWelcome(w))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Status != HandshakeOK {
		t.Errorf("expected OK, got %v", decoded.Status)
	}
	if decoded.SessionID != "sess_xyz" {
		t.Errorf("expected session id, got %q", decoded.SessionID)
	}
	if decoded.NextSeq != 7 {
		t.Errorf("expected NextSeq 7, got %d", decoded.NextSeq)
	}
	if decoded.ServerTime != 1700000000000 {
		t.Errorf("expected server time, got %d", decoded.ServerTime)
	}
}

func TestWelcomeError(t *testing.T) {
	w := NewWelcomeError(HandshakeVersionMismatch)

	decoded, err := DecodeWelcome(EncodeWelcome(w))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Status != HandshakeVersionMismatch {
		t.Errorf("expected VersionMismatch, got %v", decoded.Status)
	}
	if decoded.Status.String() != "VersionMismatch" {
		t.Errorf("expected VersionMismatch string, got %s", decoded.Status.String())
	}
}

func TestClientHelloTruncated(t *testing.T) {
	data := EncodeClientHello(NewClientHello("counter"))
	for n := 0; n < len(data); n++ {
		if _, err := DecodeClientHello(data[:n]); err == nil {
			t.Errorf("truncated at %d bytes: expected an error", n)
		}
	}
}
