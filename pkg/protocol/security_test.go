package protocol

import "testing"

// A length prefix claiming more bytes than exist must fail with a
// bounds error before any allocation happens.
func TestMaliciousStringLength(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(1 << 30)
	e.WriteBytes([]byte("short"))

	d := NewDecoder(e.Bytes())
	if _, err := d.ReadString(); err == nil {
		t.Error("expected an error for an oversized length prefix")
	}
}

func TestMaliciousBytesLength(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(1 << 40)

	d := NewDecoder(e.Bytes())
	if _, err := d.ReadLenBytes(); err == nil {
		t.Error("expected an error for an oversized length prefix")
	}
}

// A collection count larger than the cap must be rejected even when
// the varint itself is well-formed.
func TestMaliciousCollectionCount(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(MaxCollectionCount + 1)
	e.WriteBytes(make([]byte, MaxCollectionCount+1))

	d := NewDecoder(e.Bytes())
	if _, err := d.ReadCollectionCount(); err != ErrCollectionTooLarge {
		t.Errorf("expected ErrCollectionTooLarge, got %v", err)
	}
}

func TestMaliciousSetFrameCount(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(1_000_000)

	if _, err := DecodeSet(e.Bytes()); err == nil {
		t.Error("expected an error for a set frame with a huge write count")
	}
}

func TestMaliciousFramePayloadLength(t *testing.T) {
	e := NewEncoder()
	e.WriteByte(byte(FrameUpdate))
	e.WriteByte(0)
	e.WriteUvarint(DefaultMaxPayload + 1)

	if _, err := DecodeFrame(e.Bytes()); err != ErrFrameTooLarge {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestUpdateFrameCountLargerThanBuffer(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(1)     // seq
	e.WriteBool(false)    // snapshot
	e.WriteUvarint(5_000) // claimed changes, buffer nearly empty

	if _, err := DecodeUpdate(e.Bytes()); err == nil {
		t.Error("expected an error when the count exceeds the buffer")
	}
}
