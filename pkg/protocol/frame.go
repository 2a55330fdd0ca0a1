package protocol

import (
	"errors"
	"io"
)

// DefaultMaxPayload is the maximum frame payload size (1 MiB). Store
// values are JSON documents; anything larger than this is rejected
// rather than buffered.
const DefaultMaxPayload = 1 << 20

// FrameType identifies the type of frame.
type FrameType uint8

const (
	FrameHello   FrameType = 0x00 // Connection setup
	FrameWelcome FrameType = 0x01 // Handshake response
	FrameSet     FrameType = 0x02 // Client → Server store writes
	FrameUpdate  FrameType = 0x03 // Server → Client store updates
	FrameControl FrameType = 0x04 // Control messages (ping, resync, close)
	FrameAck     FrameType = 0x05 // Acknowledgment
	FrameError   FrameType = 0x06 // Error message
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameHello:
		return "Hello"
	case FrameWelcome:
		return "Welcome"
	case FrameSet:
		return "Set"
	case FrameUpdate:
		return "Update"
	case FrameControl:
		return "Control"
	case FrameAck:
		return "Ack"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// FrameFlags are optional flags for frame processing.
type FrameFlags uint8

const (
	FlagCompressed FrameFlags = 0x01 // Payload is gzip compressed
	FlagFinal      FrameFlags = 0x02 // Last frame in a batch
)

// Has returns true if the flags contain the specified flag.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

// Frame errors.
var (
	ErrFrameTooLarge    = errors.New("protocol: frame payload too large")
	ErrInvalidFrameType = errors.New("protocol: invalid frame type")
)

// Frame is a protocol frame: type, flags, and an opaque payload whose
// shape depends on the type.
type Frame struct {
	Type    FrameType
	Flags   FrameFlags
	Payload []byte
}

// NewFrame creates a new frame with the given type and payload.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode encodes the frame to bytes including the header.
func (f *Frame) Encode() []byte {
	e := NewEncoderWithCap(2 + 5 + len(f.Payload))
	f.EncodeTo(e)
	return e.Bytes()
}

// EncodeTo encodes the frame using the provided encoder.
func (f *Frame) EncodeTo(e *Encoder) {
	e.WriteByte(byte(f.Type))
	e.WriteByte(byte(f.Flags))
	e.WriteLenBytes(f.Payload)
}

// DecodeFrame decodes a frame from bytes, enforcing DefaultMaxPayload.
func DecodeFrame(data []byte) (*Frame, error) {
	d := NewDecoder(data)

	ft, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	if FrameType(ft) > FrameError {
		return nil, ErrInvalidFrameType
	}
	flags, err := d.ReadByte()
	if err != nil {
		return nil, err
	}

	length, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if length > DefaultMaxPayload {
		return nil, ErrFrameTooLarge
	}
	if length > uint64(d.Remaining()) {
		return nil, io.ErrUnexpectedEOF
	}
	payload := make([]byte, int(length))
	raw, _ := d.ReadBytes(int(length))
	copy(payload, raw)

	return &Frame{
		Type:    FrameType(ft),
		Flags:   FrameFlags(flags),
		Payload: payload,
	}, nil
}

// ReadFrame reads a complete frame from an io.Reader.
func ReadFrame(r io.Reader) (*Frame, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if FrameType(hdr[0]) > FrameError {
		return nil, ErrInvalidFrameType
	}

	length, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if length > DefaultMaxPayload {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	return &Frame{
		Type:    FrameType(hdr[0]),
		Flags:   FrameFlags(hdr[1]),
		Payload: payload,
	}, nil
}

// WriteFrame writes a complete frame to an io.Writer.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > DefaultMaxPayload {
		return ErrFrameTooLarge
	}
	_, err := w.Write(f.Encode())
	return err
}

func readUvarint(r io.Reader) (uint64, error) {
	var v uint64
	var shift uint
	var b [1]byte

	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		v |= uint64(b[0]&0x7F) << shift
		if b[0] < 0x80 {
			return v, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, ErrVarintOverflow
		}
	}
}
