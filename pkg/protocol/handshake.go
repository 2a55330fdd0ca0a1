package protocol

// HandshakeStatus represents the result of a handshake.
type HandshakeStatus uint8

const (
	HandshakeOK              HandshakeStatus = 0x00
	HandshakeVersionMismatch HandshakeStatus = 0x01
	HandshakeSessionExpired  HandshakeStatus = 0x02
	HandshakeServerBusy      HandshakeStatus = 0x03
	HandshakeInvalidFormat   HandshakeStatus = 0x04 // Malformed handshake message
	HandshakeInternalError   HandshakeStatus = 0x05 // Server error
)

// String returns the string representation of the handshake status.
func (hs HandshakeStatus) String() string {
	switch hs {
	case HandshakeOK:
		return "OK"
	case HandshakeVersionMismatch:
		return "VersionMismatch"
	case HandshakeSessionExpired:
		return "SessionExpired"
	case HandshakeServerBusy:
		return "ServerBusy"
	case HandshakeInvalidFormat:
		return "InvalidFormat"
	case HandshakeInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// ProtocolVersion represents a protocol version as major.minor.
type ProtocolVersion struct {
	Major uint8
	Minor uint8
}

// CurrentVersion is the current protocol version.
var CurrentVersion = ProtocolVersion{Major: 1, Minor: 0}

// ClientHello is sent by the client after the WebSocket connection is
// established. Stores names the stores the client wants to subscribe
// to; an empty list subscribes to all registered stores.
type ClientHello struct {
	Version   ProtocolVersion // Protocol version
	SessionID string          // Existing session ID (empty if new)
	LastSeq   uint64          // Last seen sequence number (for resume)
	Stores    []string        // Requested store subscriptions
}

// Welcome is the server's response to ClientHello.
type Welcome struct {
	Status     HandshakeStatus // Handshake result
	SessionID  string          // Session ID (new or existing)
	NextSeq    uint64          // Next update sequence number
	ServerTime uint64          // Server time in Unix milliseconds
}

// EncodeClientHello encodes a ClientHello to bytes.
func EncodeClientHello(ch *ClientHello) []byte {
	e := NewEncoder()
	e.WriteByte(ch.Version.Major)
	e.WriteByte(ch.Version.Minor)
	e.WriteString(ch.SessionID)
	e.WriteUvarint(ch.LastSeq)
	e.WriteUvarint(uint64(len(ch.Stores)))
	for _, name := range ch.Stores {
		e.WriteString(name)
	}
	return e.Bytes()
}

// DecodeClientHello decodes a ClientHello from bytes.
func DecodeClientHello(data []byte) (*ClientHello, error) {
	d := NewDecoder(data)
	ch := &ClientHello{}
	var err error

	major, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	minor, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	ch.Version = ProtocolVersion{Major: major, Minor: minor}

	ch.SessionID, err = d.ReadString()
	if err != nil {
		return nil, err
	}

	ch.LastSeq, err = d.ReadUvarint()
	if err != nil {
		return nil, err
	}

	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	if count > 0 {
		ch.Stores = make([]string, count)
		for i := 0; i < count; i++ {
			ch.Stores[i], err = d.ReadString()
			if err != nil {
				return nil, err
			}
		}
	}

	return ch, nil
}

// EncodeWelcome encodes a Welcome to bytes.
func EncodeWelcome(w *Welcome) []byte {
	e := NewEncoder()
	e.WriteByte(byte(w.Status))
	e.WriteString(w.SessionID)
	e.WriteUvarint(w.NextSeq)
	e.WriteUint64(w.ServerTime)
	return e.Bytes()
}

// DecodeWelcome decodes a Welcome from bytes.
func DecodeWelcome(data []byte) (*Welcome, error) {
	d := NewDecoder(data)
	w := &Welcome{}

	status, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	w.Status = HandshakeStatus(status)

	w.SessionID, err = d.ReadString()
	if err != nil {
		return nil, err
	}

	w.NextSeq, err = d.ReadUvarint()
	if err != nil {
		return nil, err
	}

	w.ServerTime, err = d.ReadUint64()
	if err != nil {
		return nil, err
	}

	return w, nil
}

// NewClientHello creates a ClientHello with the current version.
func NewClientHello(stores ...string) *ClientHello {
	return &ClientHello{
		Version: CurrentVersion,
		Stores:  stores,
	}
}

// NewWelcome creates a successful Welcome.
func NewWelcome(sessionID string, nextSeq, serverTime uint64) *Welcome {
	return &Welcome{
		Status:     HandshakeOK,
		SessionID:  sessionID,
		NextSeq:    nextSeq,
		ServerTime: serverTime,
	}
}

// NewWelcomeError creates a Welcome with an error status.
func NewWelcomeError(status HandshakeStatus) *Welcome {
	return &Welcome{Status: status}
}
