package protocol

// Ack is sent by the client to acknowledge received updates.
// It serves multiple purposes:
//  1. Garbage collection of update history on the server
//  2. Flow control (server knows client's processing capacity)
//  3. Detecting client lag
type Ack struct {
	LastSeq uint64 // Last received sequence number
	Window  uint64 // Receive window size (how many more updates the client can accept)
}

// DefaultWindow is the default receive window size.
const DefaultWindow = 100

// EncodeAck encodes an Ack to bytes.
func EncodeAck(ack *Ack) []byte {
	e := NewEncoder()
	e.WriteUvarint(ack.LastSeq)
	e.WriteUvarint(ack.Window)
	return e.Bytes()
}

// DecodeAck decodes an Ack from bytes.
func DecodeAck(data []byte) (*Ack, error) {
	d := NewDecoder(data)

	lastSeq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	window, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}

	return &Ack{LastSeq: lastSeq, Window: window}, nil
}
