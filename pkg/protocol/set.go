package protocol

// Write is one store write in a Set frame. Value carries the new store
// value as opaque JSON bytes.
type Write struct {
	Store string
	Value []byte
}

// SetFrame is a client batch of store writes. The server applies the
// whole batch as one update pass, so subscribers observe a single
// coalesced change no matter how many writes the batch carries.
type SetFrame struct {
	Writes []Write
}

// EncodeSet encodes a SetFrame to bytes.
func EncodeSet(sf *SetFrame) []byte {
	e := NewEncoder()
	e.WriteUvarint(uint64(len(sf.Writes)))
	for i := range sf.Writes {
		e.WriteString(sf.Writes[i].Store)
		e.WriteLenBytes(sf.Writes[i].Value)
	}
	return e.Bytes()
}

// DecodeSet decodes a SetFrame from bytes.
func DecodeSet(data []byte) (*SetFrame, error) {
	d := NewDecoder(data)

	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}

	sf := &SetFrame{Writes: make([]Write, count)}
	for i := 0; i < count; i++ {
		sf.Writes[i].Store, err = d.ReadString()
		if err != nil {
			return nil, err
		}
		sf.Writes[i].Value, err = d.ReadLenBytes()
		if err != nil {
			return nil, err
		}
	}

	return sf, nil
}
