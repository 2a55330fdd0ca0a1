package protocol

// Change is one store change in an Update frame. Rev is the store's
// revision after the change; Value is the new value as JSON bytes.
type Change struct {
	Store string
	Rev   uint64
	Value []byte
}

// UpdateFrame is a server batch of store changes. Seq is a hub-global
// monotonic sequence number. A frame with Snapshot set carries the full
// state of the session's subscribed stores rather than a delta.
type UpdateFrame struct {
	Seq      uint64
	Snapshot bool
	Changes  []Change
}

// EncodeUpdate encodes an UpdateFrame to bytes.
func EncodeUpdate(uf *UpdateFrame) []byte {
	e := NewEncoder()
	e.WriteUvarint(uf.Seq)
	e.WriteBool(uf.Snapshot)
	e.WriteUvarint(uint64(len(uf.Changes)))
	for i := range uf.Changes {
		e.WriteString(uf.Changes[i].Store)
		e.WriteUvarint(uf.Changes[i].Rev)
		e.WriteLenBytes(uf.Changes[i].Value)
	}
	return e.Bytes()
}

// DecodeUpdate decodes an UpdateFrame from bytes.
func DecodeUpdate(data []byte) (*UpdateFrame, error) {
	d := NewDecoder(data)
	uf := &UpdateFrame{}
	var err error

	uf.Seq, err = d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	uf.Snapshot, err = d.ReadBool()
	if err != nil {
		return nil, err
	}

	count, err := d.ReadCollectionCount()
	if err != nil {
		return nil, err
	}
	uf.Changes = make([]Change, count)
	for i := 0; i < count; i++ {
		uf.Changes[i].Store, err = d.ReadString()
		if err != nil {
			return nil, err
		}
		uf.Changes[i].Rev, err = d.ReadUvarint()
		if err != nil {
			return nil, err
		}
		uf.Changes[i].Value, err = d.ReadLenBytes()
		if err != nil {
			return nil, err
		}
	}

	return uf, nil
}
