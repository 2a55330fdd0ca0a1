package server

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// History retains recently broadcast update frames, pre-encoded, keyed
// by sequence number. A reconnecting client that is only a few frames
// behind gets them replayed; a client whose gap exceeds the retained
// window falls back to a full snapshot frame.
type History struct {
	mu     sync.RWMutex
	frames *lru.Cache[uint64, []byte]
	minSeq uint64 // Lowest sequence still guaranteed present
	maxSeq uint64 // Highest sequence added
}

// NewHistory creates a history retaining up to capacity frames.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 256
	}
	cache, _ := lru.New[uint64, []byte](capacity)
	return &History{frames: cache}
}

// Add stores an encoded update frame under its sequence number. The
// bytes are copied so the caller's buffer may be reused.
func (h *History) Add(seq uint64, frame []byte) {
	cp := make([]byte, len(frame))
	copy(cp, frame)

	h.mu.Lock()
	defer h.mu.Unlock()

	if evicted := h.frames.Add(seq, cp); evicted || h.minSeq == 0 {
		// Oldest key after insertion bounds what is recoverable.
		if oldest, _, ok := h.frames.GetOldest(); ok {
			h.minSeq = oldest
		}
	}
	if seq > h.maxSeq {
		h.maxSeq = seq
	}
}

// Frames returns the encoded frames for sequences (afterSeq, maxSeq] in
// order, or (nil, false) when the range has a gap and the caller must
// fall back to a snapshot.
func (h *History) Frames(afterSeq uint64) ([][]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.maxSeq == 0 || afterSeq >= h.maxSeq {
		return nil, true // Nothing missed
	}
	if afterSeq+1 < h.minSeq {
		return nil, false // Gap: oldest needed frame already evicted
	}

	frames := make([][]byte, 0, h.maxSeq-afterSeq)
	for seq := afterSeq + 1; seq <= h.maxSeq; seq++ {
		frame, ok := h.frames.Get(seq)
		if !ok {
			return nil, false
		}
		frames = append(frames, frame)
	}
	return frames, true
}

// MaxSeq returns the highest sequence number added.
func (h *History) MaxSeq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.maxSeq
}

// Len returns the number of retained frames.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frames.Len()
}
