package stream

import "unicode/utf8"

// Ring is a fixed-capacity circular buffer that keeps the most recent
// output. It is not safe for concurrent use; the hub guards it with the
// segment lock.
type Ring struct {
	data   []byte
	start  int
	length int
}

// NewRing creates a ring holding at most size bytes.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1
	}
	return &Ring{data: make([]byte, size)}
}

// Write appends p, overwriting the oldest bytes once the ring is full.
func (r *Ring) Write(p []byte) (int, error) {
	n := len(p)
	size := len(r.data)
	if n >= size {
		copy(r.data, p[n-size:])
		r.start, r.length = 0, size
		return n, nil
	}

	tail := (r.start + r.length) % size
	first := copy(r.data[tail:], p)
	copy(r.data, p[first:])

	r.length += n
	if r.length > size {
		r.start = (r.start + r.length - size) % size
		r.length = size
	}
	return n, nil
}

// WriteString appends s.
func (r *Ring) WriteString(s string) {
	_, _ = r.Write([]byte(s))
}

// Len returns the number of buffered bytes.
func (r *Ring) Len() int {
	return r.length
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.data)
}

// Bytes returns a copy of the buffered bytes, oldest first. Unlike a
// draining read the ring is left untouched, so every subscriber sees the
// same history.
func (r *Ring) Bytes() []byte {
	out := make([]byte, r.length)
	end := r.start + r.length
	if end <= len(r.data) {
		copy(out, r.data[r.start:end])
		return out
	}
	n := copy(out, r.data[r.start:])
	copy(out[n:], r.data[:end-len(r.data)])
	return out
}

// String returns the buffered text. Continuation bytes of a character whose
// first byte was overwritten are dropped from the front.
func (r *Ring) String() string {
	b := r.Bytes()
	for i := 0; i < utf8.UTFMax-1 && len(b) > 0 && !utf8.RuneStart(b[0]); i++ {
		b = b[1:]
	}
	return string(b)
}

// Reset empties the ring.
func (r *Ring) Reset() {
	r.start, r.length = 0, 0
}
