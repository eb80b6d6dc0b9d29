package protocol

// FIFO is a fixed-capacity byte queue that keeps its content contiguous,
// so a frame can always be parsed in place. Writes compact the buffer when
// the tail runs out; nothing allocates after NewFIFO.
type FIFO struct {
	buf  []byte
	r, w int
}

// NewFIFO creates a FIFO holding up to capacity bytes.
func NewFIFO(capacity int) *FIFO {
	return &FIFO{buf: make([]byte, capacity)}
}

// Write appends as much of p as fits and returns the count stored.
func (f *FIFO) Write(p []byte) int {
	if len(f.buf)-f.w < len(p) && f.r > 0 {
		n := copy(f.buf, f.buf[f.r:f.w])
		f.r, f.w = 0, n
	}
	n := copy(f.buf[f.w:], p)
	f.w += n
	return n
}

// Bytes returns the queued bytes. The slice is valid until the next Write.
func (f *FIFO) Bytes() []byte { return f.buf[f.r:f.w] }

// Discard drops n bytes from the front.
func (f *FIFO) Discard(n int) {
	if n >= f.w-f.r {
		f.r, f.w = 0, 0
		return
	}
	f.r += n
}

// Len returns the number of queued bytes.
func (f *FIFO) Len() int { return f.w - f.r }

// Free returns how many bytes a Write can still take.
func (f *FIFO) Free() int { return len(f.buf) - f.Len() }

// Reset empties the FIFO.
func (f *FIFO) Reset() { f.r, f.w = 0, 0 }
