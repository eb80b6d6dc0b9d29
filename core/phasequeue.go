package core

// Phase queues hand deltas from the foreground loop to a compare interrupt.
// Both variants are single-producer/single-consumer and lock-free: the
// producer owns the write cursor, the consumer owns the read cursor, and
// each side publishes its cursor with an atomic store after touching the
// slot it owns.

import (
	"context"
	"runtime"
	"sync/atomic"
)

// Producer is the foreground side of a queue.
type Producer[T any] interface {
	// TryPush stores v, or returns false when the queue is full.
	TryPush(v T) bool
}

// Consumer is the interrupt side of a queue. Pop never blocks.
type Consumer[T any] interface {
	Pop() (T, bool)
}

// Queue is a bounded SPSC queue. Reset is only safe while the consumer's
// interrupt is masked.
type Queue[T any] interface {
	Producer[T]
	Consumer[T]
	Len() int
	Cap() int
	IsEmpty() bool
	IsFull() bool
	Reset()
}

// Yield is called between attempts while a producer waits for space.
// TinyGo and the host runtime both schedule other goroutines here.
var Yield = runtime.Gosched

// PushWait is the blocking producer policy: it spins until v is stored.
// It returns ctx.Err() if the context ends first; nothing is dropped.
// stalled is called once if the first attempt found the queue full.
func PushWait[T any](ctx context.Context, p Producer[T], v T, stalled func()) error {
	if p.TryPush(v) {
		return nil
	}
	if stalled != nil {
		stalled()
	}
	for !p.TryPush(v) {
		if err := ctx.Err(); err != nil {
			return err
		}
		Yield()
	}
	return nil
}

// Ring is the wraparound variant: item granularity, FIFO order.
type Ring[T any] struct {
	buf  []T
	head atomic.Uint32 // next slot to write, producer-owned
	tail atomic.Uint32 // next slot to read, consumer-owned
}

// NewRing allocates a ring holding up to capacity items.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	// One slot stays free so full and empty are distinguishable.
	return &Ring[T]{buf: make([]T, capacity+1)}
}

func (r *Ring[T]) next(i uint32) uint32 {
	i++
	if i == uint32(len(r.buf)) {
		return 0
	}
	return i
}

func (r *Ring[T]) TryPush(v T) bool {
	h := r.head.Load()
	n := r.next(h)
	if n == r.tail.Load() {
		return false
	}
	r.buf[h] = v
	r.head.Store(n)
	return true
}

func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	t := r.tail.Load()
	if t == r.head.Load() {
		return zero, false
	}
	v := r.buf[t]
	r.buf[t] = zero
	r.tail.Store(r.next(t))
	return v, true
}

func (r *Ring[T]) Len() int {
	h, t := int(r.head.Load()), int(r.tail.Load())
	if h >= t {
		return h - t
	}
	return len(r.buf) - t + h
}

func (r *Ring[T]) Cap() int { return len(r.buf) - 1 }

func (r *Ring[T]) IsEmpty() bool { return r.head.Load() == r.tail.Load() }

func (r *Ring[T]) IsFull() bool { return r.next(r.head.Load()) == r.tail.Load() }

func (r *Ring[T]) Reset() {
	r.head.Store(0)
	r.tail.Store(0)
	clear(r.buf)
}

// page is one half of a DoubleBuffer.
type page[T any] struct {
	buf []T
	n   atomic.Uint32 // items written, producer appends, consumer resets
	r   uint32        // items read, consumer-only
}

// DoubleBuffer is the page variant: the producer fills the write page while
// the consumer drains the read page; when the read page runs dry the
// consumer flips the roles. Items come out in page order, then push order.
type DoubleBuffer[T any] struct {
	pages [2]page[T]
	read  atomic.Uint32 // index of the read page
	flips atomic.Uint32
}

// NewDoubleBuffer allocates two pages of pageSize items each.
func NewDoubleBuffer[T any](pageSize int) *DoubleBuffer[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	d := &DoubleBuffer[T]{}
	d.pages[0].buf = make([]T, pageSize)
	d.pages[1].buf = make([]T, pageSize)
	return d
}

func (d *DoubleBuffer[T]) TryPush(v T) bool {
	for {
		p := &d.pages[1-d.read.Load()]
		n := p.n.Load()
		if int(n) >= len(p.buf) {
			return false
		}
		p.buf[n] = v
		// Fails only if the consumer recycled this page under us; the
		// page index is reloaded and the push retried on the new write page.
		if p.n.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (d *DoubleBuffer[T]) Pop() (T, bool) {
	var zero T
	r := d.read.Load()
	p := &d.pages[r]
	if p.r < p.n.Load() {
		v := p.buf[p.r]
		p.r++
		return v, true
	}
	if d.pages[1-r].n.Load() == 0 {
		return zero, false
	}
	if !d.flip(r, p) {
		// The producer appended to the read page after it was seen empty.
		v := p.buf[p.r]
		p.r++
		return v, true
	}
	p = &d.pages[1-r]
	v := p.buf[p.r]
	p.r++
	return v, true
}

// flip recycles the drained read page as the new write page and publishes
// the other page for reading. It reports false when the drained page grew
// before it could be recycled.
func (d *DoubleBuffer[T]) flip(r uint32, drained *page[T]) bool {
	if !drained.n.CompareAndSwap(drained.r, 0) {
		return false
	}
	drained.r = 0
	d.read.Store(1 - r)
	d.flips.Add(1)
	return true
}

// Flips returns how many page flips have happened.
func (d *DoubleBuffer[T]) Flips() uint32 { return d.flips.Load() }

func (d *DoubleBuffer[T]) Len() int {
	r := d.read.Load()
	rp, wp := &d.pages[r], &d.pages[1-r]
	return int(rp.n.Load()-rp.r) + int(wp.n.Load())
}

func (d *DoubleBuffer[T]) Cap() int { return 2 * len(d.pages[0].buf) }

func (d *DoubleBuffer[T]) IsEmpty() bool { return d.Len() == 0 }

// IsFull reports whether the producer would block: the write page is full.
func (d *DoubleBuffer[T]) IsFull() bool {
	p := &d.pages[1-d.read.Load()]
	return int(p.n.Load()) >= len(p.buf)
}

func (d *DoubleBuffer[T]) Reset() {
	for i := range d.pages {
		d.pages[i].n.Store(0)
		d.pages[i].r = 0
		clear(d.pages[i].buf)
	}
	d.read.Store(0)
	d.flips.Store(0)
}
