package protocol

import "errors"

var (
	ErrShortBuffer = errors.New("protocol: truncated VLQ value")
	ErrStringSize  = errors.New("protocol: string longer than payload")
)

// AppendInt appends v in the link's VLQ form: seven bits per byte, most
// significant group first, high bit set on every byte but the last. Values
// in [-32, 96) take one byte.
func AppendInt(dst []byte, v int32) []byte {
	if v < -(1<<26) || v >= 3<<26 {
		dst = append(dst, byte(v>>28)&0x7F|0x80)
	}
	if v < -(1<<19) || v >= 3<<19 {
		dst = append(dst, byte(v>>21)&0x7F|0x80)
	}
	if v < -(1<<12) || v >= 3<<12 {
		dst = append(dst, byte(v>>14)&0x7F|0x80)
	}
	if v < -(1<<5) || v >= 3<<5 {
		dst = append(dst, byte(v>>7)&0x7F|0x80)
	}
	return append(dst, byte(v)&0x7F)
}

// AppendUint appends v as its 32-bit two's complement VLQ.
func AppendUint(dst []byte, v uint32) []byte {
	return AppendInt(dst, int32(v))
}

// AppendBytes appends a length-prefixed byte string.
func AppendBytes(dst, b []byte) []byte {
	dst = AppendUint(dst, uint32(len(b)))
	return append(dst, b...)
}

// AppendString appends a length-prefixed string.
func AppendString(dst []byte, s string) []byte {
	dst = AppendUint(dst, uint32(len(s)))
	return append(dst, s...)
}

// Reader decodes VLQ values from a payload. The first failure sticks: later
// reads return zero values and Err reports it.
type Reader struct {
	buf []byte
	err error
}

// NewReader returns a Reader over b. It does not copy b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Reset points the reader at b and clears its error.
func (r *Reader) Reset(b []byte) {
	r.buf = b
	r.err = nil
}

// Int reads one signed value.
func (r *Reader) Int() int32 {
	if r.err != nil {
		return 0
	}
	if len(r.buf) == 0 {
		r.err = ErrShortBuffer
		return 0
	}
	c := uint32(r.buf[0])
	r.buf = r.buf[1:]
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	for c&0x80 != 0 {
		if len(r.buf) == 0 {
			r.err = ErrShortBuffer
			return 0
		}
		c = uint32(r.buf[0])
		r.buf = r.buf[1:]
		v = v<<7 | c&0x7F
	}
	return int32(v)
}

// Uint reads one unsigned value.
func (r *Reader) Uint() uint32 { return uint32(r.Int()) }

// Bool reads a value and reports whether it is non-zero.
func (r *Reader) Bool() bool { return r.Int() != 0 }

// Bytes reads a length-prefixed byte string. The result aliases the payload.
func (r *Reader) Bytes() []byte {
	n := r.Uint()
	if r.err != nil {
		return nil
	}
	if uint32(len(r.buf)) < n {
		r.err = ErrStringSize
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

// String reads a length-prefixed string.
func (r *Reader) String() string { return string(r.Bytes()) }

// Len returns the number of undecoded bytes.
func (r *Reader) Len() int { return len(r.buf) }

// Err returns the first decoding error.
func (r *Reader) Err() error { return r.err }
