package protocol

import "errors"

// ErrFrameTooLong is returned when a payload does not fit one frame.
var ErrFrameTooLong = errors.New("protocol: payload exceeds frame size")

// Frame is one decoded frame. Payload aliases the deframer's buffer and is
// only valid until the next call into the deframer.
type Frame struct {
	Seq     uint8
	Payload []byte
}

// IsAck reports whether the frame carries no messages.
func (f Frame) IsAck() bool { return len(f.Payload) == 0 }

// AppendFrame appends a complete frame around payload to dst.
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return dst, ErrFrameTooLong
	}
	start := len(dst)
	dst = append(dst, byte(len(payload)+MinFrame), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, byte(crc>>8), byte(crc), SyncByte), nil
}

// Deframer pulls valid frames out of a byte stream. On any framing error it
// drops bytes up to the next sync byte and starts again.
type Deframer struct {
	in      *FIFO
	synced  bool
	resyncs uint32
	crcErrs uint32
}

// NewDeframer creates a deframer buffering up to capacity bytes.
func NewDeframer(capacity int) *Deframer {
	if capacity < MaxFrame {
		capacity = MaxFrame
	}
	return &Deframer{in: NewFIFO(capacity), synced: true}
}

// Write queues received bytes and returns how many were accepted.
func (d *Deframer) Write(p []byte) int { return d.in.Write(p) }

// Free returns the room left for received bytes.
func (d *Deframer) Free() int { return d.in.Free() }

// Resyncs counts framing errors that forced a search for a sync byte.
func (d *Deframer) Resyncs() uint32 { return d.resyncs }

// CRCErrors counts frames dropped for a bad checksum.
func (d *Deframer) CRCErrors() uint32 { return d.crcErrs }

// Next returns the next complete frame, or false when more bytes are
// needed.
func (d *Deframer) Next() (Frame, bool) {
	for {
		data := d.in.Bytes()
		if len(data) == 0 {
			return Frame{}, false
		}
		if !d.synced {
			i := indexSync(data)
			if i < 0 {
				d.in.Discard(len(data))
				return Frame{}, false
			}
			d.in.Discard(i + 1)
			d.synced = true
			continue
		}
		if data[0] == SyncByte {
			d.in.Discard(1)
			continue
		}
		if len(data) < MinFrame {
			return Frame{}, false
		}
		n := int(data[posLen])
		if n < MinFrame || n > MaxFrame || data[posSeq]&^SeqMask != SeqDest {
			d.lose()
			continue
		}
		if len(data) < n {
			return Frame{}, false
		}
		if data[n-1] != SyncByte {
			d.lose()
			continue
		}
		crc := uint16(data[n-3])<<8 | uint16(data[n-2])
		if crc != CRC16(data[:n-TrailerSize]) {
			d.crcErrs++
			d.lose()
			continue
		}
		f := Frame{Seq: data[posSeq], Payload: data[HeaderSize : n-TrailerSize]}
		d.in.Discard(n)
		return f, true
	}
}

func (d *Deframer) lose() {
	d.synced = false
	d.resyncs++
}

// Reset drops buffered bytes and assumes the stream is synchronized.
func (d *Deframer) Reset() {
	d.in.Reset()
	d.synced = true
}

func indexSync(b []byte) int {
	for i, c := range b {
		if c == SyncByte {
			return i
		}
	}
	return -1
}
