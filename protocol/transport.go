package protocol

// Handler receives one message of a frame. It decodes its own arguments
// from r and leaves r positioned at the next message id.
type Handler func(id uint32, r *Reader) error

// Transport is the device end of the link: it acknowledges host frames,
// dispatches their messages in order and frames responses.
//
// Receive and Send are foreground-only.
type Transport struct {
	in      *Deframer
	nextSeq uint8
	handler Handler
	write   func([]byte)

	onReset func()
	onError func(id uint32, err error)

	rd  Reader
	out []byte
}

// NewTransport creates a transport that hands framed bytes to write. write
// must be done with the slice when it returns.
func NewTransport(handler Handler, write func([]byte)) *Transport {
	return &Transport{
		in:      NewDeframer(4 * MaxFrame),
		nextSeq: SeqDest,
		handler: handler,
		write:   write,
		out:     make([]byte, 0, MaxFrame),
	}
}

// SetResetCallback installs a function called when the host restarts its
// sequence numbering.
func (t *Transport) SetResetCallback(fn func()) { t.onReset = fn }

// SetErrorCallback installs a function called for every failed message.
func (t *Transport) SetErrorCallback(fn func(id uint32, err error)) { t.onError = fn }

// Receive consumes bytes from the wire, processing every complete frame.
// It returns how many of p were buffered.
func (t *Transport) Receive(p []byte) int {
	n := t.in.Write(p)
	resyncs := t.in.Resyncs()
	for {
		f, ok := t.in.Next()
		if t.in.Resyncs() != resyncs {
			resyncs = t.in.Resyncs()
			t.ack()
		}
		if !ok {
			return n
		}
		if f.Seq == SeqDest && t.nextSeq != SeqDest && opensSession(f.Payload) {
			t.nextSeq = SeqDest
			if t.onReset != nil {
				t.onReset()
			}
		}
		if f.Seq == t.nextSeq {
			t.nextSeq = NextSeq(f.Seq)
			t.dispatch(f.Payload)
		}
		t.ack()
	}
}

// opensSession reports whether payload is the first frame of a host
// connect. Any other frame at SeqDest is a retransmission.
func opensSession(payload []byte) bool {
	var r Reader
	r.Reset(payload)
	id, offset := r.Uint(), r.Uint()
	return r.Err() == nil && id == IdentifyID && offset == 0
}

func (t *Transport) dispatch(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.in.Reset()
		}
	}()

	t.rd.Reset(payload)
	for t.rd.Len() > 0 {
		id := t.rd.Uint()
		if err := t.rd.Err(); err != nil {
			t.fail(id, err)
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.handler(id, &t.rd); err != nil {
			t.fail(id, err)
			return
		}
		if err := t.rd.Err(); err != nil {
			t.fail(id, err)
			return
		}
	}
}

func (t *Transport) fail(id uint32, err error) {
	if t.onError != nil {
		t.onError(id, err)
	}
}

func (t *Transport) ack() {
	t.out, _ = AppendFrame(t.out[:0], t.nextSeq, nil)
	t.write(t.out)
}

// Send frames one response payload.
func (t *Transport) Send(payload []byte) error {
	var err error
	t.out, err = AppendFrame(t.out[:0], t.nextSeq, payload)
	if err != nil {
		return err
	}
	t.write(t.out)
	return nil
}

// Reset returns the transport to its power-on state.
func (t *Transport) Reset() {
	t.in.Reset()
	t.nextSeq = SeqDest
	if t.onReset != nil {
		t.onReset()
	}
}
