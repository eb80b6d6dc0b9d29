// Package link is the host end of the control link: it frames commands,
// waits for the device's acknowledgements and collects the responses each
// command produced.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"slink/core"
	"slink/protocol"
)

// Ids of the two messages every device registers first.
const (
	identifyResponseID = 0
	identifyID         = protocol.IdentifyID
)

var (
	ErrClosed       = errors.New("link: closed")
	ErrNoDictionary = errors.New("link: dictionary not loaded")
	ErrUnknownName  = errors.New("link: message not in dictionary")
)

// RemoteError is a command failure reported by the device.
type RemoteError struct {
	Command string
	Code    core.ErrorCode
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("device: %s: %s", e.Command, e.Code)
}

func (e *RemoteError) Unwrap() error { return e.Code.Err() }

// Response is one message the device sent while handling a command.
type Response struct {
	Name string
	Args *protocol.Reader
}

// Client talks to one device over port.
type Client struct {
	port io.ReadWriteCloser
	log  *slog.Logger

	// Retransmit is how long a frame waits for its ack before it is sent
	// again; Retries bounds the resends.
	Retransmit time.Duration
	Retries    int

	mu   sync.Mutex
	seq  uint8
	out  []byte
	dict *Dictionary

	acks  chan uint8
	resps chan []byte
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
	err   error
}

// New starts a client reading from port. A nil logger discards output.
func New(port io.ReadWriteCloser, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Client{
		port:       port,
		log:        log,
		Retransmit: 250 * time.Millisecond,
		Retries:    4,
		seq:        protocol.SeqDest,
		acks:       make(chan uint8, 4),
		resps:      make(chan []byte, 16),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Close stops the reader and closes the port.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.stop)
		err = c.port.Close()
		<-c.done
	})
	return err
}

// Dictionary returns the dictionary fetched by Connect.
func (c *Client) Dictionary() *Dictionary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dict
}

// Connect restarts the device's sequence numbering and fetches its
// dictionary.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.seq = protocol.SeqDest
	c.dict = nil
	c.mu.Unlock()

	data, err := c.identify(ctx)
	if err != nil {
		return fmt.Errorf("identify: %w", err)
	}
	dict, err := ParseDictionary(data)
	if err != nil {
		return err
	}
	if dict.Version != protocol.Version {
		c.log.Warn("protocol version mismatch", "device", dict.Version, "host", protocol.Version)
	}
	c.mu.Lock()
	c.dict = dict
	c.mu.Unlock()
	c.log.Debug("dictionary loaded", "messages", len(dict.Messages), "bytes", len(data))
	return nil
}

func (c *Client) identify(ctx context.Context) ([]byte, error) {
	var data []byte
	for {
		payload := protocol.AppendUint(nil, identifyID)
		payload = protocol.AppendUint(payload, uint32(len(data)))
		payload = protocol.AppendUint(payload, core.MaxIdentifyChunk)

		resps, err := c.exchange(ctx, payload)
		if err != nil {
			return nil, err
		}
		var chunk []byte
		found := false
		for _, p := range resps {
			r := protocol.NewReader(p)
			if r.Uint() != identifyResponseID {
				continue
			}
			offset := r.Uint()
			b := r.Bytes()
			if err := r.Err(); err != nil {
				return nil, err
			}
			if int(offset) != len(data) {
				return nil, fmt.Errorf("chunk at offset %d, want %d", offset, len(data))
			}
			chunk, found = b, true
		}
		if !found {
			return nil, errors.New("no identify_response")
		}
		data = append(data, chunk...)
		if len(chunk) < core.MaxIdentifyChunk {
			return data, nil
		}
	}
}

// Call sends command name and returns the responses it produced. A failure
// reported by the device is returned as a *RemoteError.
func (c *Client) Call(ctx context.Context, name string, args ...uint32) ([]Response, error) {
	dict := c.Dictionary()
	if dict == nil {
		return nil, ErrNoDictionary
	}
	m, ok := dict.Lookup(name)
	if !ok || m.Response {
		return nil, fmt.Errorf("%w: %s", ErrUnknownName, name)
	}
	payload := protocol.AppendUint(nil, uint32(m.ID))
	for _, a := range args {
		payload = protocol.AppendUint(payload, a)
	}
	raw, err := c.exchange(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	out := make([]Response, 0, len(raw))
	for _, p := range raw {
		r := protocol.NewReader(p)
		rname := dict.Name(uint16(r.Uint()))
		if rname == "error" {
			code := core.ErrorCode(r.Uint())
			cmd := dict.Name(uint16(r.Uint()))
			return nil, &RemoteError{Command: cmd, Code: code}
		}
		out = append(out, Response{Name: rname, Args: r})
	}
	return out, nil
}

// Expect sends command name and returns the arguments of its response
// named want.
func (c *Client) Expect(ctx context.Context, want, name string, args ...uint32) (*protocol.Reader, error) {
	resps, err := c.Call(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	for _, r := range resps {
		if r.Name == want {
			return r.Args, nil
		}
	}
	return nil, fmt.Errorf("%s: no %s response", name, want)
}

// exchange sends one frame and waits for its ack, resending on timeout. It
// returns the payloads received before the ack.
func (c *Client) exchange(ctx context.Context, payload []byte) ([][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drain()
	var err error
	c.out, err = protocol.AppendFrame(c.out[:0], c.seq, payload)
	if err != nil {
		return nil, err
	}
	want := protocol.NextSeq(c.seq)

	for attempt := 0; ; attempt++ {
		if _, err := c.port.Write(c.out); err != nil {
			return nil, fmt.Errorf("write: %w", err)
		}
		c.log.Debug("frame sent", "seq", c.seq, "bytes", len(c.out), "attempt", attempt)

		if ok, err := c.waitAck(ctx, want); err != nil {
			return nil, err
		} else if ok {
			break
		}
		if attempt >= c.Retries {
			return nil, fmt.Errorf("no ack for seq %#x", c.seq)
		}
		c.log.Warn("retransmitting", "seq", c.seq, "attempt", attempt+1)
	}
	c.seq = want

	var out [][]byte
	for {
		select {
		case p := <-c.resps:
			out = append(out, p)
		default:
			return out, nil
		}
	}
}

func (c *Client) waitAck(ctx context.Context, want uint8) (bool, error) {
	timer := time.NewTimer(c.Retransmit)
	defer timer.Stop()
	for {
		select {
		case seq := <-c.acks:
			if seq == want {
				return true, nil
			}
		case <-timer.C:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		case <-c.done:
			if c.err != nil {
				return false, c.err
			}
			return false, ErrClosed
		}
	}
}

// drain drops acks and responses left over from an abandoned exchange.
func (c *Client) drain() {
	for {
		select {
		case <-c.acks:
		case <-c.resps:
		default:
			return
		}
	}
}

func (c *Client) readLoop() {
	defer close(c.done)
	in := protocol.NewDeframer(4 * protocol.MaxFrame)
	buf := make([]byte, 256)
	for {
		n, err := c.port.Read(buf)
		for p := buf[:n]; len(p) > 0; {
			w := in.Write(p)
			p = p[w:]
			c.deliver(in)
		}
		select {
		case <-c.stop:
			return
		default:
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			// Read timeouts surface as EOF on serial ports.
			select {
			case <-c.stop:
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}
		c.err = fmt.Errorf("read: %w", err)
		c.log.Error("link read failed", "err", err)
		return
	}
}

func (c *Client) deliver(in *protocol.Deframer) {
	for {
		f, ok := in.Next()
		if !ok {
			return
		}
		if f.IsAck() {
			select {
			case c.acks <- f.Seq:
			default:
				c.log.Warn("ack dropped", "seq", f.Seq)
			}
			continue
		}
		select {
		case c.resps <- append([]byte(nil), f.Payload...):
		default:
			c.log.Warn("response dropped", "bytes", len(f.Payload))
		}
	}
}
