// Package transport defines the byte-stream contract the ws and h2
// engines run on top of: StreamReader/StreamWriter for plain reads and
// all-or-nothing writes (with a vectored fast path), and an optional
// ChannelBinder hook for TLS channel-bound authentication. TLS itself is
// out of scope — the engines only ever see *tls.Conn through these two
// interfaces, the same way the teacher's conn.go treats its net.Conn.
package transport

import (
	"io"
	"net"
)

// StreamReader is the read half of a duplex byte stream. Read must
// return 0 with a non-nil error (typically io.EOF) iff the peer closed
// the stream cleanly; a spurious short read (n < len(buf), err == nil)
// is allowed and callers must loop.
type StreamReader interface {
	Read(buf []byte) (int, error)
}

// StreamWriter is the write half. WriteAll must write the entire payload
// or return an error; partial writes are never surfaced to the caller.
type StreamWriter interface {
	WriteAll(b []byte) error
	WriteAllVectored(bufs [][]byte) error
}

// ChannelBinder is implemented by transports that can expose a
// tls-server-end-point channel-binding value (RFC 5929) for layered
// authentication. Plain TCP and in-memory pipes do not implement it.
type ChannelBinder interface {
	TLSServerEndPoint() ([]byte, bool)
}

// Conn adapts a net.Conn (TCP, Unix, or *tls.Conn) to StreamReader and
// StreamWriter, using net.Buffers for the vectored write path so that
// WriteAllVectored maps to a single writev(2) on platforms that support
// it, exactly as the contract requires.
type Conn struct {
	net.Conn
}

// New wraps c as a transport.Conn.
func New(c net.Conn) *Conn { return &Conn{Conn: c} }

// WriteAll writes the entire payload, loop-retrying on short writes,
// which net.Conn.Write does not do by contract but some layered
// transports (rate limiters, pipes) may still produce.
func (c *Conn) WriteAll(b []byte) error {
	for len(b) > 0 {
		n, err := c.Conn.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// WriteAllVectored writes bufs with a single net.Buffers.WriteTo call
// when the underlying connection exposes one (TCP sockets do, via
// writev); it falls back to sequential WriteAll calls otherwise.
func (c *Conn) WriteAllVectored(bufs [][]byte) error {
	nb := make(net.Buffers, len(bufs))
	for i, b := range bufs {
		nb[i] = b
	}

	if _, ok := c.Conn.(io.ReaderFrom); ok {
		_, err := nb.WriteTo(c.Conn)
		return err
	}

	for _, b := range bufs {
		if err := c.WriteAll(b); err != nil {
			return err
		}
	}
	return nil
}

// TLSServerEndPoint implements ChannelBinder for connections whose
// underlying type exposes it (typically *tls.Conn via a thin adaptor the
// embedder supplies); plain net.Conn never does.
func (c *Conn) TLSServerEndPoint() ([]byte, bool) {
	if b, ok := c.Conn.(ChannelBinder); ok {
		return b.TLSServerEndPoint()
	}
	return nil, false
}

// Pipe is an in-memory duplex stream, used by tests and by embedders
// that bridge the engines onto something other than a real socket (a
// multiplexed substream, for instance).
type Pipe struct {
	r io.Reader
	w io.Writer
}

// NewPipe builds a Pipe over an existing reader/writer pair (e.g. the two
// ends of an io.Pipe, or a bytes.Buffer for one-shot tests).
func NewPipe(r io.Reader, w io.Writer) *Pipe { return &Pipe{r: r, w: w} }

func (p *Pipe) Read(buf []byte) (int, error) { return p.r.Read(buf) }

func (p *Pipe) WriteAll(b []byte) error {
	for len(b) > 0 {
		n, err := p.w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func (p *Pipe) WriteAllVectored(bufs [][]byte) error {
	for _, b := range bufs {
		if err := p.WriteAll(b); err != nil {
			return err
		}
	}
	return nil
}
