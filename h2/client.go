package http2

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

// client pools Conn instances to a single remote address and exposes
// a fasthttp.TransportFunc-shaped Do, so a *fasthttp.HostClient can
// speak HTTP/2 without knowing anything about streams or frames.
//
// https://github.com/valyala/fasthttp: type TransportFunc func(*Request, *Response) error
type client struct {
	d     *Dialer
	onRTT func(time.Duration)

	conns connPool
}

func createClient(d *Dialer) *client {
	return &client{d: d}
}

// connPool keeps idle Conns around so consecutive requests to the
// same host reuse one HTTP/2 connection's streams instead of
// re-dialing and re-handshaking every time.
type connPool struct {
	mu    sync.Mutex
	conns []*Conn
}

// Init is a no-op placeholder kept for symmetry with fasthttp's own
// pool types; connPool's zero value is already usable.
func (p *connPool) Init() {}

func (p *connPool) get(d *Dialer, onRTT func(time.Duration)) (*Conn, error) {
	p.mu.Lock()
	for len(p.conns) > 0 {
		c := p.conns[len(p.conns)-1]
		p.conns = p.conns[:len(p.conns)-1]
		p.mu.Unlock()

		if !c.Closed() {
			return c, nil
		}

		p.mu.Lock()
	}
	p.mu.Unlock()

	c, err := d.Dial(ConnOpts{})
	if err != nil {
		return nil, err
	}

	c.onRTT = onRTT

	return c, nil
}

func (p *connPool) put(c *Conn) {
	if c.Closed() {
		return
	}

	p.mu.Lock()
	p.conns = append(p.conns, c)
	p.mu.Unlock()
}

// Do sends req over a pooled HTTP/2 connection and blocks until res
// has been fully populated or the stream errors out.
func (cl *client) Do(req *fasthttp.Request, res *fasthttp.Response) error {
	c, err := cl.conns.get(cl.d, cl.onRTT)
	if err != nil {
		return err
	}

	ctx := &Ctx{
		Request:  req,
		Response: res,
		Err:      make(chan error, 1),
	}

	c.Write(ctx)

	err = <-ctx.Err
	if err == nil || errors.Is(err, io.EOF) {
		cl.conns.put(c)
		if err != nil {
			err = nil
		}
	}

	return err
}
