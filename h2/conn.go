package http2

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/c410-f3r/wtx-sub004/internal/wire"
)

// ConnOpts defines the connection options.
type ConnOpts struct {
	// PingInterval defines the interval in which the client will ping the server.
	//
	// An interval of 0 will make the library to use DefaultPingInterval. Because ping intervals can't be disabled
	PingInterval time.Duration
	// DisablePingChecking ...
	DisablePingChecking bool
	// OnDisconnect is a callback that fires when the Conn disconnects.
	OnDisconnect func(c *Conn)
}

// Handshake performs an HTTP/2 handshake. That means, it will send
// the preface if `preface` is true, send a settings frame and a
// window update frame (for the connection's window).
func Handshake(preface bool, bw *bufio.Writer, st *Settings, maxWin int32) error {
	if preface {
		err := WritePreface(bw)
		if err != nil {
			return err
		}
	}

	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	// write the settings
	st2 := &Settings{}
	st.CopyTo(st2)

	fr.SetBody(st2)

	_, err := fr.WriteTo(bw)
	if err == nil {
		// then send a window update
		fr = AcquireFrameHeader()
		wu := AcquireFrame(FrameWindowUpdate).(*WindowUpdate)
		wu.SetIncrement(int(maxWin))

		fr.SetBody(wu)

		_, err = fr.WriteTo(bw)
		if err == nil {
			err = bw.Flush()
		}
	}

	return err
}

// Conn represents a raw HTTP/2 connection over TLS + TCP.
type Conn struct {
	c net.Conn

	br *bufio.Reader
	bw *bufio.Writer

	enc *HPACK
	dec *HPACK

	nextID uint32

	serverWindow       int32
	serverStreamWindow int32

	maxWindow     int32
	currentWindow int32

	openStreams int32

	current Settings
	serverS Settings

	// streams maps a stream id to its *clientStream for as long as the
	// request/response exchange is in flight, the client-side mirror of
	// serverConn's strms map. Every entry's *Stream walks the same
	// StreamStateIdle->...->StreamStateClosed machine server.go drives,
	// and carries its own send/recv flow-control windows instead of the
	// connection owning a single pair on streams' behalf.
	streams sync.Map

	in  chan *Ctx
	out chan *FrameHeader

	pingInterval time.Duration

	unacks      int
	disableAcks bool

	lastErr      error
	onDisconnect func(*Conn)
	onRTT        func(time.Duration)

	closed uint64
}

// NewConn returns a new HTTP/2 connection.
// To start using the connection you need to call Handshake.
func NewConn(c net.Conn, opts ConnOpts) *Conn {
	nc := &Conn{
		c:             c,
		br:            bufio.NewReaderSize(c, 4096),
		bw:            bufio.NewWriterSize(c, maxFrameSize),
		enc:           AcquireHPACK(),
		dec:           AcquireHPACK(),
		nextID:        1,
		serverWindow:  defaultWindowSize,
		maxWindow:     1 << 20,
		currentWindow: 1 << 20,
		in:            make(chan *Ctx, 128),
		out:           make(chan *FrameHeader, 128),
		pingInterval:  opts.PingInterval,
		disableAcks:   opts.DisablePingChecking,
		onDisconnect:  opts.OnDisconnect,
	}

	nc.current.SetMaxWindowSize(1 << 20)
	nc.current.SetPush(false)

	return nc
}

// clientStream pairs a stream's state-machine/flow-control bookkeeping
// with the pending *Ctx its caller is blocked on, the value stored in
// Conn.streams.
type clientStream struct {
	strm *Stream
	ctx  *Ctx
}

// Dialer allows to create HTTP/2 connections by specifying an address and tls configuration.
type Dialer struct {
	// Addr is the server's address in the form: `host:port`.
	Addr string

	// TLSConfig is the tls configuration.
	//
	// If TLSConfig is nil, a default one will be defined on the Dial call.
	TLSConfig *tls.Config

	// PingInterval defines the interval in which the client will ping the server.
	//
	// An interval of 0 will make the library to use DefaultPingInterval. Because ping intervals can't be disabled.
	PingInterval time.Duration
}

func (d *Dialer) tryDial() (net.Conn, error) {
	if d.TLSConfig == nil || !func() bool {
		for _, proto := range d.TLSConfig.NextProtos {
			if proto == "h2" {
				return true
			}
		}

		return false
	}() {
		configureDialer(d)
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", d.Addr)
	if err != nil {
		return nil, err
	}

	c, err := net.DialTCP("tcp", nil, tcpAddr)
	if err != nil {
		return nil, err
	}

	tlsConn := tls.Client(c, d.TLSConfig)

	if err := tlsConn.Handshake(); err != nil {
		_ = c.Close()
		return nil, err
	}

	if tlsConn.ConnectionState().NegotiatedProtocol != "h2" {
		_ = c.Close()
		return nil, ErrServerSupport
	}

	return tlsConn, nil
}

// Dial creates an HTTP/2 connection or returns an error.
//
// An expected error is ErrServerSupport.
func (d *Dialer) Dial(opts ConnOpts) (*Conn, error) {
	c, err := d.tryDial()
	if err != nil {
		return nil, err
	}

	nc := NewConn(c, opts)

	err = nc.Handshake()
	return nc, err
}

// SetOnDisconnect sets the callback that will fire when the HTTP/2 connection is closed.
func (c *Conn) SetOnDisconnect(cb func(*Conn)) {
	c.onDisconnect = cb
}

// LastErr returns the last registered error in case the connection was closed by the server.
func (c *Conn) LastErr() error {
	return c.lastErr
}

// Handshake will perform the necessary handshake to establish the connection
// with the server. If an error is returned you can assume the TCP connection has been closed.
func (c *Conn) Handshake() error {
	var err error

	if err = Handshake(true, c.bw, &c.current, c.maxWindow-65535); err != nil {
		_ = c.c.Close()
		return err
	}

	var fr *FrameHeader

	if fr, err = ReadFrameFrom(c.br); err == nil && fr.Type() != FrameSettings {
		_ = c.c.Close()
		return fmt.Errorf("unexpected frame, expected settings, got %s", fr.Type())
	} else if err == nil {
		st := fr.Body().(*Settings)
		if !st.IsAck() {
			st.CopyTo(&c.serverS)

			c.serverStreamWindow += int32(c.serverS.MaxWindowSize())
			if st.HeaderTableSize() <= defaultHeaderTableSize {
				c.enc.SetMaxTableSize(int(st.HeaderTableSize()))
			}

			// reply back
			fr = AcquireFrameHeader()

			stRes := AcquireFrame(FrameSettings).(*Settings)
			stRes.SetAck(true)

			fr.SetBody(stRes)

			if _, err = fr.WriteTo(c.bw); err == nil {
				err = c.bw.Flush()
			}

			ReleaseFrameHeader(fr)
		}
	}

	if err != nil {
		_ = c.Close()
	} else {
		ReleaseFrameHeader(fr)

		go c.writeLoop()
		go c.readLoop()
	}

	return err
}

// CanOpenStream returns whether the client will be able to open a new stream or not.
func (c *Conn) CanOpenStream() bool {
	return atomic.LoadInt32(&c.openStreams) < int32(c.serverS.MaxConcurrentStreams())
}

// Closed indicates whether the connection is closed or not.
func (c *Conn) Closed() bool {
	return atomic.LoadUint64(&c.closed) == 1
}

// Close closes the connection gracefully, sending a GoAway message
// and then closing the underlying TCP connection.
func (c *Conn) Close() error {
	if !atomic.CompareAndSwapUint64(&c.closed, 0, 1) {
		return io.EOF
	}

	close(c.in)

	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	ga := AcquireFrame(FrameGoAway).(*GoAway)
	ga.SetStream(0)
	ga.SetCode(NoError)

	fr.SetBody(ga)

	_, err := fr.WriteTo(c.bw)
	if err == nil {
		err = c.bw.Flush()
	}

	_ = c.c.Close()

	if c.onDisconnect != nil {
		c.onDisconnect(c)
	}

	return err
}

// Write queues the request to be sent to the server.
//
// Check if `c` has been previously closed before accessing this function.
func (c *Conn) Write(r *Ctx) {
	c.in <- r
}

type WriteError struct {
	err error
}

func (we WriteError) Error() string {
	return fmt.Sprintf("writing error: %s", we.err)
}

func (we WriteError) Unwrap() error {
	return we.err
}

func (we WriteError) Is(target error) bool {
	return errors.Is(we.err, target)
}

func (we WriteError) As(target interface{}) bool {
	return errors.As(we.err, target)
}

func (c *Conn) writeLoop() {
	defer func() { _ = c.Close() }()

	if c.pingInterval <= 0 {
		c.pingInterval = DefaultPingInterval
	}

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	var lastErr error

loop:
	for {
		select {
		case r, ok := <-c.in: // sending requests
			if !ok {
				break loop
			}

			req := r.Request

			uid, strm, err := c.writeRequest(req)
			if err != nil {
				r.Err <- err

				if errors.Is(err, ErrNotAvailableStreams) {
					continue
				}

				lastErr = WriteError{err}

				break loop
			}

			c.streams.Store(uid, &clientStream{strm: strm, ctx: r})
		case fr := <-c.out: // generic output
			if _, err := fr.WriteTo(c.bw); err == nil {
				if err = c.bw.Flush(); err != nil {
					lastErr = WriteError{err}
					break loop
				}
			} else {
				lastErr = WriteError{err}
				break loop
			}

			ReleaseFrameHeader(fr)
		case <-ticker.C: // ping
			if err := c.writePing(); err != nil {
				lastErr = WriteError{err}
				break loop
			}
		}

		if !c.disableAcks && c.unacks >= 3 {
			lastErr = ErrTimeout
			break loop
		}
	}

	if lastErr == nil {
		lastErr = io.EOF
	}

	// send eofs to pending requests
	c.streams.Range(func(_, v interface{}) bool {
		cs := v.(*clientStream)
		cs.ctx.Err <- lastErr
		return true
	})
}

func (c *Conn) finish(cs *clientStream, stream uint32, err error) {
	atomic.AddInt32(&c.openStreams, -1)

	cs.ctx.Err <- err

	c.streams.Delete(stream)
	streamPool.Put(cs.strm)

	close(cs.ctx.Err)
}

func (c *Conn) readLoop() {
	defer func() { _ = c.Close() }()

	for {
		fr, err := c.readNext()
		if err != nil {
			c.lastErr = err
			break
		}

		// TODO: panic otherwise?
		if csi, ok := c.streams.Load(fr.Stream()); ok {
			cs := csi.(*clientStream)

			err := c.readStream(fr, cs.strm, cs.ctx.Response)
			if err == nil {
				if fr.Flags().Has(FlagEndStream) {
					if cs.strm.State() == StreamStateHalfClosedLocal {
						cs.strm.SetState(StreamStateClosed)
					} else {
						cs.strm.SetState(StreamStateHalfClosedRemote)
					}
					c.finish(cs, fr.Stream(), nil)
				}
			} else {
				cs.strm.SetState(StreamStateClosed)
				c.finish(cs, fr.Stream(), err)

				fmt.Fprintf(os.Stderr, "%s. payload=%v\n", err, fr.payload)

				if errors.Is(err, FlowControlError) {
					break
				}
			}
		}

		ReleaseFrameHeader(fr)
	}
}

func (c *Conn) writeRequest(req *fasthttp.Request) (uint32, *Stream, error) {
	if !c.CanOpenStream() {
		return 0, nil, ErrNotAvailableStreams
	}

	hasBody := len(req.Body()) != 0

	enc := c.enc

	id := c.nextID
	c.nextID += 2

	// strm walks StreamStateIdle->Open->HalfClosedLocal->Closed across
	// this call and readStream/readLoop, and carries its own send/recv
	// windows seeded from the last negotiated SETTINGS on each side,
	// instead of the connection tracking one pair of windows for every
	// stream at once.
	strm := NewStream(id, int32(c.serverS.MaxWindowSize()))
	strm.SetRecvWindow(c.maxWindow)
	strm.SetState(StreamStateOpen)
	strm.SetStartedAt(time.Now())

	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	fr.SetStream(id)

	h := AcquireFrame(FrameHeaders).(*Headers)
	fr.SetBody(h)

	hf := AcquireHeaderField()

	hf.SetBytes(StringAuthority, req.URI().Host())
	enc.AppendHeaderField(h, hf, true)

	hf.SetBytes(StringMethod, req.Header.Method())
	enc.AppendHeaderField(h, hf, true)

	hf.SetBytes(StringPath, req.URI().RequestURI())
	enc.AppendHeaderField(h, hf, true)

	hf.SetBytes(StringScheme, req.URI().Scheme())
	enc.AppendHeaderField(h, hf, true)

	hf.SetBytes(StringUserAgent, req.Header.UserAgent())
	enc.AppendHeaderField(h, hf, true)

	req.Header.VisitAll(func(k, v []byte) {
		if bytes.EqualFold(k, StringUserAgent) {
			return
		}

		hf.SetBytes(ToLower(k), v)
		enc.AppendHeaderField(h, hf, false)
	})

	h.SetPadding(false)
	h.SetEndStream(!hasBody)
	h.SetEndHeaders(true)

	_, err := fr.WriteTo(c.bw)
	if err == nil && hasBody {
		// release headers bc it's going to get replaced by the data frame
		ReleaseFrame(h)

		err = writeData(c, c.bw, fr, strm, req.Body())
	}

	if err == nil {
		err = c.bw.Flush()
		if err == nil {
			atomic.AddInt32(&c.openStreams, 1)
			strm.SetState(StreamStateHalfClosedLocal)
		}
	}

	if err != nil {
		c.lastErr = err
		streamPool.Put(strm)
		strm = nil
	}

	ReleaseHeaderField(hf)

	return id, strm, err
}

// writeData chunks body into DATA frames no larger than maxFrameSize,
// bounded on every iteration by both strm's send window and the
// connection-level send window c.serverWindow (the default 65,535 octets
// plus what the server granted via stream-0 WINDOW_UPDATEs), parking on
// strm.Waker() while either one has no room left — the same dual-window rule
// the server's write scheduler enforces in the other direction.
func writeData(c *Conn, bw *bufio.Writer, fh *FrameHeader, strm *Stream, body []byte) (err error) {
	data := AcquireFrame(FrameData).(*Data)
	fh.SetBody(data)

	for len(body) > 0 && err == nil {
		for strm.SendWindow() <= 0 || atomic.LoadInt32(&c.serverWindow) <= 0 {
			<-strm.Waker()
		}

		step := maxFrameSize
		if step > len(body) {
			step = len(body)
		}
		if win := int(strm.SendWindow()); step > win {
			step = win
		}
		if win := int(atomic.LoadInt32(&c.serverWindow)); step > win {
			step = win
		}

		chunk := body[:step]
		body = body[step:]

		strm.ConsumeSendWindow(int32(step))
		atomic.AddInt32(&c.serverWindow, -int32(step))

		data.SetEndStream(len(body) == 0)
		data.SetPadding(false)
		data.SetData(chunk)

		_, err = fh.WriteTo(bw)
	}

	return err
}

func (c *Conn) readNext() (fr *FrameHeader, err error) {
	for err == nil {
		fr, err = ReadFrameFrom(c.br)
		if err != nil {
			break
		}

		if fr.Stream() != 0 {
			break
		}

		switch fr.Type() {
		case FrameSettings:
			st := fr.Body().(*Settings)
			if !st.IsAck() { // if has ack, just ignore
				c.handleSettings(st)
			}
		case FrameWindowUpdate:
			win := int32(fr.Body().(*WindowUpdate).Increment())

			atomic.AddInt32(&c.serverWindow, win)
			// a conn-level grant may be what every stalled stream was
			// waiting on, not just the one a per-stream WINDOW_UPDATE
			// would target, so wake every stream blocked in writeData.
			c.streams.Range(func(_, v interface{}) bool {
				v.(*clientStream).strm.Wake()
				return true
			})
		case FramePing:
			ping := fr.Body().(*Ping)
			if !ping.IsAck() {
				c.handlePing(ping)
			} else {
				c.unacks--

				if c.onRTT != nil {
					sentAt := int64(wire.Uint64(ping.Data()))
					c.onRTT(time.Duration(time.Now().UnixNano() - sentAt))
				}
			}
		case FrameGoAway:
			err = fr.Body().(*GoAway)
			_ = c.Close()
		}

		ReleaseFrameHeader(fr)
	}

	return
}

var ErrTimeout = errors.New("server is not replying to pings")

func (c *Conn) writePing() error {
	fr := AcquireFrameHeader()
	defer ReleaseFrameHeader(fr)

	ping := AcquireFrame(FramePing).(*Ping)
	ping.SetCurrentTime()

	fr.SetBody(ping)

	_, err := fr.WriteTo(c.bw)
	if err == nil {
		err = c.bw.Flush()
		if err == nil {
			c.unacks++
		}
	}

	return err
}

func (c *Conn) handleSettings(st *Settings) {
	st.CopyTo(&c.serverS)

	c.serverStreamWindow += int32(c.serverS.MaxWindowSize())
	c.enc.SetMaxTableSize(int(st.HeaderTableSize()))

	// reply back
	fr := AcquireFrameHeader()

	stRes := AcquireFrame(FrameSettings).(*Settings)
	stRes.SetAck(true)

	fr.SetBody(stRes)

	c.out <- fr
}

func (c *Conn) handlePing(ping *Ping) {
	// reply back
	fr := AcquireFrameHeader()

	ping.SetAck(true)

	fr.SetBody(ping)

	c.out <- fr
}

func (c *Conn) readStream(fr *FrameHeader, strm *Stream, res *fasthttp.Response) (err error) {
	switch fr.Type() {
	case FrameHeaders, FrameContinuation:
		h := fr.Body().(FrameWithHeaders)
		err = c.readHeader(h.Headers(), res)
	case FrameWindowUpdate:
		win := int32(fr.Body().(*WindowUpdate).Increment())
		strm.IncrSendWindow(win)
	case FrameData:
		// currentWindow is the connection-level receive window; every
		// stream's DATA debits it, mirroring how the server side debits
		// a single conn-level recv window alongside each stream's own.
		c.currentWindow -= int32(fr.Len())
		currentWin := c.currentWindow

		data := fr.Body().(*Data)
		if data.Len() != 0 {
			res.AppendBody(data.Data())

			if streamWin := strm.ConsumeRecvWindow(int32(fr.Len())); streamWin < c.maxWindow/2 {
				refill := c.maxWindow - streamWin
				strm.RefillRecvWindow(refill)
				c.updateWindow(fr.Stream(), int(refill))
			}
		}

		if currentWin < c.maxWindow/2 {
			nValue := c.maxWindow - currentWin

			c.currentWindow = c.maxWindow

			c.updateWindow(0, int(nValue))
		}
	}

	return
}

func (c *Conn) updateWindow(streamID uint32, size int) {
	fr := AcquireFrameHeader()

	fr.SetStream(streamID)

	wu := AcquireFrame(FrameWindowUpdate).(*WindowUpdate)
	wu.SetIncrement(size)

	fr.SetBody(wu)

	c.out <- fr
}

func (c *Conn) readHeader(b []byte, res *fasthttp.Response) error {
	var err error
	hf := AcquireHeaderField()
	defer ReleaseHeaderField(hf)

	dec := c.dec

	for len(b) > 0 {
		b, err = dec.Next(hf, b)
		if err != nil {
			return err
		}

		if hf.IsPseudo() {
			if hf.KeyBytes()[1] == 's' { // status
				n, err := strconv.ParseInt(hf.Value(), 10, 64)
				if err != nil {
					return err
				}

				res.SetStatusCode(int(n))
				continue
			}
		}

		if bytes.Equal(hf.KeyBytes(), StringContentLength) {
			n, _ := strconv.Atoi(hf.Value())
			res.Header.SetContentLength(n)
		} else {
			res.Header.AddBytesKV(hf.KeyBytes(), hf.ValueBytes())
		}
	}

	return nil
}
