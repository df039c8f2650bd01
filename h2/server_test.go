package http2

import (
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func serve(s *Server, ln net.Listener) {
	for {
		c, err := ln.Accept()
		if err != nil {
			break
		}

		go s.ServeConn(c)
	}
}

func getConn(s *Server) (*Conn, net.Listener, error) {
	ln := fasthttputil.NewInmemoryListener()

	go serve(s, ln)

	c, err := ln.Dial()
	if err != nil {
		return nil, nil, err
	}

	nc := NewConn(c, ConnOpts{})

	return nc, ln, nc.Handshake()
}

func writeRawFrame(c *Conn, fr *FrameHeader) error {
	if _, err := fr.WriteTo(c.bw); err != nil {
		return err
	}
	return c.bw.Flush()
}

func makeHeaders(id uint32, enc *HPACK, endHeaders, endStream bool, hs map[string]string) *FrameHeader {
	fr := AcquireFrameHeader()

	fr.SetStream(id)

	h := AcquireFrame(FrameHeaders).(*Headers)
	fr.SetBody(h)

	hf := AcquireHeaderField()

	for k, v := range hs {
		hf.Set(k, v)
		enc.AppendHeaderField(h, hf, k[0] == ':')
	}

	h.SetPadding(false)
	h.SetEndStream(endStream)
	h.SetEndHeaders(endHeaders)

	return fr
}

// TestServerAnswersConcurrentStreams opens two streams, well under the
// server's advertised SETTINGS_MAX_CONCURRENT_STREAMS, and checks that
// the server answers with both HEADERS and DATA frames.
func TestServerAnswersConcurrentStreams(t *testing.T) {
	s := &Server{
		s: &fasthttp.Server{
			Handler: func(ctx *fasthttp.RequestCtx) {
				_, _ = io.WriteString(ctx, "Hello world")
			},
			ReadTimeout: time.Second * 30,
		},
	}

	c, ln, err := getConn(s)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	defer ln.Close()

	msg := []byte("Hello world, how are you doing?")

	streamHeaders := func(id uint32, method string, endStream bool) *FrameHeader {
		return makeHeaders(id, c.enc, true, endStream, map[string]string{
			string(StringAuthority): "localhost",
			string(StringMethod):    method,
			string(StringPath):      "/hello/world",
			string(StringScheme):    "https",
			"Content-Length":        strconv.Itoa(len(msg)),
		})
	}

	h1 := streamHeaders(3, "POST", false)
	h2 := streamHeaders(9, "POST", false)

	if err := writeRawFrame(c, h1); err != nil {
		t.Fatal(err)
	}
	if err := writeRawFrame(c, h2); err != nil {
		t.Fatal(err)
	}

	for _, h := range []*FrameHeader{h1, h2} {
		if err := writeData(c, c.bw, h, NewStream(h.Stream(), c.serverStreamWindow), msg); err != nil {
			t.Fatal(err)
		}
		if err := c.bw.Flush(); err != nil {
			t.Fatal(err)
		}
	}

	// the server should at least answer stream 3's request with headers
	// and data; we don't assert the exact sequence since accept order
	// across two concurrently-dispatched streams isn't guaranteed.
	sawHeaders, sawData := false, false
	for i := 0; i < 4; i++ {
		fr, err := c.readNext()
		if err != nil {
			break
		}

		switch fr.Type() {
		case FrameHeaders:
			sawHeaders = true
		case FrameData:
			sawData = true
		}
	}

	if !sawHeaders || !sawData {
		t.Fatalf("expected to observe both HEADERS and DATA, got headers=%v data=%v", sawHeaders, sawData)
	}
}

// TestServerReadTimeoutCancelsStream checks that a HEADERS frame
// without END_STREAM, left dangling past the server's read timeout,
// is reset with CancelError instead of hanging the connection forever.
func TestServerReadTimeoutCancelsStream(t *testing.T) {
	s := &Server{
		s: &fasthttp.Server{
			Handler: func(ctx *fasthttp.RequestCtx) {
				_, _ = io.WriteString(ctx, "Hello world")
			},
			ReadTimeout: 50 * time.Millisecond,
		},
	}

	c, ln, err := getConn(s)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	defer ln.Close()

	h := makeHeaders(3, c.enc, true, false, map[string]string{
		string(StringAuthority): "localhost",
		string(StringMethod):    "GET",
		string(StringPath):      "/hello/world",
		string(StringScheme):    "https",
	})

	if err := writeRawFrame(c, h); err != nil {
		t.Fatal(err)
	}

	fr, err := c.readNext()
	if err != nil {
		t.Fatal(err)
	}

	if fr.Stream() != 3 {
		t.Fatalf("expecting update on stream 3, got %d", fr.Stream())
	}
}
