package ws

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"
)

// tailBytes is the empty stored block a sync flush ends with. Per RFC
// 7692 §7.2.1 it is trimmed from the compressor's output before the
// message goes on the wire, and appended back to a received message
// before it is inflated.
var tailBytes = []byte{0x00, 0x00, 0xFF, 0xFF}

// PermessageDeflateParams is the negotiated extension configuration for
// one connection, derived from the Sec-WebSocket-Extensions offer/accept
// exchange in the handshake.
type PermessageDeflateParams struct {
	Enabled                 bool
	ServerNoContextTakeover bool
	ClientNoContextTakeover bool
	ServerMaxWindowBits     int
	ClientMaxWindowBits     int
}

// ParseExtensionOffer parses one "permessage-deflate" offer/response
// header value's parameters (the part after the extension token,
// semicolon-separated). It does not validate whether the token itself is
// "permessage-deflate" — callers split that off first.
func ParseExtensionOffer(params string) (PermessageDeflateParams, error) {
	p := PermessageDeflateParams{
		Enabled:             true,
		ServerMaxWindowBits: 15,
		ClientMaxWindowBits: 15,
	}

	for _, part := range strings.Split(params, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		value = strings.Trim(strings.TrimSpace(value), `"`)

		switch name {
		case "server_no_context_takeover":
			p.ServerNoContextTakeover = true
		case "client_no_context_takeover":
			p.ClientNoContextTakeover = true
		case "server_max_window_bits":
			n, err := windowBits(value)
			if err != nil {
				return p, err
			}
			p.ServerMaxWindowBits = n
		case "client_max_window_bits":
			if value == "" {
				continue // bare token: client may omit a value when offering
			}
			n, err := windowBits(value)
			if err != nil {
				return p, err
			}
			p.ClientMaxWindowBits = n
		default:
			return p, fmt.Errorf("ws: unknown permessage-deflate parameter %q", name)
		}
	}
	return p, nil
}

func windowBits(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 8 || n > 15 {
		return 0, fmt.Errorf("ws: invalid window bits %q", value)
	}
	return n, nil
}

// String renders p as a Sec-WebSocket-Extensions parameter list, in the
// canonical order the handshake response sends back.
func (p PermessageDeflateParams) String() string {
	if !p.Enabled {
		return ""
	}
	var b strings.Builder
	b.WriteString("permessage-deflate")
	if p.ServerNoContextTakeover {
		b.WriteString("; server_no_context_takeover")
	}
	if p.ClientNoContextTakeover {
		b.WriteString("; client_no_context_takeover")
	}
	if p.ServerMaxWindowBits != 15 {
		fmt.Fprintf(&b, "; server_max_window_bits=%d", p.ServerMaxWindowBits)
	}
	return b.String()
}

// deflateContext holds the message-level (not frame-level) permessage-
// deflate compression state for one direction of a connection. Per RFC
// 7692 §9, compression operates over an entire message's payload after
// reassembling fragments, not per frame.
type deflateContext struct {
	noContextTakeover bool

	compressor   *flate.Writer
	decompressor io.ReadCloser
	decBuf       bytes.Buffer
}

func newDeflateContext(noContextTakeover bool) (*deflateContext, error) {
	w, err := flate.NewWriter(io.Discard, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	return &deflateContext{
		noContextTakeover: noContextTakeover,
		compressor:        w,
	}, nil
}

// Compress deflates message and strips the trailing empty-block marker,
// leaving the result ready to mark with RSV1 and send as-is.
func (d *deflateContext) Compress(message []byte) ([]byte, error) {
	var out bytes.Buffer
	d.compressor.Reset(&out)

	if _, err := d.compressor.Write(message); err != nil {
		return nil, err
	}
	if err := d.compressor.Flush(); err != nil {
		return nil, err
	}

	b := out.Bytes()
	if bytes.HasSuffix(b, tailBytes) {
		b = b[:len(b)-len(tailBytes)]
	}

	if d.noContextTakeover {
		// flate.Writer carries no exported reset-dictionary hook; Reset
		// against a fresh io.Discard writer on the next call already
		// drops history, matching "no context takeover" semantics.
	}
	return b, nil
}

// Decompress appends tailBytes back, followed by an empty final stored
// block so the inflater sees a terminated stream, and inflates message,
// replacing the per-message decompressor when no_context_takeover is
// negotiated.
func (d *deflateContext) Decompress(message []byte) ([]byte, error) {
	d.decBuf.Reset()
	d.decBuf.Write(message)
	d.decBuf.Write(tailBytes)
	d.decBuf.Write([]byte{0x01, 0x00, 0x00, 0xFF, 0xFF})

	if d.decompressor == nil || d.noContextTakeover {
		d.decompressor = flate.NewReader(&d.decBuf)
	} else if r, ok := d.decompressor.(flate.Resetter); ok {
		if err := r.Reset(&d.decBuf, nil); err != nil {
			return nil, err
		}
	} else {
		d.decompressor = flate.NewReader(&d.decBuf)
	}

	out, err := io.ReadAll(d.decompressor)
	if err != nil {
		return nil, fmt.Errorf("ws: permessage-deflate inflate: %w", err)
	}
	return out, nil
}
