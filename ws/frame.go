package ws

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/valyala/fastrand"

	"github.com/c410-f3r/wtx-sub004/buffer"
	"github.com/c410-f3r/wtx-sub004/transport"
)

const maxControlPayload = 125

var framePool = sync.Pool{
	New: func() interface{} { return &Frame{} },
}

// Frame is a single WebSocket frame as defined by RFC 6455 §5.2. Use
// AcquireFrame/ReleaseFrame to recycle instances instead of allocating a
// Frame per message, the same pooling discipline the HTTP/2 side uses for
// its FrameHeader.
type Frame struct {
	fin    bool
	rsv1   bool
	rsv2   bool
	rsv3   bool
	opcode OpCode
	masked bool
	key    MaskKey

	payload []byte
}

// AcquireFrame gets a zeroed Frame from the pool.
func AcquireFrame() *Frame {
	fr := framePool.Get().(*Frame)
	fr.Reset()
	return fr
}

// ReleaseFrame returns fr to the pool; AcquireFrame resets it on reuse.
// Callers must not use fr afterwards.
func ReleaseFrame(fr *Frame) {
	framePool.Put(fr)
}

func (fr *Frame) Reset() {
	fr.fin = false
	fr.rsv1, fr.rsv2, fr.rsv3 = false, false, false
	fr.opcode = OpContinuation
	fr.masked = false
	fr.key = MaskKey{}
	fr.payload = fr.payload[:0]
}

func (fr *Frame) FIN() bool        { return fr.fin }
func (fr *Frame) SetFIN(v bool)    { fr.fin = v }
func (fr *Frame) RSV1() bool       { return fr.rsv1 }
func (fr *Frame) SetRSV1(v bool)   { fr.rsv1 = v }
func (fr *Frame) Opcode() OpCode   { return fr.opcode }
func (fr *Frame) SetOpcode(op OpCode) { fr.opcode = op }
func (fr *Frame) Masked() bool     { return fr.masked }
func (fr *Frame) Payload() []byte  { return fr.payload }

// SetPayload copies b into fr's payload buffer, reusing its backing array
// when possible.
func (fr *Frame) SetPayload(b []byte) {
	fr.payload = append(fr.payload[:0], b...)
}

// maskingKey picks a fresh random key, the way a client must for every
// frame it sends (RFC 6455 §5.3).
func maskingKey() MaskKey {
	var k MaskKey
	v := fastrand.Uint32()
	binary.BigEndian.PutUint32(k[:], v)
	return k
}

// ensureBuffered tops up buf's following region, issuing reads against r,
// until at least n bytes are available past the current read position.
func ensureBuffered(buf *buffer.PartitionedBuffer, r transport.StreamReader, n int) error {
	for len(buf.Following()) < n {
		if _, err := buf.ReadIntoFollowing(r, n-len(buf.Following())); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame parses one frame, reading through buf (the C1 partitioned
// buffer) rather than straight off r, so the wire bytes pass through the
// same antecedent/current/following split the h2 side uses for its frame
// layer. It enforces maxPayload (0 disables the check) and the control
// frame policy from RFC 6455 §5.5: control frames carry at most 125 bytes
// of payload and are never fragmented.
//
// The payload is unmasked in place inside buf and then copied out via
// SetPayload, so the returned Frame owns its bytes independently of buf's
// backing array once buf.AdvancePastCurrent/Reclaim run.
func ReadFrame(buf *buffer.PartitionedBuffer, r transport.StreamReader, maxPayload int64) (*Frame, error) {
	if err := ensureBuffered(buf, r, 2); err != nil {
		return nil, err
	}
	head := buf.Following()[:2]

	fin := head[0]&0x80 != 0
	rsv1 := head[0]&0x40 != 0
	rsv2 := head[0]&0x20 != 0
	rsv3 := head[0]&0x10 != 0
	opcode := OpCode(head[0] & 0x0F)
	masked := head[1]&0x80 != 0
	length := uint64(head[1] & 0x7F)

	headerLen := 2
	switch length {
	case 126:
		if err := ensureBuffered(buf, r, headerLen+2); err != nil {
			return nil, err
		}
		length = uint64(binary.BigEndian.Uint16(buf.Following()[headerLen : headerLen+2]))
		headerLen += 2
	case 127:
		if err := ensureBuffered(buf, r, headerLen+8); err != nil {
			return nil, err
		}
		length = binary.BigEndian.Uint64(buf.Following()[headerLen : headerLen+8])
		if length&(1<<63) != 0 {
			return nil, ErrProtocol
		}
		headerLen += 8
	}

	if opcode.IsControl() {
		if length > maxControlPayload {
			return nil, ErrControlFrameTooLarge
		}
		if !fin {
			return nil, ErrControlFrameFragmented
		}
	}
	if maxPayload > 0 && int64(length) > maxPayload {
		return nil, ErrMessageTooBig
	}

	var key MaskKey
	if masked {
		if err := ensureBuffered(buf, r, headerLen+4); err != nil {
			return nil, err
		}
		copy(key[:], buf.Following()[headerLen:headerLen+4])
		headerLen += 4
	}

	total := headerLen + int(length)
	if err := ensureBuffered(buf, r, total); err != nil {
		return nil, err
	}

	base := len(buf.Antecedent())
	if err := buf.SetIndices(base, total, 0); err != nil {
		return nil, err
	}
	payload := buf.Current()[headerLen:total]
	if masked {
		ApplyMask(payload, key)
	}

	fr := AcquireFrame()
	fr.fin = fin
	fr.rsv1 = rsv1
	fr.rsv2 = rsv2
	fr.rsv3 = rsv3
	fr.opcode = opcode
	fr.masked = masked
	fr.key = key
	fr.SetPayload(payload)

	buf.AdvancePastCurrent()
	buf.Reclaim()

	return fr, nil
}

// WriteFrame serializes fr to w. When mask is true a fresh masking key is
// generated and the payload is masked on the wire (the in-memory payload
// is left unmasked so the caller can reuse it).
func WriteFrame(w transport.StreamWriter, fr *Frame, mask bool) error {
	if fr.opcode.IsControl() {
		if len(fr.payload) > maxControlPayload {
			return ErrControlFrameTooLarge
		}
		if !fr.fin {
			return ErrControlFrameFragmented
		}
	}

	var head [14]byte
	n := 2

	head[0] = byte(fr.opcode) & 0x0F
	if fr.fin {
		head[0] |= 0x80
	}
	if fr.rsv1 {
		head[0] |= 0x40
	}

	length := len(fr.payload)
	switch {
	case length <= 125:
		head[1] = byte(length)
	case length <= 0xFFFF:
		head[1] = 126
		binary.BigEndian.PutUint16(head[2:4], uint16(length))
		n += 2
	default:
		head[1] = 127
		binary.BigEndian.PutUint64(head[2:10], uint64(length))
		n += 8
	}

	var key MaskKey
	if mask {
		head[1] |= 0x80
		key = maskingKey()
		copy(head[n:n+4], key[:])
		n += 4
	}

	if length == 0 {
		return w.WriteAll(head[:n])
	}

	if !mask {
		return w.WriteAllVectored([][]byte{head[:n], fr.payload})
	}

	masked := make([]byte, length)
	copy(masked, fr.payload)
	ApplyMask(masked, key)
	return w.WriteAllVectored([][]byte{head[:n], masked})
}

func (fr *Frame) String() string {
	return fmt.Sprintf("ws.Frame{opcode=%s fin=%t masked=%t len=%d}", fr.opcode, fr.fin, fr.masked, len(fr.payload))
}
