package ws

import (
	"sync"

	"github.com/valyala/bytebufferpool"

	"github.com/c410-f3r/wtx-sub004/buffer"
	"github.com/c410-f3r/wtx-sub004/transport"
)

// defaultReadBufferSize seeds the C1 partitioned buffer backing a Conn's
// reads; it grows on demand for frames larger than this via
// buffer.PartitionedBuffer.Reserve.
const defaultReadBufferSize = 4096

// ConnState tracks where a connection sits in the close handshake.
type ConnState uint8

const (
	StateOpen ConnState = iota
	StateClosingLocal
	StateClosingRemote
	StateClosed
)

// ReadMode selects how ReadFrame hands back a message payload.
type ReadMode uint8

const (
	// ModeAdaptive returns, for a message that arrived as a single
	// uncompressed frame, a newly allocated copy of its payload and leaves
	// the caller-supplied buffer untouched; otherwise it assembles
	// fragments (or inflates) into the caller-supplied buffer, reusing it
	// when it is large enough and allocating when it is not.
	ModeAdaptive ReadMode = iota
	// ModeConsistent always copies into the caller's buffer, trading the
	// adaptive fast path for a uniform call signature.
	ModeConsistent
)

// Message is one fully assembled WebSocket message returned by ReadFrame.
type Message struct {
	Opcode  OpCode
	Payload []byte
}

// Conn is the WebSocket engine: it owns the connection's role, close
// state, and optional permessage-deflate contexts, and turns raw Frame
// traffic into whole messages, queueing the Pong or Close reply that a
// received Ping or Close calls for. Queued replies are sent only when
// drained through Replier.ReplyFrame and Writer.WriteReplyFrame.
type Conn struct {
	mu sync.Mutex

	r    transport.StreamReader
	w    transport.StreamWriter
	rbuf *buffer.PartitionedBuffer

	role          Role
	state         ConnState
	maxPayloadLen int64

	recvDeflate *deflateContext
	sendDeflate *deflateContext

	// incomplete message assembly state. asmBuf is pooled via
	// bytebufferpool since a multi-fragment message is reassembled one
	// append at a time and would otherwise churn the allocator the same
	// way a naive per-frame buffer would on the HTTP/2 side.
	assembling bool
	asmOpcode  OpCode
	asmBuf     *bytebufferpool.ByteBuffer
	asmUTF8    *utf8Validator
	asmRSV1    bool

	replyQueue []*Frame
}

// Config collects the parameters New needs beyond the raw transport.
type Config struct {
	Role          Role
	MaxPayloadLen int64
	Deflate       PermessageDeflateParams
}

// New builds a Conn over an already-handshaked transport.
func New(r transport.StreamReader, w transport.StreamWriter, cfg Config) (*Conn, error) {
	c := &Conn{
		r:             r,
		w:             w,
		rbuf:          buffer.New(defaultReadBufferSize),
		role:          cfg.Role,
		state:         StateOpen,
		maxPayloadLen: cfg.MaxPayloadLen,
	}

	if cfg.Deflate.Enabled {
		serverTakeover := cfg.Deflate.ServerNoContextTakeover
		clientTakeover := cfg.Deflate.ClientNoContextTakeover

		var recvNoTakeover, sendNoTakeover bool
		if cfg.Role == RoleClient {
			recvNoTakeover, sendNoTakeover = serverTakeover, clientTakeover
		} else {
			recvNoTakeover, sendNoTakeover = clientTakeover, serverTakeover
		}

		rd, err := newDeflateContext(recvNoTakeover)
		if err != nil {
			return nil, err
		}
		sd, err := newDeflateContext(sendNoTakeover)
		if err != nil {
			return nil, err
		}
		c.recvDeflate, c.sendDeflate = rd, sd
	}

	return c, nil
}

func (c *Conn) masksOutgoing() bool { return c.role == RoleClient }

// ReadFrame reads the next complete message, queueing the Pong/Close
// replies of spec.md §4.4 along the way. dst is only consulted under
// ModeConsistent, or under ModeAdaptive when the message spans more than
// one frame or arrived compressed; under ModeAdaptive it may be nil.
func (c *Conn) ReadFrame(mode ReadMode, dst []byte) (Message, error) {
	for {
		c.mu.Lock()
		if c.state == StateClosed {
			c.mu.Unlock()
			return Message{}, ErrConnectionClosed
		}
		c.mu.Unlock()

		fr, err := ReadFrame(c.rbuf, c.r, c.maxPayloadLen)
		if err != nil {
			c.mu.Lock()
			c.state = StateClosed
			c.mu.Unlock()
			return Message{}, err
		}

		msg, done, err := c.handleFrame(fr, mode, dst)
		ReleaseFrame(fr)
		if err != nil {
			return Message{}, err
		}
		if done {
			return msg, nil
		}
	}
}

func (c *Conn) handleFrame(fr *Frame, mode ReadMode, dst []byte) (Message, bool, error) {
	if err := c.validateIncomingMask(fr); err != nil {
		return c.fail(ErrUnexpectedMask, CloseProtocolError)
	}
	if fr.rsv1 && (fr.opcode.IsControl() || fr.opcode == OpContinuation || c.recvDeflate == nil) {
		return c.fail(ErrReservedBits, CloseProtocolError)
	}

	switch fr.opcode {
	case OpPing:
		c.queueReply(OpPong, fr.Payload())
		return Message{}, false, nil
	case OpPong:
		return Message{}, false, nil
	case OpClose:
		return c.handleClose(fr)
	case OpText, OpBinary, OpContinuation:
		return c.assembleData(fr, mode, dst)
	default:
		return c.fail(ErrProtocol, CloseProtocolError)
	}
}

func (c *Conn) validateIncomingMask(fr *Frame) error {
	if c.role == RoleServer && !fr.Masked() {
		return ErrUnexpectedMask
	}
	if c.role == RoleClient && fr.Masked() {
		return ErrUnexpectedMask
	}
	return nil
}

func (c *Conn) assembleData(fr *Frame, mode ReadMode, dst []byte) (Message, bool, error) {
	if fr.opcode != OpContinuation {
		if c.assembling {
			return c.fail(ErrProtocol, CloseProtocolError)
		}
		if fr.rsv1 && c.recvDeflate == nil {
			return c.fail(ErrReservedBits, CloseProtocolError)
		}
		c.assembling = true
		c.asmOpcode = fr.Opcode()
		c.asmRSV1 = fr.rsv1
		if c.asmBuf == nil {
			c.asmBuf = bytebufferpool.Get()
		} else {
			c.asmBuf.Reset()
		}
		if fr.Opcode() == OpText {
			c.asmUTF8 = newUTF8Validator()
		} else {
			c.asmUTF8 = nil
		}
	} else if !c.assembling {
		return c.fail(ErrProtocol, CloseProtocolError)
	} else if fr.rsv1 {
		return c.fail(ErrReservedBits, CloseProtocolError)
	}

	singleUncompressedFrame := fr.FIN() && !c.assemblyHasPrior() && !c.asmRSV1

	if mode == ModeAdaptive && singleUncompressedFrame {
		if c.asmUTF8 != nil {
			if !c.asmUTF8.Write(fr.Payload()) || !c.asmUTF8.Complete() {
				c.assembling = false
				return c.fail(ErrInvalidUTF8, CloseInvalidFrameData)
			}
		}
		opcode := c.asmOpcode
		c.assembling = false
		// Copy out of fr's backing array: the caller's ReadFrame loop
		// releases fr back to framePool right after handleFrame returns,
		// and a later AcquireFrame of the same *Frame would otherwise
		// overwrite the payload this Message still points at.
		payload := append([]byte(nil), fr.Payload()...)
		return Message{Opcode: opcode, Payload: payload}, true, nil
	}

	c.asmBuf.Write(fr.Payload())
	if c.asmUTF8 != nil && !c.asmRSV1 {
		if !c.asmUTF8.Write(fr.Payload()) {
			c.assembling = false
			return c.fail(ErrInvalidUTF8, CloseInvalidFrameData)
		}
	}

	if !fr.FIN() {
		return Message{}, false, nil
	}

	payload := c.asmBuf.Bytes()
	opcode := c.asmOpcode
	wasRSV1 := c.asmRSV1
	c.assembling = false

	if wasRSV1 {
		inflated, err := c.recvDeflate.Decompress(payload)
		if err != nil {
			return c.fail(err, CloseInvalidFrameData)
		}
		payload = inflated
		if opcode == OpText && !ValidUTF8(payload) {
			return c.fail(ErrInvalidUTF8, CloseInvalidFrameData)
		}
	} else if opcode == OpText && !c.asmUTF8.Complete() {
		return c.fail(ErrInvalidUTF8, CloseInvalidFrameData)
	}

	if mode == ModeConsistent {
		n := copy(dst, payload)
		payload = dst[:n]
	} else {
		payload = append(dst[:0], payload...)
	}

	return Message{Opcode: opcode, Payload: payload}, true, nil
}

func (c *Conn) assemblyHasPrior() bool { return c.asmBuf.Len() > 0 }

func (c *Conn) handleClose(fr *Frame) (Message, bool, error) {
	payload := fr.Payload()
	var code uint16 = CloseNoStatus
	var reason string
	if len(payload) >= 2 {
		code = uint16(payload[0])<<8 | uint16(payload[1])
		reason = string(payload[2:])
	} else if len(payload) == 1 {
		return c.fail(ErrBadCloseStatus, CloseProtocolError)
	}
	if len(payload) >= 2 && (!ValidCloseCode(code) || !ValidUTF8([]byte(reason))) {
		return c.fail(ErrBadCloseStatus, CloseProtocolError)
	}

	c.mu.Lock()
	wasOpen := c.state == StateOpen
	c.state = StateClosed
	c.mu.Unlock()

	if wasOpen {
		c.queueReply(OpClose, payload)
	}

	return Message{Opcode: OpClose, Payload: payload}, true, nil
}

// fail transitions the connection to StateClosed and, per spec.md §4.4's
// failure model, attempts to notify the peer with a Close frame carrying
// code before giving up; the send is best-effort since the transport may
// itself be the thing that's broken.
func (c *Conn) fail(err error, code uint16) (Message, bool, error) {
	c.mu.Lock()
	alreadyClosed := c.state == StateClosed
	c.state = StateClosed
	c.mu.Unlock()

	if !alreadyClosed {
		fr := AcquireFrame()
		fr.SetFIN(true)
		fr.SetOpcode(OpClose)
		fr.SetPayload([]byte{byte(code >> 8), byte(code)})
		_ = WriteFrame(c.w, fr, c.masksOutgoing())
		ReleaseFrame(fr)
	}

	return Message{}, false, err
}

func (c *Conn) queueReply(op OpCode, payload []byte) {
	fr := AcquireFrame()
	fr.SetFIN(true)
	fr.SetOpcode(op)
	fr.SetPayload(payload)

	c.mu.Lock()
	c.replyQueue = append(c.replyQueue, fr)
	c.mu.Unlock()
}

// WriteFrame sends one message. It succeeds in StateOpen, where sending
// Close moves the connection to StateClosingLocal, and for a Close sent
// in StateClosingRemote, which moves it to StateClosed; in every other
// case it returns ErrConnectionClosed.
func (c *Conn) WriteFrame(opcode OpCode, payload []byte) error {
	c.mu.Lock()
	switch {
	case c.state == StateOpen:
		if opcode == OpClose {
			c.state = StateClosingLocal
		}
	case c.state == StateClosingRemote && opcode == OpClose:
		c.state = StateClosed
	default:
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	deflate := c.sendDeflate
	c.mu.Unlock()

	fr := AcquireFrame()
	defer ReleaseFrame(fr)
	fr.SetFIN(true)
	fr.SetOpcode(opcode)

	if deflate != nil && !opcode.IsControl() {
		compressed, err := deflate.Compress(payload)
		if err != nil {
			return err
		}
		fr.SetPayload(compressed)
		fr.rsv1 = true
	} else {
		fr.SetPayload(payload)
	}

	return WriteFrame(c.w, fr, c.masksOutgoing())
}

// drainReply pops one queued reply frame, if any, for the replier side of
// a split connection.
func (c *Conn) drainReply() *Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replyQueue) == 0 {
		return nil
	}
	fr := c.replyQueue[0]
	c.replyQueue = c.replyQueue[1:]
	return fr
}

// State returns the connection's current close-handshake state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
