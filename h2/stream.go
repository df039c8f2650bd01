package http2

import (
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
)

// StreamState is one node of the RFC 9113 section 5.1 stream state
// machine, split into the two half-closed directions so a stream that
// has stopped sending can be told apart from one that has stopped
// receiving.
type StreamState int8

const (
	StreamStateIdle StreamState = iota
	StreamStateReserved
	StreamStateOpen
	StreamStateHalfClosedLocal
	StreamStateHalfClosedRemote
	StreamStateClosed
)

func (s StreamState) String() string {
	switch s {
	case StreamStateIdle:
		return "Idle"
	case StreamStateReserved:
		return "Reserved"
	case StreamStateOpen:
		return "Open"
	case StreamStateHalfClosedLocal:
		return "HalfClosedLocal"
	case StreamStateHalfClosedRemote:
		return "HalfClosedRemote"
	case StreamStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

var streamPool = sync.Pool{
	New: func() interface{} { return &Stream{} },
}

// Stream holds everything needed to track one HTTP/2 stream: its
// position in the state machine above, the two independent
// flow-control windows, and the body bytes accumulated so far while
// its HEADERS/DATA frames are reassembled.
type Stream struct {
	id    uint32
	state StreamState

	// sendWindow is how many bytes this side may still send on the
	// stream; recvWindow is how many more bytes the peer is still
	// allowed to send us. Both start at the negotiated
	// SETTINGS_INITIAL_WINDOW_SIZE and are signed so a retroactive
	// SETTINGS change can legally drive them negative until
	// WINDOW_UPDATEs bring them back up.
	sendWindow int32
	recvWindow int32

	contentLength  int
	bodyBytesSoFar int

	hasInitialHeaders bool
	hasBodyFrames     bool

	headersFinished     bool
	previousHeaderBytes []byte

	status int

	// waker is closed exactly once to unblock a goroutine parked
	// waiting on this stream (more send window, more body data); it is
	// replaced with a fresh channel right after being closed so the
	// next waiter gets its own one-shot signal.
	waker   chan struct{}
	wakerMu sync.Mutex

	isOpen bool

	body *bytebufferpool.ByteBuffer

	startedAt time.Time

	ctx *fasthttp.RequestCtx
}

// NewStream returns a Stream reset to Idle with the given initial
// send/receive window.
func NewStream(id uint32, win int32) *Stream {
	strm := streamPool.Get().(*Stream)
	strm.Reset()
	strm.id = id
	strm.sendWindow = win
	strm.recvWindow = win
	strm.isOpen = true
	strm.waker = make(chan struct{})
	return strm
}

// Reset clears strm so it can be reused from streamPool.
func (strm *Stream) Reset() {
	strm.id = 0
	strm.state = StreamStateIdle
	strm.sendWindow = 0
	strm.recvWindow = 0
	strm.contentLength = 0
	strm.bodyBytesSoFar = 0
	strm.hasInitialHeaders = false
	strm.hasBodyFrames = false
	strm.headersFinished = false
	strm.previousHeaderBytes = strm.previousHeaderBytes[:0]
	strm.status = 0
	strm.waker = nil
	strm.isOpen = false
	if strm.body != nil {
		bytebufferpool.Put(strm.body)
		strm.body = nil
	}
	strm.startedAt = time.Time{}
	strm.ctx = nil
}

func (strm *Stream) ID() uint32 {
	return strm.id
}

func (strm *Stream) SetID(id uint32) {
	strm.id = id
}

func (strm *Stream) State() StreamState {
	return strm.state
}

func (strm *Stream) SetState(state StreamState) {
	strm.state = state
	if state == StreamStateClosed {
		strm.isOpen = false
	}
}

// IsOpen reports whether the stream still accepts frames in either
// direction.
func (strm *Stream) IsOpen() bool {
	return strm.isOpen
}

// SendWindow returns how many bytes this side may still send.
func (strm *Stream) SendWindow() int32 {
	return strm.sendWindow
}

// SetSendWindow overwrites the send window, e.g. in response to a
// peer SETTINGS_INITIAL_WINDOW_SIZE change.
func (strm *Stream) SetSendWindow(win int32) {
	strm.sendWindow = win
}

// IncrSendWindow applies a WINDOW_UPDATE increment, waking anyone
// parked waiting for more room to send.
func (strm *Stream) IncrSendWindow(n int32) {
	strm.sendWindow += n
	strm.Wake()
}

// ConsumeSendWindow debits n bytes of outgoing DATA from the send
// window; used by the connection's write scheduler to decide how much
// of a stream's pending body it may flush in a given round.
func (strm *Stream) ConsumeSendWindow(n int32) {
	strm.sendWindow -= n
}

// RecvWindow returns how many more bytes the peer may still send us.
func (strm *Stream) RecvWindow() int32 {
	return strm.recvWindow
}

func (strm *Stream) SetRecvWindow(win int32) {
	strm.recvWindow = win
}

// ConsumeRecvWindow debits n bytes of incoming DATA from the receive
// window; callers compare the result against a low-water mark to
// decide whether to emit a WINDOW_UPDATE.
func (strm *Stream) ConsumeRecvWindow(n int32) int32 {
	strm.recvWindow -= n
	return strm.recvWindow
}

func (strm *Stream) RefillRecvWindow(n int32) {
	strm.recvWindow += n
}

// Window is kept for callers that only care about the send direction
// (the historical single-window view).
func (strm *Stream) Window() int32 {
	return strm.sendWindow
}

func (strm *Stream) SetWindow(win int32) {
	strm.sendWindow = win
}

func (strm *Stream) IncrWindow(win int32) {
	strm.IncrSendWindow(win)
}

func (strm *Stream) ContentLength() int {
	return strm.contentLength
}

func (strm *Stream) SetContentLength(n int) {
	strm.contentLength = n
}

func (strm *Stream) BodyBytesSoFar() int {
	return strm.bodyBytesSoFar
}

func (strm *Stream) HasInitialHeaders() bool {
	return strm.hasInitialHeaders
}

func (strm *Stream) SetHasInitialHeaders(v bool) {
	strm.hasInitialHeaders = v
}

func (strm *Stream) HasBodyFrames() bool {
	return strm.hasBodyFrames
}

// AppendBody accumulates b into the stream's pooled body buffer,
// acquiring the buffer lazily on first use.
func (strm *Stream) AppendBody(b []byte) {
	if strm.body == nil {
		strm.body = bytebufferpool.Get()
	}
	strm.hasBodyFrames = true
	strm.bodyBytesSoFar += len(b)
	_, _ = strm.body.Write(b)
}

// Body returns the bytes accumulated so far; it is nil until the first
// DATA frame arrives.
func (strm *Stream) Body() []byte {
	if strm.body == nil {
		return nil
	}
	return strm.body.B
}

func (strm *Stream) Status() int {
	return strm.status
}

func (strm *Stream) SetStatus(status int) {
	strm.status = status
}

// Wake unblocks every goroutine currently parked on Waker by closing
// the channel, then installs a fresh one for the next waiter. Must
// never be called while holding the connection's shared mutex.
func (strm *Stream) Wake() {
	strm.wakerMu.Lock()
	defer strm.wakerMu.Unlock()
	if strm.waker == nil {
		strm.waker = make(chan struct{})
		return
	}
	select {
	case <-strm.waker:
		// already closed
	default:
		close(strm.waker)
	}
	strm.waker = make(chan struct{})
}

// Waker returns the channel to select on while waiting for this
// stream's state to change.
func (strm *Stream) Waker() <-chan struct{} {
	strm.wakerMu.Lock()
	defer strm.wakerMu.Unlock()
	return strm.waker
}

// StartedAt reports when the stream first became Open, used to
// enforce the server's per-stream read timeout.
func (strm *Stream) StartedAt() time.Time {
	return strm.startedAt
}

func (strm *Stream) SetStartedAt(t time.Time) {
	strm.startedAt = t
}

func (strm *Stream) Data() *fasthttp.RequestCtx {
	return strm.ctx
}

func (strm *Stream) SetData(ctx *fasthttp.RequestCtx) {
	strm.ctx = ctx
}
