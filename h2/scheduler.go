package http2

import (
	"sync"
	"sync/atomic"
)

// pendingBody is one stream's not-yet-sent response body, queued by a
// stream's handler goroutine and drained a frame at a time by the
// connection's single writer goroutine.
type pendingBody struct {
	strm      *Stream
	body      []byte
	endStream bool
}

// writeScheduler fans DATA frames from multiple streams' pending
// bodies onto the connection in round-robin order, bounded by each
// stream's current send window, so one stream's large response body
// cannot monopolize the connection while others have data outstanding
// (spec.md §5: "round-robin policy bounded by each stream's send
// window; no stream may monopolize the connection ... ").
//
// Only the connection's single writer goroutine ever calls next, so
// the *FrameHeader it returns is safe to hand straight to bw.WriteTo
// without further locking.
type writeScheduler struct {
	mu      sync.Mutex
	ring    []*pendingBody
	ready   chan struct{}
	maxSize int

	// connWindow is the connection-level send window (serverConn's
	// clientWindow), shared by every stream in the ring: spec.md §4.7
	// caps a DATA chunk by min(stream.send_window, conn.send_window,
	// peer_MAX_FRAME_SIZE), not just the stream's own window.
	connWindow *int32
}

func newWriteScheduler(maxFrameSize int, connWindow *int32) *writeScheduler {
	return &writeScheduler{
		ready:      make(chan struct{}, 1),
		maxSize:    maxFrameSize,
		connWindow: connWindow,
	}
}

func (s *writeScheduler) wake() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Ready is signaled whenever enqueue adds work or a stream's send
// window grows, so the writer goroutine knows it's worth calling next
// again.
func (s *writeScheduler) Ready() <-chan struct{} {
	return s.ready
}

// enqueue appends strm's next chunk of outgoing body bytes to the
// rotation. endStream marks this as the last chunk for the stream.
func (s *writeScheduler) enqueue(strm *Stream, body []byte, endStream bool) {
	if len(body) == 0 && !endStream {
		return
	}

	s.mu.Lock()
	s.ring = append(s.ring, &pendingBody{strm: strm, body: body, endStream: endStream})
	s.mu.Unlock()

	s.wake()
}

// next advances the rotation by one readable chunk: the stream at the
// front of the ring with a positive send window, while the connection
// window is also positive, gives up min(its pending bytes, its window,
// the connection window, maxFrameSize) bytes as a DATA frame, and is
// pushed to the back unless that exhausted its queued body. When the
// stream's window or the connection window is exhausted, the entry is
// skipped: rotated to the back if its stream is still open, dropped
// otherwise. The next WINDOW_UPDATE calls wake to retry the rotated
// entries.
//
// ok is false when nothing in the ring is currently writable, either
// because the ring is empty or because every queued entry is blocked by
// its stream's window or by the connection window.
func (s *writeScheduler) next() (fr *FrameHeader, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < len(s.ring); i++ {
		pw := s.ring[0]
		s.ring = s.ring[1:]

		win := pw.strm.SendWindow()
		connWin := atomic.LoadInt32(s.connWindow)
		if win <= 0 || connWin <= 0 {
			if pw.strm.IsOpen() {
				s.ring = append(s.ring, pw)
			}
			continue
		}

		n := len(pw.body)
		if n > s.maxSize {
			n = s.maxSize
		}
		if n > int(win) {
			n = int(win)
		}
		if n > int(connWin) {
			n = int(connWin)
		}

		chunk := pw.body[:n]
		pw.body = pw.body[n:]
		pw.strm.ConsumeSendWindow(int32(n))
		atomic.AddInt32(s.connWindow, -int32(n))

		last := len(pw.body) == 0
		end := last && pw.endStream

		if !last {
			s.ring = append(s.ring, pw)
		}

		fr = AcquireFrameHeader()
		fr.SetStream(pw.strm.ID())

		data := AcquireFrame(FrameData).(*Data)
		data.SetEndStream(end)
		data.SetPadding(false)
		data.SetData(chunk)
		fr.SetBody(data)

		return fr, true
	}

	return nil, false
}

// empty reports whether the ring has no queued work at all (including
// streams currently parked on an exhausted window).
func (s *writeScheduler) empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ring) == 0
}
