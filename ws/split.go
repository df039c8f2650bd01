package ws

// Reader is the read half produced by IntoSplit. It shares the parent
// Conn's mutex-guarded state, so a Ping answered on the read side is
// visible to the Replier immediately.
type Reader struct {
	conn *Conn
	dst  []byte
}

// Replier exposes queued reply frames generated by control-frame handling
// on the Reader side (currently just Pong/Close), so a caller that split
// the connection can still fulfil RFC 6455's response obligations without
// routing raw control traffic through its own message loop.
type Replier struct {
	conn *Conn
}

// Writer is the write half produced by IntoSplit.
type Writer struct {
	conn *Conn
}

// IntoSplit decomposes c into independent reader, replier and writer
// handles that can be driven by separate goroutines, all three backed by
// the same underlying mutex-guarded connection state (spec.md §4.4).
func (c *Conn) IntoSplit(mode ReadMode, dst []byte) (*Reader, *Replier, *Writer) {
	return &Reader{conn: c, dst: dst}, &Replier{conn: c}, &Writer{conn: c}
}

// ReadFrame reads the next message, delegating to the shared Conn.
func (r *Reader) ReadFrame(mode ReadMode) (Message, error) {
	return r.conn.ReadFrame(mode, r.dst)
}

// ReplyFrame pops one pending reply frame produced by control-frame
// handling, or nil if none is queued. Ownership of the returned Frame
// passes to the caller, which must ReleaseFrame it (WriteReplyFrame does
// this automatically).
func (p *Replier) ReplyFrame() *Frame {
	return p.conn.drainReply()
}

// WriteFrame sends an application message through the shared connection.
func (w *Writer) WriteFrame(opcode OpCode, payload []byte) error {
	return w.conn.WriteFrame(opcode, payload)
}

// WriteReplyFrame serializes fr (typically obtained from
// Replier.ReplyFrame) with the connection's masking rule and releases
// it. Reply frames are control frames, so they are never compressed,
// and the close-state check of Conn.WriteFrame is not applied, so the
// echoing Close still goes out after the peer's Close has moved the
// connection to StateClosed. It reports whether the connection is now
// closed, mirroring spec.md's write_reply_frame contract.
func (w *Writer) WriteReplyFrame(fr *Frame) (closed bool, err error) {
	defer ReleaseFrame(fr)
	err = WriteFrame(w.conn.w, fr, w.conn.masksOutgoing())
	return w.conn.State() == StateClosed, err
}
