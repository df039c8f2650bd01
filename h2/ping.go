package http2

import (
	"sync"
	"time"

	"github.com/c410-f3r/wtx-sub004/internal/wire"
)

const FramePing FrameType = 0x6

var _ Frame = &Ping{}

var pingPool = sync.Pool{
	New: func() interface{} { return &Ping{} },
}

// Ping carries 8 opaque bytes that the receiver must echo back with
// FlagAck set; Conn.writePing uses it to measure round-trip time and to
// detect a peer that has stopped responding.
//
// https://tools.ietf.org/html/rfc7540#section-6.7
type Ping struct {
	ack  bool
	data [8]byte
}

func (ping *Ping) Type() FrameType {
	return FramePing
}

// Reset ...
func (ping *Ping) Reset() {
	ping.ack = false
	ping.data = [8]byte{}
}

// CopyTo ...
func (ping *Ping) CopyTo(p *Ping) {
	p.ack = ping.ack
	p.data = ping.data
}

// Write ...
func (ping *Ping) Write(b []byte) (n int, err error) {
	copy(ping.data[:], b)
	return
}

// SetData ...
func (ping *Ping) SetData(b []byte) {
	copy(ping.data[:], b)
}

// IsAck reports whether this PING is the ACK reply to an opaque value
// the local side previously sent.
func (ping *Ping) IsAck() bool {
	return ping.ack
}

// SetAck marks this PING as an ACK reply.
func (ping *Ping) SetAck(ack bool) {
	ping.ack = ack
}

// SetCurrentTime stamps the opaque payload with the current wall-clock
// time in Unix nanoseconds, so the matching ACK can be used to compute
// RTT.
func (ping *Ping) SetCurrentTime() {
	wire.PutUint64(ping.data[:], uint64(time.Now().UnixNano()))
}

func (ping *Ping) Deserialize(frh *FrameHeader) error {
	ping.ack = frh.Flags().Has(FlagAck)
	ping.SetData(frh.payload)
	return nil
}

func (ping *Ping) Data() []byte {
	return ping.data[:]
}

// Serialize ...
func (ping *Ping) Serialize(fr *FrameHeader) {
	if ping.ack {
		fr.SetFlags(fr.Flags().Add(FlagAck))
	}

	fr.setPayload(ping.data[:])
}
