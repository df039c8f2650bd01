package http2

import "sync"

// FrameSettings identifies a SETTINGS frame body.
const FrameSettings FrameType = 0x4

const (
	defaultMaxConcurrentStreams = 100
	defaultWindowSize           = 1<<16 - 1
	maxFrameSize                = 1 << 14
)

type settingCode uint16

const (
	settingHeaderTableSize      settingCode = 0x1
	settingEnablePush           settingCode = 0x2
	settingMaxConcurrentStreams settingCode = 0x3
	settingInitialWindowSize    settingCode = 0x4
	settingMaxFrameSize         settingCode = 0x5
	settingMaxHeaderListSize    settingCode = 0x6
)

var settingsPool = sync.Pool{
	New: func() interface{} { return &Settings{} },
}

// Settings is the body of a SETTINGS frame: a flat list of
// code/value pairs exchanged at connection start and any time a peer
// wants to renegotiate a parameter.
//
// https://httpwg.org/specs/rfc7540.html#SETTINGS
type Settings struct {
	ack bool

	headerTableSize       uint32
	push                  bool
	maxConcurrentStreams  uint32
	initialWindowSize     uint32
	maxFrameSize          uint32
	maxHeaderListSize     uint32
	hasMaxHeaderListSize  bool
	hasMaxConcurrentStrms bool
}

// AcquireSettings returns a pooled *Settings set to RFC 9113's
// defaults.
func AcquireSettings() *Settings {
	s := settingsPool.Get().(*Settings)
	s.Reset()
	return s
}

// ReleaseSettings returns s to the pool.
func ReleaseSettings(s *Settings) {
	if s == nil {
		return
	}
	settingsPool.Put(s)
}

// Reset restores s to the default parameter set.
func (s *Settings) Reset() {
	s.ack = false
	s.headerTableSize = defaultHeaderTableSize
	s.push = true
	s.maxConcurrentStreams = defaultMaxConcurrentStreams
	s.initialWindowSize = defaultWindowSize
	s.maxFrameSize = maxFrameSize
	s.maxHeaderListSize = 0
	s.hasMaxHeaderListSize = false
	s.hasMaxConcurrentStrms = false
}

// Type implements Frame.
func (s *Settings) Type() FrameType { return FrameSettings }

// CopyTo copies every parameter of s into dst.
func (s *Settings) CopyTo(dst *Settings) {
	dst.ack = s.ack
	dst.headerTableSize = s.headerTableSize
	dst.push = s.push
	dst.maxConcurrentStreams = s.maxConcurrentStreams
	dst.initialWindowSize = s.initialWindowSize
	dst.maxFrameSize = s.maxFrameSize
	dst.maxHeaderListSize = s.maxHeaderListSize
	dst.hasMaxHeaderListSize = s.hasMaxHeaderListSize
	dst.hasMaxConcurrentStrms = s.hasMaxConcurrentStrms
}

// IsAck reports whether this SETTINGS frame is an acknowledgement
// (an empty frame with the ACK flag set).
func (s *Settings) IsAck() bool { return s.ack }

// SetAck marks s as a SETTINGS ACK.
func (s *Settings) SetAck(ack bool) { s.ack = ack }

// HeaderTableSize is the peer's advertised SETTINGS_HEADER_TABLE_SIZE.
func (s *Settings) HeaderTableSize() uint32 { return s.headerTableSize }

// SetHeaderTableSize sets SETTINGS_HEADER_TABLE_SIZE.
func (s *Settings) SetHeaderTableSize(n uint32) { s.headerTableSize = n }

// Push reports whether server push is enabled (SETTINGS_ENABLE_PUSH).
func (s *Settings) Push() bool { return s.push }

// SetPush sets SETTINGS_ENABLE_PUSH. The connection controller always
// advertises false: server push is not implemented.
func (s *Settings) SetPush(enabled bool) { s.push = enabled }

// MaxConcurrentStreams is SETTINGS_MAX_CONCURRENT_STREAMS, or the
// default if the peer never sent one.
func (s *Settings) MaxConcurrentStreams() uint32 { return s.maxConcurrentStreams }

// SetMaxConcurrentStreams sets SETTINGS_MAX_CONCURRENT_STREAMS.
func (s *Settings) SetMaxConcurrentStreams(n uint32) {
	s.maxConcurrentStreams = n
	s.hasMaxConcurrentStrms = true
}

// MaxWindowSize is SETTINGS_INITIAL_WINDOW_SIZE: the flow-control
// window size a peer grants every new stream by default.
func (s *Settings) MaxWindowSize() uint32 { return s.initialWindowSize }

// SetMaxWindowSize sets SETTINGS_INITIAL_WINDOW_SIZE.
func (s *Settings) SetMaxWindowSize(n uint32) { s.initialWindowSize = n }

// MaxFrameSize is SETTINGS_MAX_FRAME_SIZE: the largest frame payload
// this endpoint accepts.
func (s *Settings) MaxFrameSize() uint32 { return s.maxFrameSize }

// SetMaxFrameSize sets SETTINGS_MAX_FRAME_SIZE.
func (s *Settings) SetMaxFrameSize(n uint32) { s.maxFrameSize = n }

// MaxHeaderListSize is SETTINGS_MAX_HEADER_LIST_SIZE, and ok reports
// whether the peer sent one at all (it has no RFC-mandated default).
func (s *Settings) MaxHeaderListSize() (n uint32, ok bool) {
	return s.maxHeaderListSize, s.hasMaxHeaderListSize
}

// SetMaxHeaderListSize sets SETTINGS_MAX_HEADER_LIST_SIZE.
func (s *Settings) SetMaxHeaderListSize(n uint32) {
	s.maxHeaderListSize = n
	s.hasMaxHeaderListSize = true
}

// Deserialize decodes fr's payload, a sequence of 6-byte
// code/value pairs, into s. An ACK-flagged SETTINGS frame must carry
// no payload; any payload not a multiple of 6 bytes is a
// FRAME_SIZE_ERROR.
func (s *Settings) Deserialize(fr *FrameHeader) error {
	s.ack = fr.Flags().Has(FlagAck)
	payload := fr.payload

	if s.ack {
		if len(payload) != 0 {
			return NewError(FrameSizeError, "SETTINGS ack carries a payload")
		}
		return nil
	}

	if len(payload)%6 != 0 {
		return NewError(FrameSizeError, "SETTINGS payload is not a multiple of 6 bytes")
	}

	for len(payload) > 0 {
		code := settingCode(uint16(payload[0])<<8 | uint16(payload[1]))
		value := uint32(payload[2])<<24 | uint32(payload[3])<<16 | uint32(payload[4])<<8 | uint32(payload[5])
		payload = payload[6:]

		switch code {
		case settingHeaderTableSize:
			s.headerTableSize = value
		case settingEnablePush:
			s.push = value != 0
		case settingMaxConcurrentStreams:
			s.maxConcurrentStreams = value
			s.hasMaxConcurrentStrms = true
		case settingInitialWindowSize:
			if value > 1<<31-1 {
				return NewError(FlowControlError, "SETTINGS_INITIAL_WINDOW_SIZE exceeds the maximum")
			}
			s.initialWindowSize = value
		case settingMaxFrameSize:
			if value < maxFrameSize || value > 1<<24-1 {
				return NewError(ProtocolError, "SETTINGS_MAX_FRAME_SIZE out of range")
			}
			s.maxFrameSize = value
		case settingMaxHeaderListSize:
			s.maxHeaderListSize = value
			s.hasMaxHeaderListSize = true
		}
		// Unknown settings codes are ignored, per RFC 9113 §6.5.2.
	}

	return nil
}

// Serialize encodes s into fr: SETTINGS_HEADER_TABLE_SIZE,
// SETTINGS_ENABLE_PUSH, SETTINGS_INITIAL_WINDOW_SIZE and
// SETTINGS_MAX_FRAME_SIZE always, SETTINGS_MAX_CONCURRENT_STREAMS and
// SETTINGS_MAX_HEADER_LIST_SIZE only once they were set. It produces an
// empty ACK frame instead when s.ack is set.
func (s *Settings) Serialize(fr *FrameHeader) {
	if s.ack {
		fr.SetFlags(fr.Flags().Add(FlagAck))
		fr.setPayload(nil)
		return
	}

	var b []byte
	b = appendSetting(b, settingHeaderTableSize, s.headerTableSize)
	b = appendSetting(b, settingEnablePush, boolToUint32(s.push))
	if s.hasMaxConcurrentStrms {
		b = appendSetting(b, settingMaxConcurrentStreams, s.maxConcurrentStreams)
	}
	b = appendSetting(b, settingInitialWindowSize, s.initialWindowSize)
	b = appendSetting(b, settingMaxFrameSize, s.maxFrameSize)
	if s.hasMaxHeaderListSize {
		b = appendSetting(b, settingMaxHeaderListSize, s.maxHeaderListSize)
	}

	fr.setPayload(b)
}

func appendSetting(dst []byte, code settingCode, value uint32) []byte {
	return append(dst,
		byte(code>>8), byte(code),
		byte(value>>24), byte(value>>16), byte(value>>8), byte(value),
	)
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// ReadFrame decodes fr's SETTINGS payload into s, for callers using
// the read-into-existing-frame calling convention.
func (s *Settings) ReadFrame(fr *FrameHeader) error { return s.Deserialize(fr) }

// WriteFrame encodes s into fr, for callers using the
// write-into-existing-frame calling convention.
func (s *Settings) WriteFrame(fr *FrameHeader) { s.Serialize(fr) }
