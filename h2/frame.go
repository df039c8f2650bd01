package http2

import "fmt"

// FrameType identifies which of the ten HTTP/2 frame kinds a
// FrameHeader carries in its Body.
//
// https://httpwg.org/specs/rfc7540.html#FrameTypes
type FrameType uint8

var frameTypeNames = [...]string{
	FrameData:         "DATA",
	FrameHeaders:      "HEADERS",
	FramePriority:     "PRIORITY",
	FrameResetStream:  "RST_STREAM",
	FrameSettings:     "SETTINGS",
	FramePushPromise:  "PUSH_PROMISE",
	FramePing:         "PING",
	FrameGoAway:       "GOAWAY",
	FrameWindowUpdate: "WINDOW_UPDATE",
	FrameContinuation: "CONTINUATION",
}

func (ft FrameType) String() string {
	if int(ft) < len(frameTypeNames) && frameTypeNames[ft] != "" {
		return frameTypeNames[ft]
	}
	return fmt.Sprintf("UNKNOWN_FRAME(0x%x)", uint8(ft))
}

// FrameFlags is the bitset carried in byte 5 of a frame header. The
// same bit means different things for different frame types (e.g.
// 0x1 is ACK on PING/SETTINGS but END_STREAM on DATA/HEADERS), so
// FrameFlags has no type-specific accessors of its own.
type FrameFlags uint8

// Has reports whether flag is set.
func (f FrameFlags) Has(flag FrameFlags) bool {
	return f&flag == flag
}

// Add returns f with flag set.
func (f FrameFlags) Add(flag FrameFlags) FrameFlags {
	return f | flag
}

// Frame is the per-type frame body: a FrameHeader.Body() holds one of
// these, pooled and reused across reads the same way a FrameHeader
// itself is pooled.
type Frame interface {
	Type() FrameType
	Reset()
	Deserialize(fr *FrameHeader) error
	Serialize(fr *FrameHeader)
}

// AcquireFrame returns a pooled Frame body for kind. Callers that
// already hold a FrameHeader should go through FrameHeader.SetBody
// instead; AcquireFrame is for code that needs a typed frame body on
// its own, e.g. to build a frame to send.
func AcquireFrame(kind FrameType) Frame {
	switch kind {
	case FrameData:
		return dataPool.Get().(*Data)
	case FrameHeaders:
		return headersPool.Get().(*Headers)
	case FramePriority:
		return priorityPool.Get().(*Priority)
	case FrameResetStream:
		return rstStreamPool.Get().(*RstStream)
	case FrameSettings:
		return settingsPool.Get().(*Settings)
	case FramePushPromise:
		return pushPromisePool.Get().(*PushPromise)
	case FramePing:
		return pingPool.Get().(*Ping)
	case FrameGoAway:
		return goAwayPool.Get().(*GoAway)
	case FrameWindowUpdate:
		return windowUpdatePool.Get().(*WindowUpdate)
	case FrameContinuation:
		return continuationPool.Get().(*Continuation)
	default:
		return nil
	}
}

// ReleaseFrame resets fr and returns it to its type's pool. It is a
// no-op when fr is nil, so callers can defer it unconditionally after
// FrameHeader.Body().
func ReleaseFrame(fr Frame) {
	if fr == nil {
		return
	}
	fr.Reset()

	switch fr := fr.(type) {
	case *Data:
		dataPool.Put(fr)
	case *Headers:
		headersPool.Put(fr)
	case *Priority:
		priorityPool.Put(fr)
	case *RstStream:
		rstStreamPool.Put(fr)
	case *Settings:
		settingsPool.Put(fr)
	case *PushPromise:
		pushPromisePool.Put(fr)
	case *Ping:
		pingPool.Put(fr)
	case *GoAway:
		goAwayPool.Put(fr)
	case *WindowUpdate:
		windowUpdatePool.Put(fr)
	case *Continuation:
		continuationPool.Put(fr)
	}
}
