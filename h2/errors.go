package http2

import (
	"errors"
	"fmt"
)

// ErrorCode is a HTTP/2 error code, used in RST_STREAM and GOAWAY frames.
//
// https://httpwg.org/specs/rfc7540.html#ErrorCodes
type ErrorCode uint32

const (
	NoError              ErrorCode = 0x0
	ProtocolError        ErrorCode = 0x1
	InternalError        ErrorCode = 0x2
	FlowControlError     ErrorCode = 0x3
	SettingsTimeoutError ErrorCode = 0x4
	StreamClosedError    ErrorCode = 0x5
	FrameSizeError       ErrorCode = 0x6
	RefusedStreamError   ErrorCode = 0x7
	CancelError          ErrorCode = 0x8
	CompressionError     ErrorCode = 0x9
	ConnectionError      ErrorCode = 0xa
	EnhanceYourCalm      ErrorCode = 0xb
	InadequateSecurity   ErrorCode = 0xc
	HTTP11Required       ErrorCode = 0xd
)

var errorCodeNames = [...]string{
	NoError:              "NO_ERROR",
	ProtocolError:        "PROTOCOL_ERROR",
	InternalError:        "INTERNAL_ERROR",
	FlowControlError:     "FLOW_CONTROL_ERROR",
	SettingsTimeoutError: "SETTINGS_TIMEOUT",
	StreamClosedError:    "STREAM_CLOSED",
	FrameSizeError:       "FRAME_SIZE_ERROR",
	RefusedStreamError:   "REFUSED_STREAM",
	CancelError:          "CANCEL",
	CompressionError:     "COMPRESSION_ERROR",
	ConnectionError:      "CONNECT_ERROR",
	EnhanceYourCalm:      "ENHANCE_YOUR_CALM",
	InadequateSecurity:   "INADEQUATE_SECURITY",
	HTTP11Required:       "HTTP_1_1_REQUIRED",
}

func (c ErrorCode) String() string {
	if int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return fmt.Sprintf("UNKNOWN_ERROR(0x%x)", uint32(c))
}

// Error lets an ErrorCode stand in for an error value on its own, so
// code comparisons like errors.Is(err, FlowControlError) type-check
// without wrapping every code in an Error first.
func (c ErrorCode) Error() string { return c.String() }

// Error carries an ErrorCode plus enough context (which frame should
// carry it, and a human-readable detail) to decide, at the point
// where a stream or connection failure is handled, whether to answer
// with RST_STREAM or GOAWAY.
type Error struct {
	frameType FrameType
	code      ErrorCode
	msg       string
}

// NewError builds a plain protocol error, not yet tied to a frame type.
func NewError(code ErrorCode, msg string) error {
	return Error{code: code, msg: msg}
}

// NewGoAwayError builds an Error that writeError answers with GOAWAY.
func NewGoAwayError(code ErrorCode, msg string) error {
	return Error{frameType: FrameGoAway, code: code, msg: msg}
}

// NewResetStreamError builds an Error that writeError answers with
// RST_STREAM.
func NewResetStreamError(code ErrorCode, msg string) error {
	return Error{frameType: FrameResetStream, code: code, msg: msg}
}

func (e Error) Error() string {
	if e.msg == "" {
		return e.code.String()
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

// Code returns the ErrorCode carried by e.
func (e Error) Code() ErrorCode { return e.code }

// Is lets errors.Is(err, SomeErrorCode) and errors.Is(err, otherError)
// both match on the underlying code, regardless of which frame type
// (if any) the error was built for.
func (e Error) Is(target error) bool {
	if code, ok := target.(ErrorCode); ok {
		return e.code == code
	}
	var other Error
	if errors.As(target, &other) {
		return e.code == other.code
	}
	return false
}

// Sentinel errors surfaced by the frame and preface layer.
var (
	ErrUnknownFrameType      = errors.New("unknown frame type")
	ErrZeroPayload           = errors.New("frame payload length is zero")
	ErrBadPreface            = errors.New("bad connection preface")
	ErrFrameMismatch         = errors.New("frame type mismatch from called function")
	ErrNilWriter             = errors.New("writer cannot be nil")
	ErrNilReader             = errors.New("reader cannot be nil")
	ErrMissingBytes          = errors.New("frame payload is shorter than the fields it must carry")
	ErrPayloadExceeds        = errors.New("frame payload exceeds the negotiated maximum size")
	ErrUnexpectedSize        = errors.New("unexpected payload size")
	ErrCompression           = errors.New("header compression error")
	ErrBitOverflow           = errors.New("bit overflow")
	ErrHuffmanDecode         = errors.New("invalid huffman-coded string")
)
