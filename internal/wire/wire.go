// Package wire holds the small big-endian integer, padding and buffer
// helpers shared by the ws and h2 packages. None of it is
// protocol-specific; it plays the same role the teacher's http2utils
// subpackage played for the HTTP/2 frame header.
package wire

import (
	"crypto/rand"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/valyala/fastrand"
)

// PutUint24 writes the low 24 bits of n into b (big endian). b must have
// length >= 3.
func PutUint24(b []byte, n uint32) {
	_ = b[2]
	b[0] = byte(n >> 16)
	b[1] = byte(n >> 8)
	b[2] = byte(n)
}

// Uint24 reads a 24-bit big-endian integer from b. b must have length >= 3.
func Uint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// PutUint32 writes n into b (big endian). b must have length >= 4.
func PutUint32(b []byte, n uint32) {
	_ = b[3]
	b[0] = byte(n >> 24)
	b[1] = byte(n >> 16)
	b[2] = byte(n >> 8)
	b[3] = byte(n)
}

// Uint32 reads a 32-bit big-endian integer from b. b must have length >= 4.
func Uint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// PutUint64 writes n into b (big endian). b must have length >= 8.
func PutUint64(b []byte, n uint64) {
	_ = b[7]
	b[0] = byte(n >> 56)
	b[1] = byte(n >> 48)
	b[2] = byte(n >> 40)
	b[3] = byte(n >> 32)
	b[4] = byte(n >> 24)
	b[5] = byte(n >> 16)
	b[6] = byte(n >> 8)
	b[7] = byte(n)
}

// Uint64 reads a 64-bit big-endian integer from b. b must have length >= 8.
func Uint64(b []byte) uint64 {
	_ = b[7]
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}

// AppendUint32 appends the big-endian encoding of n to dst.
func AppendUint32(dst []byte, n uint32) []byte {
	return append(dst, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
}

// EqualFold reports whether a and b are equal ASCII byte slices modulo
// case, without allocating.
func EqualFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i]|0x20 != b[i]|0x20 {
			return false
		}
	}
	return true
}

// Resize grows b (reusing its backing array when possible) so that it has
// exactly length n.
func Resize(b []byte, n int) []byte {
	b = b[:cap(b)]
	if extra := n - len(b); extra > 0 {
		b = append(b, make([]byte, extra)...)
	}
	return b[:n]
}

// CutPadding strips a one-byte pad-length prefix and the trailing padding
// from payload, given the frame's total declared length.
func CutPadding(payload []byte, length int) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("wire: padded frame has empty payload")
	}
	pad := int(payload[0])
	if length-pad-1 < 0 || len(payload) < length-pad-1 {
		return nil, fmt.Errorf("wire: padding %d exceeds frame length %d", pad, length)
	}
	return payload[1 : length-pad], nil
}

// AddPadding prefixes b with a random pad-length byte n (9 to 255) and
// appends n padding bytes for an HTTP/2 PADDED frame. All but the last
// padding byte are filled from crypto/rand; the last keeps whatever
// Resize left there (zero when the backing array had to grow).
func AddPadding(b []byte) []byte {
	n := int(fastrand.Uint32n(256-9)) + 9
	nn := len(b)

	b = Resize(b, nn+n)
	b = append(b[:1], b...)
	b[0] = uint8(n)
	_, _ = rand.Read(b[nn+1 : nn+n])

	return b
}

// BytesToString converts b to a string without copying. The caller must
// not mutate b afterwards.
func BytesToString(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// StringToBytes converts s to a []byte without copying. The caller must
// not mutate the result.
func StringToBytes(s string) []byte {
	sh := (*reflect.StringHeader)(unsafe.Pointer(&s))
	bh := reflect.SliceHeader{Data: sh.Data, Len: sh.Len, Cap: sh.Len}
	return *(*[]byte)(unsafe.Pointer(&bh))
}
