package ws

import "unsafe"

// MaskKey is the 4-byte masking key a client attaches to every frame it
// sends, per RFC 6455 §5.3.
type MaskKey [4]byte

// ApplyMask XORs b in place with key, cycling the key every 4 bytes. It
// processes 8 bytes at a time via unsafe word loads when b is long enough
// and falls back to a byte-wise loop for the tail, the same trick the
// teacher's masking helpers use for header field copies.
func ApplyMask(b []byte, key MaskKey) {
	if len(b) == 0 {
		return
	}

	var k64 uint64
	kb := (*[8]byte)(unsafe.Pointer(&k64))
	for i := 0; i < 8; i++ {
		kb[i] = key[i%4]
	}

	n := len(b)
	i := 0
	for ; i+8 <= n; i += 8 {
		word := *(*uint64)(unsafe.Pointer(&b[i]))
		word ^= k64
		*(*uint64)(unsafe.Pointer(&b[i])) = word
	}
	for j := 0; i < n; i, j = i+1, j+1 {
		b[i] ^= key[j%4]
	}
}
