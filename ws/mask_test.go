package ws

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyMaskRoundTrip(t *testing.T) {
	key := MaskKey{0x12, 0x34, 0x56, 0x78}
	for _, n := range []int{0, 1, 3, 4, 7, 8, 9, 15, 16, 17, 1024, 1031} {
		original := bytes.Repeat([]byte{0xAB}, n)
		for i := range original {
			original[i] = byte(i)
		}
		got := append([]byte(nil), original...)

		ApplyMask(got, key)
		if n > 0 {
			assert.NotEqual(t, original, got, "n=%d", n)
		}
		ApplyMask(got, key)
		assert.Equal(t, original, got, "n=%d", n)
	}
}

func TestApplyMaskMatchesNaive(t *testing.T) {
	key := MaskKey{0x01, 0x02, 0x03, 0x04}
	data := make([]byte, 37)
	for i := range data {
		data[i] = byte(i * 7)
	}

	want := append([]byte(nil), data...)
	for i := range want {
		want[i] ^= key[i%4]
	}

	got := append([]byte(nil), data...)
	ApplyMask(got, key)

	assert.Equal(t, want, got)
}
