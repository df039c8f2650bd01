package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtensionOfferDefaults(t *testing.T) {
	p, err := ParseExtensionOffer("")
	require.NoError(t, err)
	assert.True(t, p.Enabled)
	assert.Equal(t, 15, p.ServerMaxWindowBits)
	assert.False(t, p.ServerNoContextTakeover)
}

func TestParseExtensionOfferParsesParams(t *testing.T) {
	p, err := ParseExtensionOffer("server_no_context_takeover; client_max_window_bits=10")
	require.NoError(t, err)
	assert.True(t, p.ServerNoContextTakeover)
	assert.Equal(t, 10, p.ClientMaxWindowBits)
}

func TestParseExtensionOfferRejectsUnknownParam(t *testing.T) {
	_, err := ParseExtensionOffer("not_a_real_param")
	assert.Error(t, err)
}

func TestParseExtensionOfferRejectsBadWindowBits(t *testing.T) {
	_, err := ParseExtensionOffer("server_max_window_bits=99")
	assert.Error(t, err)
}

func TestDeflateContextRoundTrip(t *testing.T) {
	enc, err := newDeflateContext(false)
	require.NoError(t, err)
	dec, err := newDeflateContext(false)
	require.NoError(t, err)

	message := []byte("the quick brown fox jumps over the lazy dog, the quick brown fox jumps again")
	compressed, err := enc.Compress(message)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(message))

	got, err := dec.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, message, got)
}

func TestDeflateContextNoContextTakeoverStillRoundTrips(t *testing.T) {
	enc, err := newDeflateContext(true)
	require.NoError(t, err)
	dec, err := newDeflateContext(true)
	require.NoError(t, err)

	for _, msg := range [][]byte{[]byte("first message"), []byte("second message, unrelated")} {
		compressed, err := enc.Compress(msg)
		require.NoError(t, err)
		got, err := dec.Decompress(compressed)
		require.NoError(t, err)
		assert.Equal(t, msg, got)
	}
}
