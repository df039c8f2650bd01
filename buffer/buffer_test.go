package buffer

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadIntoFollowingAppends(t *testing.T) {
	b := New(4)
	r := bytes.NewReader([]byte("hello world"))

	n, err := b.ReadIntoFollowing(r, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(b.Following()))
}

func TestSetIndicesAndAdvance(t *testing.T) {
	b := New(16)
	r := bytes.NewReader([]byte("0123456789"))
	_, err := b.ReadIntoFollowing(r, 10)
	require.NoError(t, err)

	require.NoError(t, b.SetIndices(0, 4, 6))
	assert.Equal(t, "0123", string(b.Current()))
	assert.Equal(t, "456789", string(b.Following()))

	b.AdvancePastCurrent()
	assert.Equal(t, "0123", string(b.Antecedent()))
	assert.Empty(t, b.Current())

	require.NoError(t, b.SetIndices(4, 6, 0))
	assert.Equal(t, "456789", string(b.Current()))
}

func TestSetIndicesRejectsOutOfRange(t *testing.T) {
	b := New(8)
	_, err := b.ReadIntoFollowing(bytes.NewReader([]byte("abcd")), 4)
	require.NoError(t, err)

	assert.Error(t, b.SetIndices(0, 100, 0))
	assert.Error(t, b.SetIndices(-1, 1, 0))
}

func TestReclaimShiftsAntecedentAway(t *testing.T) {
	b := New(8)
	_, err := b.ReadIntoFollowing(bytes.NewReader([]byte("abcdefgh")), 8)
	require.NoError(t, err)

	require.NoError(t, b.SetIndices(0, 5, 0))
	b.AdvancePastCurrent() // currentStart = 5, past the 50% threshold of cap 8

	b.Reclaim()
	assert.Equal(t, 0, len(b.Antecedent()))
	assert.Equal(t, "fgh", string(b.Following()))
}

func TestReserveGrowsCapacity(t *testing.T) {
	b := New(2)
	b.Reserve(100)
	assert.GreaterOrEqual(t, b.Cap(), 100)
}

func TestReadIntoFollowingPropagatesEOF(t *testing.T) {
	b := New(4)
	_, err := b.ReadIntoFollowing(bytes.NewReader(nil), 4)
	assert.ErrorIs(t, err, io.EOF)
}
