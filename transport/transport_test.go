package transport

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnWriteAllVectored(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	tc := New(c1)
	done := make(chan error, 1)
	go func() {
		done <- tc.WriteAllVectored([][]byte{[]byte("hello "), []byte("world")})
	}()

	buf := make([]byte, 11)
	_, err := readFull(c2, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf))
	require.NoError(t, <-done)
}

func TestPipeRoundTrip(t *testing.T) {
	var out bytes.Buffer
	in := bytes.NewReader([]byte("payload"))

	p := NewPipe(in, &out)
	require.NoError(t, p.WriteAllVectored([][]byte{[]byte("ab"), []byte("cd")}))
	assert.Equal(t, "abcd", out.String())

	buf := make([]byte, 7)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))
}

func readFull(r net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
