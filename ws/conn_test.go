package ws

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c410-f3r/wtx-sub004/transport"
)

// pairedConns builds a client Conn and a server Conn wired directly to
// each other over two in-memory byte queues, so writes on one side are
// immediately readable on the other.
func pairedConns(t *testing.T, clientOpts, serverOpts Options) (*Conn, *Conn) {
	t.Helper()
	var c2s, s2c bytes.Buffer

	client, err := New(transport.NewPipe(&s2c, nil), transport.NewPipe(nil, &c2s), clientOpts.toConfig(RoleClient))
	require.NoError(t, err)
	server, err := New(transport.NewPipe(&c2s, nil), transport.NewPipe(nil, &s2c), serverOpts.toConfig(RoleServer))
	require.NoError(t, err)

	return client, server
}

func TestConnPingIsAnsweredWithPong(t *testing.T) {
	client, server := pairedConns(t, DefaultOptions(), DefaultOptions())

	require.NoError(t, client.WriteFrame(OpPing, []byte("hi")))
	// A frame after the Ping gives ReadFrame's internal loop something to
	// return once it has drained the control frame, since the in-memory
	// pipe (unlike a real socket) reports EOF rather than blocking once
	// drained.
	require.NoError(t, client.WriteFrame(OpText, []byte("after ping")))

	msg, err := server.ReadFrame(ModeAdaptive, nil)
	require.NoError(t, err)
	assert.Equal(t, "after ping", string(msg.Payload))

	fr := server.drainReply()
	require.NotNil(t, fr)
	assert.Equal(t, OpPong, fr.Opcode())
	assert.Equal(t, "hi", string(fr.Payload()))
	ReleaseFrame(fr)
}

func TestConnTextMessageSingleFrameAdaptive(t *testing.T) {
	client, server := pairedConns(t, DefaultOptions(), DefaultOptions())

	require.NoError(t, client.WriteFrame(OpText, []byte("hello world")))

	msg, err := server.ReadFrame(ModeAdaptive, nil)
	require.NoError(t, err)
	assert.Equal(t, OpText, msg.Opcode)
	assert.Equal(t, "hello world", string(msg.Payload))
}

func TestConnTextMessageFragmentedAcrossContinuation(t *testing.T) {
	client, server := pairedConns(t, DefaultOptions(), DefaultOptions())

	first := AcquireFrame()
	first.SetFIN(false)
	first.SetOpcode(OpText)
	first.SetPayload([]byte("hel"))
	require.NoError(t, WriteFrame(client.w, first, true))
	ReleaseFrame(first)

	second := AcquireFrame()
	second.SetFIN(true)
	second.SetOpcode(OpContinuation)
	second.SetPayload([]byte("lo"))
	require.NoError(t, WriteFrame(client.w, second, true))
	ReleaseFrame(second)

	dst := make([]byte, 64)
	msg, err := server.ReadFrame(ModeConsistent, dst)
	require.NoError(t, err)
	assert.Equal(t, OpText, msg.Opcode)
	assert.Equal(t, "hello", string(msg.Payload))
}

func TestConnCloseHandshakeEchoesAndClosesBothSides(t *testing.T) {
	client, server := pairedConns(t, DefaultOptions(), DefaultOptions())

	closePayload := append([]byte{0x03, 0xE8}, []byte("bye")...) // 1000, "bye"
	require.NoError(t, client.WriteFrame(OpClose, closePayload))

	msg, err := server.ReadFrame(ModeAdaptive, nil)
	require.NoError(t, err)
	assert.Equal(t, OpClose, msg.Opcode)
	assert.Equal(t, StateClosed, server.State())

	reply := server.drainReply()
	require.NotNil(t, reply)
	assert.Equal(t, OpClose, reply.Opcode())
	require.NoError(t, WriteFrame(server.w, reply, false))
	ReleaseFrame(reply)

	_, err = client.ReadFrame(ModeAdaptive, nil)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, client.State())

	_, err = client.ReadFrame(ModeAdaptive, nil)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConnWriteFrameRejectsAfterClosed(t *testing.T) {
	client, _ := pairedConns(t, DefaultOptions(), DefaultOptions())
	require.NoError(t, client.WriteFrame(OpClose, nil))
	err := client.WriteFrame(OpText, []byte("too late"))
	assert.Error(t, err)
}

func TestConnServerRejectsUnmaskedFrame(t *testing.T) {
	var in, out bytes.Buffer
	server, err := New(transport.NewPipe(&in, nil), transport.NewPipe(nil, &out), DefaultOptions().toConfig(RoleServer))
	require.NoError(t, err)

	fr := AcquireFrame()
	fr.SetFIN(true)
	fr.SetOpcode(OpText)
	fr.SetPayload([]byte("nope"))
	require.NoError(t, WriteFrame(transport.NewPipe(nil, &in), fr, false)) // unmasked
	ReleaseFrame(fr)

	_, err = server.ReadFrame(ModeAdaptive, nil)
	assert.ErrorIs(t, err, ErrUnexpectedMask)
}

func TestConnPermessageDeflateRoundTrip(t *testing.T) {
	opts := DefaultOptions().WithCompression(CompressionOptions{
		Enable:           true,
		ClientWindowBits: 15,
		ServerWindowBits: 15,
		CompressionLevel: -1,
	})
	client, server := pairedConns(t, opts, opts)

	message := bytes.Repeat([]byte("compress me please "), 20)
	require.NoError(t, client.WriteFrame(OpText, message))

	msg, err := server.ReadFrame(ModeAdaptive, nil)
	require.NoError(t, err)
	assert.Equal(t, message, msg.Payload)
}
