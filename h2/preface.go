package http2

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"time"
)

// DefaultPingInterval is the keep-alive interval used when ConnOpts
// does not specify one.
const DefaultPingInterval = 10 * time.Second

// http2Preface is the 24-byte client connection preface mandated by
// RFC 9113 section 3.4: "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n". Both sides
// rely on it to detect a peer that is not speaking HTTP/2 before any
// framed bytes are exchanged.
var http2Preface = []byte("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n")

// WritePreface writes the client connection preface to bw. Callers
// still need to flush bw (Handshake does this as part of sending the
// initial SETTINGS).
func WritePreface(bw *bufio.Writer) error {
	_, err := bw.Write(http2Preface)
	return err
}

// ReadPreface reads and validates the connection preface from c. It
// reports false on any I/O error or mismatch, in which case the
// caller should close the connection without further protocol
// handling.
func ReadPreface(c net.Conn) bool {
	b := make([]byte, len(http2Preface))
	_, err := io.ReadFull(c, b)
	return err == nil && bytes.Equal(b, http2Preface)
}
