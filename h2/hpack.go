package http2

import (
	"bufio"
	"unsafe"
)

// staticTableEntry is one row of the fixed table every HPACK endpoint
// shares, indices 1-61.
//
// https://tools.ietf.org/html/rfc7541#appendix-A
type staticTableEntry struct{ name, value string }

var staticTable = [61]staticTableEntry{
	{":authority", ""}, {":method", "GET"}, {":method", "POST"},
	{":path", "/"}, {":path", "/index.html"}, {":scheme", "http"},
	{":scheme", "https"}, {":status", "200"}, {":status", "204"},
	{":status", "206"}, {":status", "304"}, {":status", "400"},
	{":status", "404"}, {":status", "500"}, {"accept-charset", ""},
	{"accept-encoding", "gzip, deflate"}, {"accept-language", ""}, {"accept-ranges", ""},
	{"accept", ""}, {"access-control-allow-origin", ""}, {"age", ""},
	{"allow", ""}, {"authorization", ""}, {"cache-control", ""},
	{"content-disposition", ""}, {"content-encoding", ""}, {"content-language", ""},
	{"content-length", ""}, {"content-location", ""}, {"content-range", ""},
	{"content-type", ""}, {"cookie", ""}, {"date", ""},
	{"etag", ""}, {"expect", ""}, {"expires", ""},
	{"from", ""}, {"host", ""}, {"if-match", ""},
	{"if-modified-since", ""}, {"if-none-match", ""}, {"if-range", ""},
	{"if-unmodified-since", ""}, {"last-modified", ""}, {"link", ""},
	{"location", ""}, {"max-forwards", ""}, {"proxy-authenticate", ""},
	{"proxy-authorization", ""}, {"range", ""}, {"referer", ""},
	{"refresh", ""}, {"retry-after", ""}, {"server", ""},
	{"set-cookie", ""}, {"strict-transport-security", ""}, {"transfer-encoding", ""},
	{"user-agent", ""}, {"vary", ""}, {"via", ""},
	{"www-authenticate", ""},
}

// staticTableSize is how many leading dynamic-table indices are
// reserved by the static table before index 62 (RFC 7541 §2.3.3).
const staticTableSize = 61

const defaultHeaderTableSize = 4096

// HPACK holds one direction's dynamic table plus codec scratch state.
// A connection owns two: enc for headers it sends, dec for headers it
// receives, matching RFC 7541's "HPACK is stateful per direction"
// model.
//
// Use AcquireHPACK/ReleaseHPACK instead of constructing one directly.
type HPACK struct {
	dynamic []*HeaderField
	fields  []*HeaderField

	tableSize    int
	maxTableSize int

	// DisableCompression skips Huffman coding on encode, useful for
	// debugging header blocks with a packet capture tool.
	DisableCompression bool
}

var hpackPool = &hpackPoolT{}

type hpackPoolT struct{ pool []*HPACK }

// AcquireHPACK returns a freshly allocated, reset *HPACK.
func AcquireHPACK() *HPACK {
	hp := &HPACK{}
	hp.reset()
	return hp
}

// ReleaseHPACK releases hp's pooled HeaderFields. HPACK structs are
// small enough that pooling the struct itself buys little; what
// matters is returning the HeaderField pointers it holds.
func ReleaseHPACK(hp *HPACK) {
	hp.releaseFields()
	for _, hf := range hp.dynamic {
		ReleaseHeaderField(hf)
	}
	hp.dynamic = hp.dynamic[:0]
}

func (hp *HPACK) reset() {
	hp.maxTableSize = defaultHeaderTableSize
	hp.tableSize = 0
}

// SetMaxTableSize sets the negotiated SETTINGS_HEADER_TABLE_SIZE for
// this direction, evicting entries if the new size is smaller.
func (hp *HPACK) SetMaxTableSize(n int) {
	hp.maxTableSize = n
	hp.evict()
}

func (hp *HPACK) evict() {
	for hp.tableSize > hp.maxTableSize && len(hp.dynamic) > 0 {
		last := hp.dynamic[len(hp.dynamic)-1]
		hp.tableSize -= last.Size()
		ReleaseHeaderField(last)
		hp.dynamic = hp.dynamic[:len(hp.dynamic)-1]
	}
}

// insert prepends hf (already owned by hp) to the dynamic table, per
// RFC 7541 §2.3.2 ("newest entry... lowest index").
func (hp *HPACK) insert(hf *HeaderField) {
	hp.dynamic = append(hp.dynamic, nil)
	copy(hp.dynamic[1:], hp.dynamic)
	hp.dynamic[0] = hf
	hp.tableSize += hf.Size()
	hp.evict()
}

func (hp *HPACK) releaseFields() {
	for _, hf := range hp.fields {
		ReleaseHeaderField(hf)
	}
	hp.fields = hp.fields[:0]
}

// at returns the field at HPACK index i (1-based, static table first),
// or nil if i is out of range.
func (hp *HPACK) at(i int) *HeaderField {
	switch {
	case i < 1:
		return nil
	case i <= staticTableSize:
		e := staticTable[i-1]
		hf := AcquireHeaderField()
		hf.SetKey(e.name)
		hf.SetValue(e.value)
		return hf
	case i-staticTableSize-1 < len(hp.dynamic):
		return hp.dynamic[i-staticTableSize-1]
	default:
		return nil
	}
}

// indexOf returns the HPACK index of an exact name+value match, or of
// a name-only match (nameOnly=true) if no exact match exists. Used by
// the encoder to prefer the shortest representation.
func (hp *HPACK) indexOf(hf *HeaderField) (idx int, nameOnly bool) {
	for i, e := range staticTable {
		if e.name == hf.Key() {
			if e.value == hf.Value() {
				return i + 1, false
			}
			if idx == 0 {
				idx, nameOnly = i+1, true
			}
		}
	}
	for i, d := range hp.dynamic {
		if d.Key() == hf.Key() {
			if d.Value() == hf.Value() {
				return staticTableSize + i + 1, false
			}
			if idx == 0 {
				idx, nameOnly = staticTableSize+i+1, true
			}
		}
	}
	return idx, nameOnly
}

// Add queues a field to be encoded by the next Write call.
func (hp *HPACK) Add(k, v string) {
	hf := AcquireHeaderField()
	hf.Set(k, v)
	hp.fields = append(hp.fields, hf)
}

// Write encodes every field queued by Add since the last Write,
// appending to dst, and stores each as a new dynamic-table entry.
func (hp *HPACK) Write(dst []byte) ([]byte, error) {
	queued := hp.fields
	hp.fields = nil
	for _, hf := range queued {
		dst = hp.AppendHeader(dst, hf, true)
		ReleaseHeaderField(hf)
	}
	return dst, nil
}

// AppendHeader appends the HPACK representation of hf to dst. A field
// with an exact match in the static or dynamic table is encoded as a
// pure indexed reference and the table is left unchanged. Otherwise,
// when store is true the field is encoded as "literal with incremental
// indexing" and added to the dynamic table; when store is false it is
// encoded "without indexing".
func (hp *HPACK) AppendHeader(dst []byte, hf *HeaderField, store bool) []byte {
	idx, nameOnly := hp.indexOf(hf)

	if idx > 0 && !nameOnly {
		dst = append(dst, 0x80)
		dst = appendInt(dst, 7, uint64(idx))
		return dst
	}

	var prefixBits int
	if store {
		dst = append(dst, 0x40)
		prefixBits = 6
	} else if hf.IsSensible() {
		dst = append(dst, 0x10)
		prefixBits = 4
	} else {
		dst = append(dst, 0x0)
		prefixBits = 4
	}

	if idx > 0 {
		dst = appendInt(dst, prefixBits, uint64(idx))
	} else {
		dst = writeString(dst, []byte(hf.Key()), !hp.DisableCompression)
	}
	dst = writeString(dst, hf.ValueBytes(), !hp.DisableCompression)

	if store {
		owned := AcquireHeaderField()
		hf.CopyTo(owned)
		hp.insert(owned)
	}

	return dst
}

// AppendHeaderField encodes hf directly into h's raw header block,
// for callers that hold a Headers frame rather than a standalone
// byte slice.
func (hp *HPACK) AppendHeaderField(h *Headers, hf *HeaderField, store bool) {
	h.AppendHeaderField(hp, hf, store)
}

// Read decodes every representation in b, accumulating decoded fields
// in hp.fields for inspection, and returns any unconsumed tail (which
// should be empty for a complete header block).
func (hp *HPACK) Read(b []byte) ([]byte, error) {
	for len(b) > 0 {
		hf := AcquireHeaderField()
		var err error
		b, err = hp.readField(hf, b)
		if err != nil {
			ReleaseHeaderField(hf)
			return b, err
		}
		if !hf.Empty() {
			hp.fields = append(hp.fields, hf)
		} else {
			ReleaseHeaderField(hf)
		}
	}
	return b, nil
}

// Next decodes exactly one header field representation from b into hf,
// returning the unconsumed remainder. This is what the stream/connection
// controllers call while walking a HEADERS (+ CONTINUATION) block one
// field at a time.
func (hp *HPACK) Next(hf *HeaderField, b []byte) ([]byte, error) {
	return hp.readField(hf, b)
}

// nextField decodes one representation from b into hf, for callers
// streaming a header block across HEADERS/CONTINUATION frame
// boundaries one fragment at a time. headerBlockNum/fieldsProcessed
// are accepted for parity with that streaming call site; a short
// buffer (not yet a whole representation) is reported as
// ErrUnexpectedSize so the caller can buffer more bytes and retry.
func (hp *HPACK) nextField(hf *HeaderField, headerBlockNum, fieldsProcessed int, b []byte) ([]byte, error) {
	_, _ = headerBlockNum, fieldsProcessed
	return hp.readField(hf, b)
}

func (hp *HPACK) readField(hf *HeaderField, b []byte) ([]byte, error) {
	if len(b) == 0 {
		return b, ErrMissingBytes
	}

	first := b[0]
	switch {
	case first&0x80 != 0: // indexed header field
		b, n, err := readInt(7, b)
		if err != nil {
			return b, ErrUnexpectedSize
		}
		src := hp.at(int(n))
		if src == nil {
			return b, ErrCompression
		}
		src.CopyTo(hf)
		if n <= staticTableSize {
			ReleaseHeaderField(src)
		}
		return b, nil

	case first&0x40 != 0: // literal with incremental indexing
		rest, err := hp.readLiteral(hf, 6, b)
		if err != nil {
			return b, err
		}
		owned := AcquireHeaderField()
		hf.CopyTo(owned)
		hp.insert(owned)
		return rest, nil

	case first&0x20 != 0: // dynamic table size update
		b, n, err := readInt(5, b)
		if err != nil {
			return b, ErrUnexpectedSize
		}
		hp.SetMaxTableSize(int(n))
		return b, nil

	default: // literal without indexing / never indexed (0x10 or 0x0)
		sensible := first&0x10 != 0
		rest, err := hp.readLiteral(hf, 4, b)
		if err != nil {
			return b, err
		}
		hf.sensible = sensible
		return rest, nil
	}
}

func (hp *HPACK) readLiteral(hf *HeaderField, prefixBits int, b []byte) ([]byte, error) {
	b, idx, err := readInt(prefixBits, b)
	if err != nil {
		return b, ErrUnexpectedSize
	}

	if idx > 0 {
		src := hp.at(int(idx))
		if src == nil {
			return b, ErrCompression
		}
		hf.SetKeyBytes(src.KeyBytes())
		if idx <= staticTableSize {
			ReleaseHeaderField(src)
		}
	} else {
		var name []byte
		name, b, err = readString(nil, b)
		if err != nil {
			return b, ErrUnexpectedSize
		}
		hf.SetKeyBytes(name)
	}

	value, rest, err := readString(hf.value[:0], b)
	if err != nil {
		return b, ErrUnexpectedSize
	}
	hf.value = value

	return rest, nil
}

// appendInt writes value's HPACK integer representation (RFC 7541
// §5.1) into dst's final byte plus any needed continuation bytes,
// treating dst's current last byte as the already-flagged prefix byte.
func appendInt(dst []byte, n int, value uint64) []byte {
	max := uint64(1)<<uint(n) - 1
	if len(dst) == 0 {
		dst = append(dst, 0)
	}
	i := len(dst) - 1

	if value < max {
		dst[i] |= byte(value)
		return dst
	}

	dst[i] |= byte(max)
	value -= max
	for value >= 128 {
		dst = append(dst, byte(value&0x7f)|0x80)
		value >>= 7
	}
	return append(dst, byte(value))
}

// writeInt is appendInt's fixed-buffer sibling: it reuses dst's full
// capacity as scratch space and returns the trimmed, written prefix.
func writeInt(dst []byte, n int, value uint64) []byte {
	dst = dst[:cap(dst)]
	max := uint64(1)<<uint(n) - 1

	if value < max {
		dst[0] |= byte(value)
		return dst[:1]
	}

	dst[0] |= byte(max)
	value -= max
	i := 1
	for value >= 128 {
		dst[i] = byte(value&0x7f) | 0x80
		value >>= 7
		i++
	}
	dst[i] = byte(value)
	return dst[:i+1]
}

// readInt decodes one HPACK integer from the low n bits of b[0] plus
// any continuation bytes, returning the unconsumed remainder.
func readInt(n int, b []byte) ([]byte, uint64, error) {
	if len(b) == 0 {
		return b, 0, ErrMissingBytes
	}
	max := uint64(1)<<uint(n) - 1
	value := uint64(b[0]) & max
	b = b[1:]

	if value < max {
		return b, value, nil
	}

	var m uint64
	for {
		if len(b) == 0 {
			return b, 0, ErrMissingBytes
		}
		c := b[0]
		b = b[1:]
		value += uint64(c&0x7f) << m
		m += 7
		if c&0x80 == 0 {
			break
		}
	}
	return b, value, nil
}

// readIntFrom is readInt against a bufio.Reader directly, used while
// consuming an HPACK integer that wasn't already buffered in memory.
func readIntFrom(n int, br *bufio.Reader) (uint64, error) {
	max := uint64(1)<<uint(n) - 1
	c, err := br.ReadByte()
	if err != nil {
		return 0, err
	}
	value := uint64(c) & max
	if value < max {
		return value, nil
	}

	var m uint64
	for {
		c, err = br.ReadByte()
		if err != nil {
			return 0, err
		}
		value += uint64(c&0x7f) << m
		m += 7
		if c&0x80 == 0 {
			break
		}
	}
	return value, nil
}

// writeString appends str as an HPACK string literal: a length-prefixed
// byte sequence, Huffman-coded when huffman is true and shorter than
// the raw encoding.
func writeString(dst, str []byte, huffman bool) []byte {
	if huffman && huffmanEncodedLen(str) >= len(str) {
		huffman = false
	}

	start := len(dst)
	dst = append(dst, 0)
	if huffman {
		dst = appendInt(dst, 7, uint64(huffmanEncodedLen(str)))
		dst[start] |= 0x80
		dst = huffmanEncode(dst, str)
	} else {
		dst = appendInt(dst, 7, uint64(len(str)))
		dst = append(dst, str...)
	}
	return dst
}

// readString decodes one HPACK string literal from src, appending the
// decoded bytes to dst, and returns the unconsumed remainder.
func readString(dst, src []byte) ([]byte, []byte, error) {
	if len(src) == 0 {
		return dst, src, ErrMissingBytes
	}
	huff := src[0]&0x80 != 0

	src, n, err := readInt(7, src)
	if err != nil {
		return dst, src, err
	}
	if uint64(len(src)) < n {
		return dst, src, ErrMissingBytes
	}

	raw := src[:n]
	src = src[n:]

	if huff {
		dst, err = huffmanDecode(dst, raw)
		if err != nil {
			return dst, src, err
		}
	} else {
		dst = append(dst, raw...)
	}
	return dst, src, nil
}

// b2s converts b to a string without copying. The returned string
// must not outlive b, matching wire.BytesToString's contract on the
// wire-codec side.
func b2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return *(*string)(unsafe.Pointer(&b))
}
