package protowire

import (
	"encoding/binary"
	"math"
)

// Protobuf wire types.
const (
	WireVarint          = 0
	WireFixed64         = 1
	WireLengthDelimited = 2
	WireFixed32         = 5
)

// Buffer accumulates encoded fields. The zero value is ready to use.
type Buffer struct {
	buf []byte
}

// Bytes returns the encoded contents. The slice is only valid until the
// next append.
func (b *Buffer) Bytes() []byte { return b.buf }

// Len returns the number of encoded bytes.
func (b *Buffer) Len() int { return len(b.buf) }

// Reset truncates the buffer for reuse.
func (b *Buffer) Reset() { b.buf = b.buf[:0] }

// AppendVarint appends v in base-128 little-endian groups, continuation
// bit set on all but the final byte.
func (b *Buffer) AppendVarint(v uint64) {
	for v >= 0x80 {
		b.buf = append(b.buf, byte(v&0x7f)|0x80)
		v >>= 7
	}
	b.buf = append(b.buf, byte(v))
}

// AppendTag appends the field tag (fieldNumber << 3 | wireType).
func (b *Buffer) AppendTag(fieldNumber, wireType uint32) {
	b.AppendVarint(uint64(fieldNumber)<<3 | uint64(wireType))
}

// AppendUint64Field appends a varint field.
func (b *Buffer) AppendUint64Field(fieldNumber uint32, v uint64) {
	b.AppendTag(fieldNumber, WireVarint)
	b.AppendVarint(v)
}

// AppendInt64Field appends a zigzag-encoded signed varint field, so that
// small-magnitude negatives stay short on the wire.
func (b *Buffer) AppendInt64Field(fieldNumber uint32, v int64) {
	b.AppendUint64Field(fieldNumber, Zigzag(v))
}

// AppendFixed64Field appends an 8-byte little-endian field.
func (b *Buffer) AppendFixed64Field(fieldNumber uint32, v uint64) {
	b.AppendTag(fieldNumber, WireFixed64)
	b.buf = binary.LittleEndian.AppendUint64(b.buf, v)
}

// AppendDoubleField appends a double as a fixed64 field.
func (b *Buffer) AppendDoubleField(fieldNumber uint32, v float64) {
	b.AppendFixed64Field(fieldNumber, math.Float64bits(v))
}

// AppendBytesField appends a length-delimited field: tag, varint length,
// raw bytes. Used for strings, blobs, and nested messages.
func (b *Buffer) AppendBytesField(fieldNumber uint32, data []byte) {
	b.AppendTag(fieldNumber, WireLengthDelimited)
	b.AppendVarint(uint64(len(data)))
	b.buf = append(b.buf, data...)
}

// AppendStringField appends a length-delimited string field.
func (b *Buffer) AppendStringField(fieldNumber uint32, s string) {
	b.AppendTag(fieldNumber, WireLengthDelimited)
	b.AppendVarint(uint64(len(s)))
	b.buf = append(b.buf, s...)
}

// Zigzag maps a signed value onto an unsigned one:
// (v << 1) XOR (v >> 63), arithmetic shift.
func Zigzag(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

// Unzigzag inverts Zigzag.
func Unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
