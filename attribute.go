package txtrace

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dvtools/txtrace/internal/packet"
)

// Radix selects how a viewer should display a numeric attribute. The
// wire format has no radix field, so a non-default radix is encoded as
// a bracketed suffix on the attribute name ("addr[hex]").
type Radix uint8

const (
	RadixDefault Radix = iota
	RadixBin
	RadixOct
	RadixDec
	RadixHex
	RadixUnsigned
	RadixTime
)

// suffix returns the display-radix tag appended to attribute names.
func (r Radix) suffix() string {
	switch r {
	case RadixBin:
		return "[bin]"
	case RadixOct:
		return "[oct]"
	case RadixDec:
		return "[dec]"
	case RadixHex:
		return "[hex]"
	case RadixUnsigned:
		return "[u]"
	case RadixTime:
		return "[time]"
	default:
		return ""
	}
}

func formatRadixName(name string, radix Radix) string {
	return name + radix.suffix()
}

// bitsToString renders a bit vector as text, most-significant byte
// first: "0x…" for hex, "0b…" for binary. Unsupported radices fall
// back to hex. bits[0] is the most significant byte.
func bitsToString(bits []byte, radix Radix) string {
	var b strings.Builder
	switch radix {
	case RadixBin:
		b.WriteString("0b")
		for _, by := range bits {
			fmt.Fprintf(&b, "%08b", by)
		}
	default:
		b.WriteString("0x")
		for _, by := range bits {
			fmt.Fprintf(&b, "%02X", by)
		}
	}
	return b.String()
}

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	ValueInt ValueKind = iota
	ValueUint
	ValueDouble
	ValueString
	ValueBlob
)

// Value is a tagged attribute value. The Kind is authoritative: only
// the field matching it is read.
type Value struct {
	Kind   ValueKind
	Int    int64
	Uint   uint64
	Double float64
	Str    string
	Blob   []byte
}

// IntValue wraps a signed integer.
func IntValue(v int64) Value { return Value{Kind: ValueInt, Int: v} }

// UintValue wraps an unsigned integer.
func UintValue(v uint64) Value { return Value{Kind: ValueUint, Uint: v} }

// DoubleValue wraps a floating-point number.
func DoubleValue(v float64) Value { return Value{Kind: ValueDouble, Double: v} }

// StringValue wraps a string.
func StringValue(v string) Value { return Value{Kind: ValueString, Str: v} }

// BlobValue wraps binary data. The bytes are copied.
func BlobValue(v []byte) Value {
	return Value{Kind: ValueBlob, Blob: append([]byte(nil), v...)}
}

// blobToString renders blob bytes the way they go on the wire: plain
// lowercase hex, no prefix.
func blobToString(data []byte) string {
	return hex.EncodeToString(data)
}

// annotation builders shared by the typed Add* methods.

func intAnnotation(name string, v int64, radix Radix) packet.Annotation {
	return packet.Annotation{Name: formatRadixName(name, radix), Kind: packet.KindInt, Int: v}
}

func uintAnnotation(name string, v uint64, radix Radix) packet.Annotation {
	return packet.Annotation{Name: formatRadixName(name, radix), Kind: packet.KindUint, Uint: v}
}

func doubleAnnotation(name string, v float64) packet.Annotation {
	return packet.Annotation{Name: name, Kind: packet.KindDouble, Double: v}
}

func stringAnnotation(name, v string) packet.Annotation {
	return packet.Annotation{Name: name, Kind: packet.KindString, Str: v}
}
