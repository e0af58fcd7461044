package packet

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// field is a decoded protobuf field: varint/fixed64 fields carry num,
// length-delimited fields carry raw.
type field struct {
	number uint32
	wire   uint32
	num    uint64
	raw    []byte
}

// parseFields walks a serialized message and returns its fields in order.
func parseFields(t *testing.T, data []byte) []field {
	t.Helper()
	var fields []field
	for len(data) > 0 {
		tag, n := binary.Uvarint(data)
		require.Positive(t, n, "truncated tag")
		data = data[n:]

		f := field{number: uint32(tag >> 3), wire: uint32(tag & 7)}
		switch f.wire {
		case 0:
			v, n := binary.Uvarint(data)
			require.Positive(t, n, "truncated varint")
			f.num = v
			data = data[n:]
		case 1:
			require.GreaterOrEqual(t, len(data), 8, "truncated fixed64")
			f.num = binary.LittleEndian.Uint64(data)
			data = data[8:]
		case 2:
			l, n := binary.Uvarint(data)
			require.Positive(t, n, "truncated length")
			data = data[n:]
			require.GreaterOrEqual(t, uint64(len(data)), l, "truncated payload")
			f.raw = data[:l]
			data = data[l:]
		default:
			t.Fatalf("unexpected wire type %d", f.wire)
		}
		fields = append(fields, f)
	}
	return fields
}

// readPackets splits the emitter output into TracePacket payloads.
func readPackets(t *testing.T, data []byte) [][]byte {
	t.Helper()
	var packets [][]byte
	for _, f := range parseFields(t, data) {
		require.Equal(t, uint32(fieldTracePacket), f.number)
		require.Equal(t, uint32(2), f.wire)
		packets = append(packets, f.raw)
	}
	return packets
}

func findField(fields []field, number uint32) (field, bool) {
	for _, f := range fields {
		if f.number == number {
			return f, true
		}
	}
	return field{}, false
}

func TestClockSnapshot(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, 1, 64)
	require.NoError(t, e.ClockSnapshot(1000))

	packets := readPackets(t, buf.Bytes())
	require.Len(t, packets, 1)

	fields := parseFields(t, packets[0])
	snap, ok := findField(fields, fieldPacketClockSnapshot)
	require.True(t, ok, "missing clock_snapshot")
	seq, ok := findField(fields, fieldPacketSequenceID)
	require.True(t, ok, "missing trusted_packet_sequence_id")
	assert.Equal(t, uint64(1), seq.num)

	clocks, ok := findField(parseFields(t, snap.raw), fieldSnapshotClocks)
	require.True(t, ok, "missing clocks entry")

	clockFields := parseFields(t, clocks.raw)
	id, _ := findField(clockFields, fieldClockID)
	assert.Equal(t, uint64(64), id.num)
	mul, ok := findField(clockFields, fieldClockUnitMulNs)
	require.True(t, ok, "missing unit_multiplier_ns")
	assert.Equal(t, uint64(1000), mul.num)
}

func TestClockSnapshot_NanosecondUnitOmitsMultiplier(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, 1, 64)
	require.NoError(t, e.ClockSnapshot(1))

	packets := readPackets(t, buf.Bytes())
	snap, _ := findField(parseFields(t, packets[0]), fieldPacketClockSnapshot)
	clocks, _ := findField(parseFields(t, snap.raw), fieldSnapshotClocks)
	_, ok := findField(parseFields(t, clocks.raw), fieldClockUnitMulNs)
	assert.False(t, ok, "1ns multiplier should be implicit")
}

func TestTrackDescriptor(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, 1, 64)
	require.NoError(t, e.TrackDescriptor(7, "axi0", 0))

	packets := readPackets(t, buf.Bytes())
	require.Len(t, packets, 1)

	desc, ok := findField(parseFields(t, packets[0]), fieldPacketTrackDescriptor)
	require.True(t, ok)

	fields := parseFields(t, desc.raw)
	uuid, _ := findField(fields, fieldTrackUUID)
	assert.Equal(t, uint64(7), uuid.num)
	name, _ := findField(fields, fieldTrackName)
	assert.Equal(t, "axi0", string(name.raw))
	_, ok = findField(fields, fieldTrackParentUUID)
	assert.False(t, ok, "root track must not carry parent_uuid")
}

func TestTrackDescriptor_Child(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, 1, 64)
	require.NoError(t, e.TrackDescriptor(9, "burst", 7))

	packets := readPackets(t, buf.Bytes())
	desc, _ := findField(parseFields(t, packets[0]), fieldPacketTrackDescriptor)
	parent, ok := findField(parseFields(t, desc.raw), fieldTrackParentUUID)
	require.True(t, ok, "child track needs parent_uuid")
	assert.Equal(t, uint64(7), parent.num)
}

func TestSliceBeginEnd(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, 3, 64)

	annotations := []Annotation{
		{Name: "addr[hex]", Kind: KindUint, Uint: 0x1234},
		{Name: "delta", Kind: KindInt, Int: -5},
	}
	require.NoError(t, e.SliceBegin(1000, 7, "read", "axi", annotations, []uint64{42}))
	require.NoError(t, e.SliceEnd(2000, 7, []uint64{42}))

	packets := readPackets(t, buf.Bytes())
	require.Len(t, packets, 2)

	// Begin packet.
	beginFields := parseFields(t, packets[0])
	ts, _ := findField(beginFields, fieldPacketTimestamp)
	assert.Equal(t, uint64(1000), ts.num)
	seq, _ := findField(beginFields, fieldPacketSequenceID)
	assert.Equal(t, uint64(3), seq.num)

	ev, ok := findField(beginFields, fieldPacketTrackEvent)
	require.True(t, ok)
	evFields := parseFields(t, ev.raw)

	typ, _ := findField(evFields, fieldEventType)
	assert.Equal(t, uint64(typeSliceBegin), typ.num)
	track, _ := findField(evFields, fieldEventTrackUUID)
	assert.Equal(t, uint64(7), track.num)
	name, _ := findField(evFields, fieldEventName)
	assert.Equal(t, "read", string(name.raw))
	cat, _ := findField(evFields, fieldEventCategories)
	assert.Equal(t, "axi", string(cat.raw))
	flow, ok := findField(evFields, fieldEventFlowIDs)
	require.True(t, ok)
	assert.Equal(t, uint32(1), flow.wire, "flow_ids is fixed64")
	assert.Equal(t, uint64(42), flow.num)

	var anns []field
	for _, f := range evFields {
		if f.number == fieldEventAnnotations {
			anns = append(anns, f)
		}
	}
	require.Len(t, anns, 2)

	a0 := parseFields(t, anns[0].raw)
	n0, _ := findField(a0, fieldAnnotationName)
	assert.Equal(t, "addr[hex]", string(n0.raw))
	v0, _ := findField(a0, fieldAnnotationUint)
	assert.Equal(t, uint64(0x1234), v0.num)

	a1 := parseFields(t, anns[1].raw)
	v1, ok := findField(a1, fieldAnnotationInt)
	require.True(t, ok)
	// int_value is zigzag-encoded: -5 -> 9.
	assert.Equal(t, uint64(9), v1.num)

	// End packet.
	endFields := parseFields(t, packets[1])
	ts, _ = findField(endFields, fieldPacketTimestamp)
	assert.Equal(t, uint64(2000), ts.num)
	ev, _ = findField(endFields, fieldPacketTrackEvent)
	evFields = parseFields(t, ev.raw)
	typ, _ = findField(evFields, fieldEventType)
	assert.Equal(t, uint64(typeSliceEnd), typ.num)
	_, ok = findField(evFields, fieldEventName)
	assert.False(t, ok, "end event carries no name")
}

func TestSliceBegin_DoubleAndStringAnnotations(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(&buf, 1, 64)

	annotations := []Annotation{
		{Name: "ratio", Kind: KindDouble, Double: 0.5},
		{Name: "state", Kind: KindString, Str: "IDLE"},
	}
	require.NoError(t, e.SliceBegin(0, 1, "tx", "", annotations, nil))

	packets := readPackets(t, buf.Bytes())
	ev, _ := findField(parseFields(t, packets[0]), fieldPacketTrackEvent)
	evFields := parseFields(t, ev.raw)

	_, ok := findField(evFields, fieldEventCategories)
	assert.False(t, ok, "empty category must be omitted")

	var anns []field
	for _, f := range evFields {
		if f.number == fieldEventAnnotations {
			anns = append(anns, f)
		}
	}
	require.Len(t, anns, 2)

	d, _ := findField(parseFields(t, anns[0].raw), fieldAnnotationDouble)
	assert.Equal(t, uint64(0x3FE0000000000000), d.num)
	s, _ := findField(parseFields(t, anns[1].raw), fieldAnnotationString)
	assert.Equal(t, "IDLE", string(s.raw))
}
