package packet

import (
	"fmt"
	"io"

	"github.com/dvtools/txtrace/internal/protowire"
)

// Perfetto TracePacket field numbers.
const (
	fieldTracePacket = 1 // Trace.packet

	fieldPacketClockSnapshot   = 6
	fieldPacketTimestamp       = 8
	fieldPacketSequenceID      = 10 // trusted_packet_sequence_id
	fieldPacketTrackEvent      = 11
	fieldPacketTrackDescriptor = 60

	fieldSnapshotClocks = 1
	fieldClockID        = 1
	fieldClockTimestamp = 2
	fieldClockUnitMulNs = 6

	fieldTrackUUID       = 1
	fieldTrackName       = 2
	fieldTrackParentUUID = 5

	fieldEventAnnotations = 4
	fieldEventType        = 9
	fieldEventTrackUUID   = 11
	fieldEventCategories  = 22
	fieldEventName        = 23
	fieldEventFlowIDs     = 47

	fieldAnnotationUint   = 3
	fieldAnnotationInt    = 4
	fieldAnnotationDouble = 5
	fieldAnnotationString = 6
	fieldAnnotationName   = 10
)

// TrackEvent types.
const (
	typeSliceBegin = 1
	typeSliceEnd   = 2
)

// AnnotationKind discriminates the value carried by an Annotation. The
// kind is authoritative: only the matching value field is meaningful.
type AnnotationKind uint8

const (
	KindInt AnnotationKind = iota
	KindUint
	KindDouble
	KindString
)

// Annotation is a normalized debug annotation ready for the wire: the
// name already carries any radix suffix, bit vectors and blobs have
// already been rendered to strings.
type Annotation struct {
	Name   string
	Kind   AnnotationKind
	Int    int64
	Uint   uint64
	Double float64
	Str    string
}

// Emitter serializes trace packets to a sink. It is not safe for
// concurrent use; the object model drives it from a single goroutine
// per trace.
type Emitter struct {
	w          io.Writer
	sequenceID uint64
	clockID    uint64

	packet protowire.Buffer
	msg    protowire.Buffer
	sub    protowire.Buffer
}

// NewEmitter returns an Emitter writing framed packets to w. sequenceID
// identifies this recording session; clockID names the clock domain all
// event timestamps belong to.
func NewEmitter(w io.Writer, sequenceID, clockID uint64) *Emitter {
	return &Emitter{w: w, sequenceID: sequenceID, clockID: clockID}
}

// ClockSnapshot emits the once-per-trace clock description packet.
// unitMultiplierNs scales event timestamps to nanoseconds.
func (e *Emitter) ClockSnapshot(unitMultiplierNs uint64) error {
	e.sub.Reset()
	e.sub.AppendUint64Field(fieldClockID, e.clockID)
	e.sub.AppendUint64Field(fieldClockTimestamp, 0)
	if unitMultiplierNs > 1 {
		e.sub.AppendUint64Field(fieldClockUnitMulNs, unitMultiplierNs)
	}

	e.msg.Reset()
	e.msg.AppendBytesField(fieldSnapshotClocks, e.sub.Bytes())

	return e.writePacket(0, fieldPacketClockSnapshot)
}

// TrackDescriptor emits a descriptor for the track identified by uuid.
// parentUUID is zero for stream-level tracks and the parent
// transaction's track UUID for child sub-tracks.
func (e *Emitter) TrackDescriptor(uuid uint64, name string, parentUUID uint64) error {
	e.msg.Reset()
	e.msg.AppendUint64Field(fieldTrackUUID, uuid)
	e.msg.AppendStringField(fieldTrackName, name)
	if parentUUID != 0 {
		e.msg.AppendUint64Field(fieldTrackParentUUID, parentUUID)
	}

	return e.writePacket(0, fieldPacketTrackDescriptor)
}

// SliceBegin emits a TYPE_SLICE_BEGIN event carrying the transaction's
// name, category, annotations, and flow IDs.
func (e *Emitter) SliceBegin(timestamp, trackUUID uint64, name, category string, annotations []Annotation, flowIDs []uint64) error {
	e.msg.Reset()
	for _, a := range annotations {
		e.sub.Reset()
		appendAnnotation(&e.sub, a)
		e.msg.AppendBytesField(fieldEventAnnotations, e.sub.Bytes())
	}
	e.msg.AppendUint64Field(fieldEventType, typeSliceBegin)
	e.msg.AppendUint64Field(fieldEventTrackUUID, trackUUID)
	if category != "" {
		e.msg.AppendStringField(fieldEventCategories, category)
	}
	e.msg.AppendStringField(fieldEventName, name)
	for _, id := range flowIDs {
		e.msg.AppendFixed64Field(fieldEventFlowIDs, id)
	}

	return e.writePacket(timestamp, fieldPacketTrackEvent)
}

// SliceEnd emits the matching TYPE_SLICE_END event.
func (e *Emitter) SliceEnd(timestamp, trackUUID uint64, flowIDs []uint64) error {
	e.msg.Reset()
	e.msg.AppendUint64Field(fieldEventType, typeSliceEnd)
	e.msg.AppendUint64Field(fieldEventTrackUUID, trackUUID)
	for _, id := range flowIDs {
		e.msg.AppendFixed64Field(fieldEventFlowIDs, id)
	}

	return e.writePacket(timestamp, fieldPacketTrackEvent)
}

func appendAnnotation(b *protowire.Buffer, a Annotation) {
	switch a.Kind {
	case KindUint:
		b.AppendUint64Field(fieldAnnotationUint, a.Uint)
	case KindInt:
		b.AppendInt64Field(fieldAnnotationInt, a.Int)
	case KindDouble:
		b.AppendDoubleField(fieldAnnotationDouble, a.Double)
	case KindString:
		b.AppendStringField(fieldAnnotationString, a.Str)
	}
	b.AppendStringField(fieldAnnotationName, a.Name)
}

// writePacket wraps the staged message (e.msg) under bodyField of a
// TracePacket, frames the packet as Trace.packet, and writes it out.
func (e *Emitter) writePacket(timestamp uint64, bodyField uint32) error {
	// e.msg holds the packet body; stage the TracePacket in a distinct
	// buffer since Bytes aliases the staging storage.
	body := e.msg.Bytes()

	e.sub.Reset()
	e.sub.AppendBytesField(bodyField, body)
	e.sub.AppendUint64Field(fieldPacketTimestamp, timestamp)
	e.sub.AppendUint64Field(fieldPacketSequenceID, e.sequenceID)

	e.packet.Reset()
	e.packet.AppendBytesField(fieldTracePacket, e.sub.Bytes())

	if _, err := e.w.Write(e.packet.Bytes()); err != nil {
		return fmt.Errorf("writing trace packet: %w", err)
	}
	return nil
}
