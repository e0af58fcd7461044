package txtrace

import (
	"fmt"

	"github.com/dvtools/txtrace/internal/packet"
)

// LinkKind is the informational type of a link between transactions.
// The wire encoding carries only the shared flow ID; the kind and
// relation name stay on the in-memory objects.
type LinkKind uint8

const (
	LinkParentChild LinkKind = iota
	LinkRelated
	LinkCauseEffect
	LinkCustom
)

// Link records one association between two transactions.
type Link struct {
	FlowID   uint64
	Kind     LinkKind
	Relation string
	Peer     *Transaction
}

// Transaction is a named timed interval (a slice, in viewer terms).
// Nothing is written at open time except a sub-track descriptor for
// child transactions; the begin and end events are both emitted when
// the transaction closes, so partial traces never contain dangling
// open slices.
type Transaction struct {
	stream    *Stream
	id        uint64
	name      string
	typeName  string
	startTime uint64
	endTime   uint64
	state     State
	handle    int
	parent    *Transaction
	trackUUID uint64

	annotations []packet.Annotation
	flowIDs     []uint64
	links       []Link
}

// Name returns the transaction's name.
func (t *Transaction) Name() string { return t.name }

// TypeName returns the transaction's type name, or "" if unset.
func (t *Transaction) TypeName() string { return t.typeName }

// ID returns the transaction's trace-unique identifier.
func (t *Transaction) ID() uint64 { return t.id }

// Stream returns the owning stream.
func (t *Transaction) Stream() *Stream { return t.stream }

// Parent returns the parent transaction, or nil for a root.
func (t *Transaction) Parent() *Transaction { return t.parent }

// TrackUUID returns the track the transaction's events reference: the
// stream's UUID for roots, a dedicated sub-track UUID for children.
func (t *Transaction) TrackUUID() uint64 { return t.trackUUID }

// StartTime returns the caller-supplied start timestamp.
func (t *Transaction) StartTime() uint64 { return t.startTime }

// EndTime returns the end timestamp, meaningful only once closed.
func (t *Transaction) EndTime() uint64 { return t.endTime }

// State returns the transaction's lifecycle state.
func (t *Transaction) State() State { return t.state }

// IsOpen reports whether the transaction is still open.
func (t *Transaction) IsOpen() bool { return t.state == StateOpen }

// IsClosed reports whether the transaction has been closed.
func (t *Transaction) IsClosed() bool { return t.state == StateClosed }

// Handle returns the transaction's stable lookup handle, or 0 once
// freed.
func (t *Transaction) Handle() int {
	if t.state == StateFreed {
		return 0
	}
	return t.handle
}

// Links returns the links recorded on this transaction.
func (t *Transaction) Links() []Link { return t.links }

// Duration returns end minus start. It fails with ErrNotClosed while
// the transaction is still open.
func (t *Transaction) Duration() (uint64, error) {
	if t.state == StateOpen {
		return 0, fmt.Errorf("duration of open transaction %q: %w", t.name, ErrNotClosed)
	}
	return t.endTime - t.startTime, nil
}

// Close stamps the end time and emits the slice-begin and slice-end
// event pair carrying the accumulated attributes and flow IDs.
// endTime must be >= the start time; ordering is the caller's
// responsibility. Closing a non-open transaction is a no-op.
func (t *Transaction) Close(endTime uint64) error {
	if t.state != StateOpen {
		return nil
	}
	t.endTime = endTime
	t.state = StateClosed

	e := t.stream.trace.emitter
	if err := e.SliceBegin(t.startTime, t.trackUUID, t.name, t.typeName, t.annotations, t.flowIDs); err != nil {
		return err
	}
	return e.SliceEnd(t.endTime, t.trackUUID, t.flowIDs)
}

// Free closes the transaction if still open, using closeTime as the
// end time, then tombstones its handle.
func (t *Transaction) Free(closeTime uint64) error {
	if t.state == StateFreed {
		return nil
	}
	err := t.Close(closeTime)
	t.state = StateFreed
	delete(t.stream.trace.transactionHandles, t.handle)
	return err
}

// AddInt attaches a signed integer attribute. Narrower integer types
// widen to 64 bits before the call.
func (t *Transaction) AddInt(name string, value int64, radix Radix) error {
	if err := t.attrCheck(name); err != nil {
		return err
	}
	t.annotations = append(t.annotations, intAnnotation(name, value, radix))
	return nil
}

// AddUint attaches an unsigned integer attribute.
func (t *Transaction) AddUint(name string, value uint64, radix Radix) error {
	if err := t.attrCheck(name); err != nil {
		return err
	}
	t.annotations = append(t.annotations, uintAnnotation(name, value, radix))
	return nil
}

// AddDouble attaches a floating-point attribute. No radix suffix is
// applied.
func (t *Transaction) AddDouble(name string, value float64) error {
	if err := t.attrCheck(name); err != nil {
		return err
	}
	t.annotations = append(t.annotations, doubleAnnotation(name, value))
	return nil
}

// AddString attaches a string attribute.
func (t *Transaction) AddString(name, value string) error {
	if err := t.attrCheck(name); err != nil {
		return err
	}
	t.annotations = append(t.annotations, stringAnnotation(name, value))
	return nil
}

// AddTime attaches a timestamp attribute in the trace's time unit.
func (t *Transaction) AddTime(name string, value uint64) error {
	return t.AddUint(name, value, RadixTime)
}

// AddBits attaches an arbitrary-width bit vector, rendered as text
// ("0x…" or "0b…", most-significant byte first) and stored as a
// string attribute with the radix suffix convention. bits[0] is the
// most significant byte; len(bits) must cover numBits.
func (t *Transaction) AddBits(name string, bits []byte, numBits int, radix Radix) error {
	if err := t.attrCheck(name); err != nil {
		return err
	}
	if bits == nil {
		return fmt.Errorf("bit vector for %q: %w", name, ErrNilArgument)
	}
	if numBits <= 0 || (numBits+7)/8 > len(bits) {
		return fmt.Errorf("bit vector for %q: %d bits in %d bytes: %w", name, numBits, len(bits), ErrNilArgument)
	}
	rendered := bitsToString(bits[:(numBits+7)/8], radix)
	t.annotations = append(t.annotations, packet.Annotation{
		Name: formatRadixName(name, radix),
		Kind: packet.KindString,
		Str:  rendered,
	})
	return nil
}

// AddBlob attaches binary data, stored on the wire as a lowercase hex
// string. The bytes are copied.
func (t *Transaction) AddBlob(name string, data []byte) error {
	if err := t.attrCheck(name); err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("blob for %q: %w", name, ErrNilArgument)
	}
	t.annotations = append(t.annotations, stringAnnotation(name, blobToString(data)))
	return nil
}

// AddValue attaches a tagged-union value. Integer kinds default to hex
// display.
func (t *Transaction) AddValue(name string, value Value) error {
	switch value.Kind {
	case ValueInt:
		return t.AddInt(name, value.Int, RadixHex)
	case ValueUint:
		return t.AddUint(name, value.Uint, RadixHex)
	case ValueDouble:
		return t.AddDouble(name, value.Double)
	case ValueString:
		return t.AddString(name, value.Str)
	case ValueBlob:
		return t.AddBlob(name, value.Blob)
	default:
		return fmt.Errorf("attribute %q: unknown value kind %d: %w", name, value.Kind, ErrNilArgument)
	}
}

// AddLink associates this transaction with target through a freshly
// allocated flow ID recorded on both. kind and relation are
// informational only; the wire carries just the shared flow ID. Both
// transactions must still be open, or the link could not appear in
// their emitted events.
func (t *Transaction) AddLink(target *Transaction, kind LinkKind, relation string) error {
	if target == nil {
		return fmt.Errorf("link target: %w", ErrNilArgument)
	}
	if target.stream.trace != t.stream.trace {
		return fmt.Errorf("link target belongs to a different trace: %w", ErrInvalidHandle)
	}
	if t.state != StateOpen || target.state != StateOpen {
		return fmt.Errorf("linking %q to %q: %w", t.name, target.name, ErrAlreadyClosed)
	}

	flowID := t.stream.trace.allocFlowID()
	t.flowIDs = append(t.flowIDs, flowID)
	target.flowIDs = append(target.flowIDs, flowID)
	t.links = append(t.links, Link{FlowID: flowID, Kind: kind, Relation: relation, Peer: target})
	target.links = append(target.links, Link{FlowID: flowID, Kind: kind, Relation: relation, Peer: t})
	return nil
}

// attrCheck guards every attribute append: the name must be non-empty
// and the transaction still open (attributes are emitted with the
// begin event at close).
func (t *Transaction) attrCheck(name string) error {
	if name == "" {
		return fmt.Errorf("attribute name: %w", ErrInvalidName)
	}
	if t.state != StateOpen {
		return fmt.Errorf("attribute %q on %s transaction %q: %w", name, t.state, t.name, ErrAlreadyClosed)
	}
	return nil
}
