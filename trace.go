package txtrace

import (
	"fmt"

	"github.com/dvtools/txtrace/internal/packet"
	"github.com/dvtools/txtrace/internal/sink"
)

// builtinClockMonotonic is the Perfetto clock domain all event
// timestamps are declared against.
const builtinClockMonotonic = 64

// Trace is the root container of one recording session. It owns the
// output sink, all streams opened on it, and the identifier counters
// that keep handles, track UUIDs, transaction IDs, and flow IDs unique
// for the trace's lifetime.
//
// A Trace and everything under it must be driven from a single
// goroutine; cross-goroutine sharing needs external synchronization.
type Trace struct {
	filename string
	name     string
	timeUnit string

	sequenceID uint64
	out        *sink.Sink
	emitter    *packet.Emitter
	closed     bool

	streams []*Stream

	// Handle registries, tombstoned at Free.
	streamHandles      map[int]*Stream
	transactionHandles map[int]*Transaction

	// Identifier allocators: seeded at 1, post-increment, never
	// recycled. Zero is reserved for "unset".
	nextStreamHandle      int
	nextTransactionHandle int
	nextTrackUUID         uint64
	nextTransactionID     uint64
	nextFlowID            uint64
}

// Option configures trace construction.
type Option func(*options)

type options struct {
	compress   bool
	sequenceID uint64
}

// WithCompression gzip-compresses the output file. Perfetto readers
// accept compressed traces transparently.
func WithCompression() Option {
	return func(o *options) { o.compress = true }
}

// WithSequenceID overrides the packet sequence identifier reported to
// the viewer. The default is 1.
func WithSequenceID(id uint64) Option {
	return func(o *options) { o.sequenceID = id }
}

// New creates a trace, opens its output file, and emits the initial
// clock description packet. timeUnit declares the resolution of all
// caller-supplied timestamps ("ns", "10ns", "1us", ...).
//
// Open failure aborts construction: no file handle or partial trace
// state is retained.
func New(filename, name, timeUnit string, opts ...Option) (*Trace, error) {
	if filename == "" {
		return nil, fmt.Errorf("trace filename: %w", ErrNilArgument)
	}
	if name == "" {
		return nil, fmt.Errorf("trace name: %w", ErrInvalidName)
	}

	mul, err := parseTimeUnit(timeUnit)
	if err != nil {
		return nil, err
	}

	o := options{sequenceID: 1}
	for _, opt := range opts {
		opt(&o)
	}

	out, err := sink.Create(filename, o.compress)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSink, err)
	}

	t := &Trace{
		filename:              filename,
		name:                  name,
		timeUnit:              timeUnit,
		sequenceID:            o.sequenceID,
		out:                   out,
		emitter:               packet.NewEmitter(out, o.sequenceID, builtinClockMonotonic),
		streamHandles:         make(map[int]*Stream),
		transactionHandles:    make(map[int]*Transaction),
		nextStreamHandle:      1,
		nextTransactionHandle: 1,
		nextTrackUUID:         1,
		nextTransactionID:     1,
		nextFlowID:            1,
	}

	if err := t.emitter.ClockSnapshot(mul); err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("%w: %w", ErrSink, err)
	}
	return t, nil
}

// Name returns the trace's display name.
func (t *Trace) Name() string { return t.name }

// Filename returns the path of the output file.
func (t *Trace) Filename() string { return t.filename }

// TimeUnit returns the declared timestamp resolution.
func (t *Trace) TimeUnit() string { return t.timeUnit }

// SequenceID identifies this recording session in the output.
func (t *Trace) SequenceID() uint64 { return t.sequenceID }

// Streams returns the streams opened on this trace, in open order,
// including closed and freed ones.
func (t *Trace) Streams() []*Stream { return t.streams }

// OpenStream creates a named lane for related transactions and emits
// its track descriptor. scope and typeName are optional and may be
// empty.
func (t *Trace) OpenStream(name, scope, typeName string) (*Stream, error) {
	if t.closed {
		return nil, fmt.Errorf("opening stream %q: %w", name, ErrNotOpen)
	}
	if name == "" {
		return nil, fmt.Errorf("stream name: %w", ErrInvalidName)
	}

	s := &Stream{
		trace:    t,
		uuid:     t.allocTrackUUID(),
		name:     name,
		scope:    scope,
		typeName: typeName,
		state:    StateOpen,
		handle:   t.allocStreamHandle(),
	}
	t.streams = append(t.streams, s)
	t.streamHandles[s.handle] = s

	if err := t.emitter.TrackDescriptor(s.uuid, s.name, 0); err != nil {
		return nil, err
	}
	return s, nil
}

// StreamByHandle resolves an integer stream handle. Handles of freed
// streams report ErrInvalidHandle.
func (t *Trace) StreamByHandle(handle int) (*Stream, error) {
	s, ok := t.streamHandles[handle]
	if !ok {
		return nil, fmt.Errorf("stream handle %d: %w", handle, ErrInvalidHandle)
	}
	return s, nil
}

// TransactionByHandle resolves an integer transaction handle. Handles
// of freed transactions report ErrInvalidHandle.
func (t *Trace) TransactionByHandle(handle int) (*Transaction, error) {
	txn, ok := t.transactionHandles[handle]
	if !ok {
		return nil, fmt.Errorf("transaction handle %d: %w", handle, ErrInvalidHandle)
	}
	return txn, nil
}

// Close cascades Close over all streams, then finalizes the output
// file. Closing an already-closed trace is a no-op.
func (t *Trace) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	var firstErr error
	for _, s := range t.streams {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := t.out.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("%w: %w", ErrSink, err)
	}
	return firstErr
}

func (t *Trace) allocStreamHandle() int {
	h := t.nextStreamHandle
	t.nextStreamHandle++
	return h
}

func (t *Trace) allocTransactionHandle() int {
	h := t.nextTransactionHandle
	t.nextTransactionHandle++
	return h
}

func (t *Trace) allocTrackUUID() uint64 {
	u := t.nextTrackUUID
	t.nextTrackUUID++
	return u
}

func (t *Trace) allocTransactionID() uint64 {
	id := t.nextTransactionID
	t.nextTransactionID++
	return id
}

func (t *Trace) allocFlowID() uint64 {
	id := t.nextFlowID
	t.nextFlowID++
	return id
}
