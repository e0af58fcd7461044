package txtrace

import "fmt"

// State is the lifecycle position of a stream or transaction. The
// machine runs strictly forward: Open → Closed → Freed.
type State uint8

const (
	StateOpen State = iota
	StateClosed
	StateFreed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFreed:
		return "freed"
	default:
		return "invalid"
	}
}

// Stream is a named lane (a track, in viewer terms) grouping related
// transactions. Its track UUID is assigned once at open and never
// reused, even after the stream is freed.
type Stream struct {
	trace    *Trace
	uuid     uint64
	name     string
	scope    string
	typeName string
	state    State
	handle   int

	transactions []*Transaction
}

// Name returns the stream's name.
func (s *Stream) Name() string { return s.name }

// Scope returns the stream's hierarchical path, or "" if unset.
func (s *Stream) Scope() string { return s.scope }

// TypeName returns the stream's type name, or "" if unset.
func (s *Stream) TypeName() string { return s.typeName }

// UUID returns the wire-level track identifier events reference.
func (s *Stream) UUID() uint64 { return s.uuid }

// State returns the stream's lifecycle state.
func (s *Stream) State() State { return s.state }

// IsOpen reports whether the stream accepts new transactions.
func (s *Stream) IsOpen() bool { return s.state == StateOpen }

// IsClosed reports whether the stream has been closed.
func (s *Stream) IsClosed() bool { return s.state == StateClosed }

// Handle returns the stream's stable lookup handle, or 0 once freed.
func (s *Stream) Handle() int {
	if s.state == StateFreed {
		return 0
	}
	return s.handle
}

// Transactions returns the stream's transactions in open order.
func (s *Stream) Transactions() []*Transaction { return s.transactions }

// OpenTransaction starts a timed interval on the stream. A nil parent
// puts the transaction directly on the stream's lane; a non-nil parent
// nests it on a fresh sub-track under the parent, whose descriptor is
// emitted before any event can reference it. typeName is optional.
func (s *Stream) OpenTransaction(name string, startTime uint64, typeName string, parent *Transaction) (*Transaction, error) {
	if s.state != StateOpen {
		return nil, fmt.Errorf("opening transaction %q on %s stream %q: %w", name, s.state, s.name, ErrNotOpen)
	}
	if name == "" {
		return nil, fmt.Errorf("transaction name: %w", ErrInvalidName)
	}
	if parent != nil && parent.stream.trace != s.trace {
		return nil, fmt.Errorf("parent transaction belongs to a different trace: %w", ErrInvalidHandle)
	}

	txn := &Transaction{
		stream:    s,
		id:        s.trace.allocTransactionID(),
		name:      name,
		typeName:  typeName,
		startTime: startTime,
		state:     StateOpen,
		handle:    s.trace.allocTransactionHandle(),
		parent:    parent,
	}

	if parent != nil {
		// Child transactions render on their own sub-track nested
		// under the parent's track.
		txn.trackUUID = s.trace.allocTrackUUID()
	} else {
		txn.trackUUID = s.uuid
	}

	s.transactions = append(s.transactions, txn)
	s.trace.transactionHandles[txn.handle] = txn

	if parent != nil {
		if err := s.trace.emitter.TrackDescriptor(txn.trackUUID, txn.name, parent.trackUUID); err != nil {
			return nil, err
		}
	}
	return txn, nil
}

// Close closes every still-open transaction on the stream using its
// own start time as a degenerate end time, then closes the stream.
// Closing a non-open stream is a no-op.
func (s *Stream) Close() error {
	if s.state != StateOpen {
		return nil
	}

	var firstErr error
	for _, txn := range s.transactions {
		if txn.state != StateOpen {
			continue
		}
		if err := txn.Close(txn.startTime); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.state = StateClosed
	return firstErr
}

// Free closes the stream if needed and tombstones its handle: lookups
// fail afterwards, but the stream object stays valid until the trace
// is closed.
func (s *Stream) Free() error {
	if s.state == StateFreed {
		return nil
	}
	err := s.Close()
	s.state = StateFreed
	delete(s.trace.streamHandles, s.handle)
	return err
}
