package otelexport

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/dvtools/txtrace"
)

// Exporter writes finished OpenTelemetry spans into a transaction
// trace. It implements go.opentelemetry.io/otel/sdk/trace.SpanExporter.
//
// The underlying trace is single-goroutine; the exporter serializes
// all access behind its own mutex, so it is safe to use with the SDK's
// simple and batch span processors.
type Exporter struct {
	mu       sync.Mutex
	trace    *txtrace.Trace
	streams  map[string]*txtrace.Stream
	exported map[trace.SpanID]*txtrace.Transaction
	derived  []derivedAttribute
	shutdown bool
}

var _ sdktrace.SpanExporter = (*Exporter)(nil)

// Option configures an Exporter.
type Option func(*Exporter) error

// New creates an exporter that records spans into tr. The exporter
// takes ownership of the trace: Shutdown closes it. The trace should
// use a nanosecond time unit, since span timestamps are recorded as
// Unix nanoseconds.
func New(tr *txtrace.Trace, opts ...Option) (*Exporter, error) {
	if tr == nil {
		return nil, fmt.Errorf("otelexport: %w", txtrace.ErrNilArgument)
	}
	e := &Exporter{
		trace:    tr,
		streams:  make(map[string]*txtrace.Stream),
		exported: make(map[trace.SpanID]*txtrace.Transaction),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// ExportSpans records a batch of finished spans as transactions.
// Spans are processed in start-time order so parents created in the
// same batch exist before their children; links resolve against spans
// of this batch and earlier ones whose transactions are still open.
func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown {
		return fmt.Errorf("exporter is shut down: %w", txtrace.ErrNotOpen)
	}

	ordered := make([]sdktrace.ReadOnlySpan, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartTime().Before(ordered[j].StartTime())
	})

	// Open all transactions first so intra-batch links find both
	// endpoints still open.
	batch := make([]*txtrace.Transaction, 0, len(ordered))
	for _, span := range ordered {
		txn, err := e.openTransaction(span)
		if err != nil {
			return err
		}
		batch = append(batch, txn)
	}

	for i, span := range ordered {
		if err := e.recordLinks(batch[i], span); err != nil {
			return err
		}
	}

	for i, span := range ordered {
		if err := batch[i].Close(uint64(span.EndTime().UnixNano())); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown closes the underlying trace. Further exports fail.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown {
		return nil
	}
	e.shutdown = true
	if err := ctx.Err(); err != nil {
		_ = e.trace.Close()
		return err
	}
	return e.trace.Close()
}

// streamFor returns the stream for an instrumentation scope, opening
// it on first use.
func (e *Exporter) streamFor(span sdktrace.ReadOnlySpan) (*txtrace.Stream, error) {
	scope := span.InstrumentationScope()
	name := scope.Name
	if name == "" {
		name = "default"
	}
	if s, ok := e.streams[name]; ok {
		return s, nil
	}
	s, err := e.trace.OpenStream(name, scope.SchemaURL, scope.Version)
	if err != nil {
		return nil, fmt.Errorf("opening stream for scope %q: %w", name, err)
	}
	e.streams[name] = s
	return s, nil
}

func (e *Exporter) openTransaction(span sdktrace.ReadOnlySpan) (*txtrace.Transaction, error) {
	stream, err := e.streamFor(span)
	if err != nil {
		return nil, err
	}

	var parent *txtrace.Transaction
	if p := span.Parent(); p.HasSpanID() {
		parent = e.exported[p.SpanID()]
	}

	txn, err := stream.OpenTransaction(span.Name(), uint64(span.StartTime().UnixNano()), span.SpanKind().String(), parent)
	if err != nil {
		return nil, fmt.Errorf("recording span %q: %w", span.Name(), err)
	}
	e.exported[span.SpanContext().SpanID()] = txn

	for _, kv := range span.Attributes() {
		if err := addAttribute(txn, kv); err != nil {
			return nil, err
		}
	}
	if st := span.Status(); st.Code != codes.Unset {
		if err := txn.AddString("otel.status", st.Code.String()); err != nil {
			return nil, err
		}
		if st.Description != "" {
			if err := txn.AddString("otel.status_description", st.Description); err != nil {
				return nil, err
			}
		}
	}

	if err := e.addDerived(txn, span); err != nil {
		return nil, err
	}
	return txn, nil
}

// recordLinks turns span links into flow links. Links to spans whose
// transactions have already closed (earlier batches) are dropped: the
// flow ID could no longer appear in both endpoints' events.
func (e *Exporter) recordLinks(txn *txtrace.Transaction, span sdktrace.ReadOnlySpan) error {
	for _, l := range span.Links() {
		target, ok := e.exported[l.SpanContext.SpanID()]
		if !ok || !target.IsOpen() {
			continue
		}
		if err := txn.AddLink(target, txtrace.LinkRelated, ""); err != nil {
			return fmt.Errorf("linking span %q: %w", span.Name(), err)
		}
	}
	return nil
}

// addAttribute maps an OTel attribute onto a typed transaction
// attribute. Integers display decimal; everything without a natural
// mapping is stored via its canonical string form.
func addAttribute(txn *txtrace.Transaction, kv attribute.KeyValue) error {
	name := string(kv.Key)
	switch kv.Value.Type() {
	case attribute.INT64:
		return txn.AddInt(name, kv.Value.AsInt64(), txtrace.RadixDec)
	case attribute.FLOAT64:
		return txn.AddDouble(name, kv.Value.AsFloat64())
	case attribute.BOOL:
		return txn.AddString(name, strconv.FormatBool(kv.Value.AsBool()))
	case attribute.STRING:
		return txn.AddString(name, kv.Value.AsString())
	default:
		return txn.AddString(name, kv.Value.Emit())
	}
}
