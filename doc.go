// Package txtrace records time-stamped, hierarchical transactions from
// instrumented programs (typically hardware/design-verification
// simulators) and persists them as a Perfetto-compatible binary trace
// file.
//
// The object model is Trace → Stream → Transaction. A Stream is a
// named lane (a track in viewer terms); a Transaction is a timed
// interval (a slice) carrying typed attributes and optional flow links
// to other transactions. Child transactions nest on dedicated
// sub-tracks under their parent.
//
// Writing is streaming and incremental: every externally observable
// lifecycle transition (stream open, child-transaction open,
// transaction close) serializes its packets immediately, so a trace
// interrupted mid-run is valid up to the last completed write.
//
//	tr, err := txtrace.New("run.perfetto", "soc-sim", "1ns")
//	if err != nil { ... }
//	defer tr.Close()
//
//	bus, _ := tr.OpenStream("axi0", "top.soc.axi0", "axi")
//	txn, _ := bus.OpenTransaction("read", 1000, "burst", nil)
//	txn.AddUint("addr", 0x1234_ABCD, txtrace.RadixHex)
//	txn.Close(2000)
//
// A Trace is single-goroutine: no internal locking is performed, and
// all operations write to the output synchronously and in order.
package txtrace
