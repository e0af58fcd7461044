// Package packet composes and emits the Perfetto trace packets the
// transaction model produces: one clock snapshot at trace creation, a
// track descriptor per stream and per child-transaction sub-track, and a
// slice-begin/slice-end event pair per closed transaction.
//
// Every packet is framed as field 1 of the top-level Trace message
// (tag, varint length, payload), so the output file is a well-formed
// Perfetto trace. Packets must be written in lifecycle order; in
// particular a track descriptor must precede any event referencing its
// UUID. Enforcing that ordering is the caller's job — the emitter just
// writes what it is told, when it is told.
package packet
