// Package protowire implements the protobuf wire primitives the trace
// format is built from: base-128 varints, zigzag-mapped signed varints,
// field tags, length-delimited runs, and fixed64 values.
//
// Buffer is an append-only staging area. Nested messages are built in
// their own Buffer and then framed into the parent with AppendBytesField,
// because a length-delimited field needs its payload size before the
// payload itself is written.
//
// The package knows nothing about packet semantics; field numbers come
// from the caller.
package protowire
