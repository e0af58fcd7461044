// Package sink owns the trace output file: buffered writes, optional
// gzip compression, and ordered teardown on close. Perfetto readers
// accept gzip-compressed trace files, so compression is transparent to
// the viewer.
package sink

import (
	"bufio"
	"fmt"
	"os"

	"github.com/klauspost/compress/gzip"
)

// Sink is the exclusively-owned output resource of one trace. Writes
// are synchronous and in-order; failures surface to the caller and are
// never retried.
type Sink struct {
	file *os.File
	buf  *bufio.Writer
	gz   *gzip.Writer
}

// Create opens filename for writing, truncating any existing file.
// Open failure is fatal to trace construction: no partial state is
// left behind.
func Create(filename string, compress bool) (*Sink, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}

	s := &Sink{file: f, buf: bufio.NewWriter(f)}
	if compress {
		s.gz = gzip.NewWriter(s.buf)
	}
	return s, nil
}

// Write appends p to the trace file.
func (s *Sink) Write(p []byte) (int, error) {
	if s.gz != nil {
		return s.gz.Write(p)
	}
	return s.buf.Write(p)
}

// Close flushes buffered data and closes the file. The first error
// encountered wins; the file is closed regardless.
func (s *Sink) Close() error {
	var firstErr error
	if s.gz != nil {
		if err := s.gz.Close(); err != nil {
			firstErr = fmt.Errorf("finalizing compressed stream: %w", err)
		}
	}
	if err := s.buf.Flush(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("flushing trace file: %w", err)
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing trace file: %w", err)
	}
	return firstErr
}
