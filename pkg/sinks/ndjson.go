// Package sinks writes pipeline outcomes to append-only newline-delimited
// JSON streams: a full log, accepted relations, and unmatched or failed PITs.
package sinks

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"github.com/agentstation/infer/pkg/constants"
	"github.com/agentstation/infer/pkg/errors"
)

// Sink is an append-only record stream. A Sink has a single writer and is
// closed exactly once.
type Sink interface {
	Write(v any) error
	Close() error
}

// NDJSON writes one JSON document per line. It is not safe for concurrent use.
type NDJSON struct {
	name   string
	w      *bufio.Writer
	closer io.Closer
	count  int
	closed bool
}

// New wraps w. Close flushes and, when w is an io.Closer, closes it.
func New(w io.Writer, name string) *NDJSON {
	s := &NDJSON{name: name, w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Create truncates or creates the file at path.
func Create(path string) (*NDJSON, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return nil, errors.WrapIO("create", path, err)
	}
	return New(f, path), nil
}

// Write appends v as a single line. A value that fails to encode writes
// nothing.
func (s *NDJSON) Write(v any) error {
	if s.closed {
		return errors.ErrSinkClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return errors.WrapParse("json", s.name, err)
	}
	data = append(data, '\n')
	if _, err := s.w.Write(data); err != nil {
		return errors.WrapIO("write", s.name, err)
	}
	s.count++
	return nil
}

// Count returns the number of records written.
func (s *NDJSON) Count() int {
	return s.count
}

// Name returns the path or name of the stream.
func (s *NDJSON) Name() string {
	return s.name
}

// Close flushes buffered records and releases the underlying writer. A
// second Close returns ErrSinkClosed.
func (s *NDJSON) Close() error {
	if s.closed {
		return errors.ErrSinkClosed
	}
	s.closed = true

	err := s.w.Flush()
	if err != nil {
		err = errors.WrapIO("flush", s.name, err)
	}
	if s.closer != nil {
		if cerr := s.closer.Close(); cerr != nil && err == nil {
			err = errors.WrapIO("close", s.name, cerr)
		}
	}
	return err
}
