package pits

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/agentstation/infer/pkg/constants"
	"github.com/agentstation/infer/pkg/errors"
)

// Reader decodes a newline-delimited JSON stream of PITs.
type Reader struct {
	br   *bufio.Reader
	name string
	max  int
	line int
	buf  []byte
}

// NewReader returns a Reader over r accepting records up to
// constants.MaxRecordSize bytes. name is used in error messages only.
func NewReader(r io.Reader, name string) *Reader {
	return NewReaderSize(r, name, constants.MaxRecordSize)
}

// NewReaderSize returns a Reader whose records may be at most max bytes.
func NewReaderSize(r io.Reader, name string, max int) *Reader {
	if max <= 0 {
		max = constants.MaxRecordSize
	}
	return &Reader{
		br:   bufio.NewReaderSize(r, min(constants.InitialRecordBuffer, max)),
		name: name,
		max:  max,
	}
}

// Next returns the next PIT. Empty lines are skipped. It returns io.EOF at the
// end of the stream, a *errors.MalformedInputError for a record that cannot be
// decoded or is too long (the caller may keep reading), and an
// *errors.IOError when the underlying stream fails.
func (r *Reader) Next() (PIT, error) {
	for {
		raw, tooLong, err := r.readLine()
		if err == io.EOF {
			return PIT{}, io.EOF
		}
		if err != nil {
			return PIT{}, errors.WrapIO("read", r.name, err)
		}
		r.line++

		if tooLong {
			return PIT{}, errors.NewMalformedInputError(r.line, fmt.Sprintf("record exceeds %d bytes", r.max), nil)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}

		var pit PIT
		if err := json.Unmarshal(raw, &pit); err != nil {
			return PIT{}, errors.NewMalformedInputError(r.line, err.Error(), err)
		}
		if err := pit.Validate(); err != nil {
			return PIT{}, errors.NewMalformedInputError(r.line, err.Error(), err)
		}
		return pit, nil
	}
}

// readLine returns the next line without its terminator. The content of a
// line longer than r.max is dropped while it is read, and tooLong is set.
func (r *Reader) readLine() (line []byte, tooLong bool, err error) {
	r.buf = r.buf[:0]
	read := false
	for {
		chunk, err := r.br.ReadSlice('\n')
		read = read || len(chunk) > 0

		if !tooLong {
			if len(r.buf)+len(bytes.TrimSuffix(chunk, []byte{'\n'})) > r.max {
				tooLong = true
				r.buf = r.buf[:0]
			} else {
				r.buf = append(r.buf, chunk...)
			}
		}

		switch err {
		case nil:
			return r.buf, tooLong, nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if !read {
				return nil, false, io.EOF
			}
			return r.buf, tooLong, nil
		default:
			return nil, false, err
		}
	}
}

// Line returns the number of the last line read.
func (r *Reader) Line() int {
	return r.line
}
