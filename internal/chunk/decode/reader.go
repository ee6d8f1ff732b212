// Package decode reconstructs the records inside one chunk from its
// framed byte stream.
//
// The wire format is repeated frames of [4-byte big-endian length][payload]
// with no delimiter, checksum, or magic; the stream simply ends after the
// last complete frame. A record is a single value frame, or a key frame
// followed by a value frame when the archive includes keys. A stream
// ending at a frame boundary is a clean end; a stream ending anywhere
// inside a record is corruption and terminal for the session.
package decode

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"rewind/internal/chunk"
)

// Reader is a lazy, single-pass cursor over the records of one chunk.
// At most one record of look-ahead is buffered so More can answer
// without consuming. Not safe for concurrent use; one Reader per chunk.
type Reader struct {
	addr         chunk.Address
	includesKeys bool
	src          io.Reader
	closer       io.Closer // set only when the Reader opened its own stream

	prefix [4]byte // length prefix scratch, reused across frames

	next      *chunk.Record // buffered look-ahead record
	nextOff   uint64        // offset of the next record to decode
	exhausted bool
	err       error // terminal error, re-surfaced on every later call
}

// NewReader decodes records from an already-decompressed stream. The
// caller keeps ownership of r and must release it when done; Close on
// the returned Reader is a no-op.
func NewReader(addr chunk.Address, includesKeys bool, r io.Reader) *Reader {
	return &Reader{
		addr:         addr,
		includesKeys: includesKeys,
		src:          r,
		nextOff:      addr.StartOffset,
	}
}

// OpenFile opens a gzip-compressed chunk file whose name encodes its
// address. The Reader owns the stream it opened; Close releases it.
func OpenFile(path string, includesKeys bool) (*Reader, error) {
	addr, err := chunk.ParseKey(filepath.ToSlash(path))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	gz, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r := NewReader(addr, includesKeys, gz)
	r.closer = closers{gz, f}
	return r, nil
}

// Address returns the chunk address this Reader decodes.
func (r *Reader) Address() chunk.Address { return r.addr }

// More reports whether another record is available, buffering it without
// consuming it. It returns false once the stream is exhausted or failed;
// after a failure, Next reports the terminal error.
func (r *Reader) More() bool {
	r.fill()
	return r.next != nil
}

// Next returns the next record. Once the chunk is exhausted every call
// returns chunk.ErrNoMoreRecords; once decoding has failed every call
// returns the same terminal error. No partial record is ever returned.
func (r *Reader) Next() (chunk.Record, error) {
	r.fill()
	if r.next == nil {
		if r.err != nil {
			return chunk.Record{}, r.err
		}
		return chunk.Record{}, chunk.ErrNoMoreRecords
	}
	rec := *r.next
	r.next = nil
	return rec, nil
}

// Close releases a stream the Reader opened itself (OpenFile). For
// Readers over a caller-supplied stream it is a no-op; the caller
// releases its own stream.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c.Close()
}

// fill decodes one record into the look-ahead buffer unless one is
// already buffered or the session has reached a terminal state.
func (r *Reader) fill() {
	if r.next != nil || r.exhausted || r.err != nil {
		return
	}

	rec, err := r.read()
	switch {
	case err == nil:
		r.next = &rec
		r.nextOff++
	case errors.Is(err, errNoFrame):
		r.exhausted = true
	case isCorruption(err):
		r.err = &chunk.CorruptRecordError{
			Topic:     r.addr.Topic,
			Partition: r.addr.Partition,
			Offset:    r.nextOff,
		}
	default:
		// Underlying source failure; just as terminal as corruption.
		r.err = err
	}
}

// read assembles one record at the current offset. errNoFrame means the
// stream ended cleanly before this record started.
func (r *Reader) read() (chunk.Record, error) {
	var key []byte
	if r.includesKeys {
		k, err := readFrame(r.src, &r.prefix)
		if err != nil {
			return chunk.Record{}, err
		}
		key = k
	}

	value, err := readFrame(r.src, &r.prefix)
	if err != nil {
		// A key with no value after it can only mean the stream was
		// cut between the two frames.
		if r.includesKeys && errors.Is(err, errNoFrame) {
			err = errMissingValue
		}
		return chunk.Record{}, err
	}

	return chunk.Record{
		Topic:     r.addr.Topic,
		Partition: r.addr.Partition,
		Offset:    r.nextOff,
		Key:       key,
		Value:     value,
	}, nil
}

// closers closes its members in order and reports the first failure.
type closers []io.Closer

func (cs closers) Close() error {
	var errs []error
	for _, c := range cs {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
