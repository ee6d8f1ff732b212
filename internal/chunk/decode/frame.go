package decode

import (
	"encoding/binary"
	"errors"
	"io"
)

// errNoFrame signals that the stream ended exactly at a frame boundary.
// It is the clean end-of-stream condition, not a corruption.
var errNoFrame = errors.New("no frame")

// Corruption kinds. All of them surface to callers as a single
// chunk.CorruptRecordError; the distinction only exists inside this
// package. Length-prefixed framing has no resynchronization point, so
// every one of these is terminal.
var (
	errTruncatedPrefix  = errors.New("truncated length prefix")
	errTruncatedPayload = errors.New("truncated payload")
	errMissingValue     = errors.New("missing value frame")
)

// readFrame reads one length-prefixed frame from r: a 4-byte big-endian
// unsigned length followed by that many payload bytes. A stream that
// ends before the first prefix byte yields errNoFrame; a stream that
// ends anywhere inside the prefix or the payload yields a truncation
// error. The prefix scratch buffer is owned by the calling session.
func readFrame(r io.Reader, prefix *[4]byte) ([]byte, error) {
	_, err := io.ReadFull(r, prefix[:])
	switch {
	case err == io.EOF:
		return nil, errNoFrame
	case err == io.ErrUnexpectedEOF:
		return nil, errTruncatedPrefix
	case err != nil:
		return nil, err
	}

	payload := make([]byte, binary.BigEndian.Uint32(prefix[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errTruncatedPayload
		}
		return nil, err
	}
	return payload, nil
}

// isCorruption reports whether err is one of the frame-level corruption
// kinds that collapse into chunk.CorruptRecordError.
func isCorruption(err error) bool {
	return errors.Is(err, errTruncatedPrefix) ||
		errors.Is(err, errTruncatedPayload) ||
		errors.Is(err, errMissingValue)
}
