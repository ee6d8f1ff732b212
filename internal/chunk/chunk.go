// Package chunk defines the data model for archived topic chunks.
// A chunk is one archived file holding a contiguous run of records from
// one topic-partition; its key (object key or filename) encodes the
// topic, the partition, and the logical offset of the first record.
package chunk

import (
	"errors"
	"fmt"
)

var (
	ErrNoMoreRecords = errors.New("no more records")
	ErrInvalidKey    = errors.New("not a valid chunk key")
)

// Address identifies where a chunk came from: the topic-partition it was
// archived from and the logical offset of its first record. Immutable
// once parsed from a chunk key.
type Address struct {
	Topic       string
	Partition   uint32
	StartOffset uint64
}

// Record is one logical record reconstructed from a chunk. Key is nil
// when the archive does not include keys. Within one decode session,
// offsets are strictly increasing from Address.StartOffset with step 1.
type Record struct {
	Topic     string
	Partition uint32
	Offset    uint64
	Key       []byte
	Value     []byte
}

// CorruptRecordError identifies the logical offset that could not be
// decoded. Any truncation inside a frame, or a key frame with no value
// frame after it, reports this error; it is terminal for the session.
type CorruptRecordError struct {
	Topic     string
	Partition uint32
	Offset    uint64
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt record at %s-%d:%d", e.Topic, e.Partition, e.Offset)
}
