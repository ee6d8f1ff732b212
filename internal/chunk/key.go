package chunk

import (
	"fmt"
	"regexp"
	"strconv"
)

// Chunk key grammar:
//
//	[prefix/]<topic>-<partition:5 digits>-<start offset:12 digits>.gz
//
// The numeric suffix is anchored at the end of the key and the topic
// capture is lazy, so topics containing digit-hyphen runs split at the
// rightmost fixed-width suffix rather than the first one that appears.
// Topics must not contain '/'.
var keyPattern = regexp.MustCompile(`(?:^|/)([^/]+?)-(\d{5})-(\d{12})\.gz$`)

// ParseKey parses a chunk key into its Address. Keys that do not match
// the grammar fail with ErrInvalidKey.
func ParseKey(key string) (Address, error) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	partition, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidKey, key, err)
	}
	offset, err := strconv.ParseUint(m[3], 10, 64)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidKey, key, err)
	}

	return Address{
		Topic:       m[1],
		Partition:   uint32(partition),
		StartOffset: offset,
	}, nil
}

// PartitionOf extracts only the partition field from a chunk key, for
// callers that route on partition without needing a full Address.
func PartitionOf(key string) (uint32, error) {
	addr, err := ParseKey(key)
	if err != nil {
		return 0, err
	}
	return addr.Partition, nil
}
