package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"rewind/internal/chunk"
)

// frame encodes one length-prefixed frame.
func frame(payload string) []byte {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	return buf
}

// stream concatenates frames into a chunk byte stream.
func stream(frames ...[]byte) *bytes.Reader {
	var buf bytes.Buffer
	for _, f := range frames {
		buf.Write(f)
	}
	return bytes.NewReader(buf.Bytes())
}

var testAddr = chunk.Address{Topic: "orders", Partition: 3, StartOffset: 1024}

func TestRoundTripWithKeys(t *testing.T) {
	src := stream(
		frame("k0"), frame("v0"),
		frame("k1"), frame("v1"),
		frame(""), frame("v2"), // empty key frame is a valid key
	)
	r := NewReader(testAddr, true, src)

	for i := 0; i < 3; i++ {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("record %d: unexpected error: %v", i, err)
		}
		if rec.Topic != "orders" || rec.Partition != 3 {
			t.Errorf("record %d: addressing %s-%d, want orders-3", i, rec.Topic, rec.Partition)
		}
		if want := uint64(1024 + i); rec.Offset != want {
			t.Errorf("record %d: offset %d, want %d", i, rec.Offset, want)
		}
		if rec.Key == nil {
			t.Errorf("record %d: key should be present", i)
		}
	}

	if _, err := r.Next(); !errors.Is(err, chunk.ErrNoMoreRecords) {
		t.Fatalf("expected ErrNoMoreRecords, got %v", err)
	}
}

func TestRoundTripValueOnly(t *testing.T) {
	src := stream(frame("v0"), frame("v1"), frame("v2"))
	r := NewReader(testAddr, false, src)

	for i := 0; i < 3; i++ {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("record %d: unexpected error: %v", i, err)
		}
		if rec.Key != nil {
			t.Errorf("record %d: key must stay nil without includesKeys", i)
		}
		if want := "v" + string(rune('0'+i)); string(rec.Value) != want {
			t.Errorf("record %d: value %q, want %q", i, rec.Value, want)
		}
	}

	if _, err := r.Next(); !errors.Is(err, chunk.ErrNoMoreRecords) {
		t.Fatalf("expected ErrNoMoreRecords, got %v", err)
	}
}

// Frames that happen to pair up like key/value records must still come
// out as independent value-only records when keys are not expected.
func TestValueOnlyIgnoresKeyShapedStreams(t *testing.T) {
	src := stream(frame("key"), frame("value"))
	r := NewReader(testAddr, false, src)

	var values []string
	for r.More() {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Key != nil {
			t.Error("key must stay nil")
		}
		values = append(values, string(rec.Value))
	}
	if len(values) != 2 || values[0] != "key" || values[1] != "value" {
		t.Fatalf("values: got %q", values)
	}
}

func TestConcreteVector(t *testing.T) {
	data := []byte{
		0x00, 0x00, 0x00, 0x03, 'f', 'o', 'o',
		0x00, 0x00, 0x00, 0x01, 'v',
	}
	addr := chunk.Address{Topic: "t", Partition: 0, StartOffset: 5}
	r := NewReader(addr, true, bytes.NewReader(data))

	rec, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Topic != "t" || rec.Partition != 0 || rec.Offset != 5 {
		t.Errorf("addressing: got %s-%d:%d, want t-0:5", rec.Topic, rec.Partition, rec.Offset)
	}
	if string(rec.Key) != "foo" {
		t.Errorf("key: got %q, want foo", rec.Key)
	}
	if string(rec.Value) != "v" {
		t.Errorf("value: got %q, want v", rec.Value)
	}

	if _, err := r.Next(); !errors.Is(err, chunk.ErrNoMoreRecords) {
		t.Fatalf("expected clean end of stream, got %v", err)
	}
}

func TestEmptyStream(t *testing.T) {
	r := NewReader(testAddr, true, bytes.NewReader(nil))
	if r.More() {
		t.Fatal("More() on empty stream should be false")
	}
	if _, err := r.Next(); !errors.Is(err, chunk.ErrNoMoreRecords) {
		t.Fatalf("expected ErrNoMoreRecords, got %v", err)
	}
}

func TestExhaustionIsIdempotent(t *testing.T) {
	r := NewReader(testAddr, false, stream(frame("v")))
	if _, err := r.Next(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := r.Next(); !errors.Is(err, chunk.ErrNoMoreRecords) {
			t.Fatalf("pull %d past end: expected ErrNoMoreRecords, got %v", i, err)
		}
		if r.More() {
			t.Fatalf("pull %d past end: More() should stay false", i)
		}
	}
}

func TestMoreDoesNotConsume(t *testing.T) {
	r := NewReader(testAddr, false, stream(frame("v0"), frame("v1")))

	if !r.More() || !r.More() {
		t.Fatal("More() should report true twice without consuming")
	}
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Offset != 1024 || string(rec.Value) != "v0" {
		t.Fatalf("look-ahead consumed a record: got offset %d value %q", rec.Offset, rec.Value)
	}
}

// =============================================================================
// Truncation
// =============================================================================

func TestTruncatedLengthPrefix(t *testing.T) {
	// 2 of 4 prefix bytes, then the stream ends.
	r := NewReader(testAddr, false, bytes.NewReader([]byte{0x00, 0x00}))
	_, err := r.Next()
	assertCorrupt(t, err, testAddr.StartOffset)
}

func TestTruncatedPayload(t *testing.T) {
	// Complete prefix announcing 3 bytes, no payload at all.
	r := NewReader(testAddr, false, bytes.NewReader([]byte{0x00, 0x00, 0x00, 0x03}))
	_, err := r.Next()
	assertCorrupt(t, err, testAddr.StartOffset)

	// Partial payload.
	r = NewReader(testAddr, false, bytes.NewReader([]byte{0x00, 0x00, 0x00, 0x03, 'a'}))
	_, err = r.Next()
	assertCorrupt(t, err, testAddr.StartOffset)
}

func TestMissingValueFrame(t *testing.T) {
	// A complete key frame with zero bytes of the value's prefix can only
	// mean the stream was cut mid-record.
	r := NewReader(testAddr, true, stream(frame("key")))
	_, err := r.Next()
	assertCorrupt(t, err, testAddr.StartOffset)
}

func TestCorruptionOffsetAfterGoodRecords(t *testing.T) {
	src := stream(frame("k0"), frame("v0"), frame("k1"))
	r := NewReader(testAddr, true, src)

	if _, err := r.Next(); err != nil {
		t.Fatalf("first record should decode: %v", err)
	}
	_, err := r.Next()
	assertCorrupt(t, err, testAddr.StartOffset+1)
}

func TestFailureIsSticky(t *testing.T) {
	r := NewReader(testAddr, false, bytes.NewReader([]byte{0x00}))

	_, err1 := r.Next()
	assertCorrupt(t, err1, testAddr.StartOffset)

	// Every later pull re-surfaces the same terminal error.
	_, err2 := r.Next()
	if err2 != err1 {
		t.Fatalf("expected the same terminal error, got %v and %v", err1, err2)
	}
	if r.More() {
		t.Fatal("More() should be false after failure")
	}
}

func assertCorrupt(t *testing.T, err error, offset uint64) {
	t.Helper()
	var corrupt *chunk.CorruptRecordError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptRecordError, got %v", err)
	}
	if corrupt.Topic != testAddr.Topic || corrupt.Partition != testAddr.Partition {
		t.Errorf("error addressing: got %s-%d, want %s-%d",
			corrupt.Topic, corrupt.Partition, testAddr.Topic, testAddr.Partition)
	}
	if corrupt.Offset != offset {
		t.Errorf("error offset: got %d, want %d", corrupt.Offset, offset)
	}
}

// =============================================================================
// OpenFile
// =============================================================================

func writeChunkFile(t *testing.T, path string, frames ...[]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	for _, fr := range frames {
		if _, err := gz.Write(fr); err != nil {
			t.Fatal(err)
		}
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders-00003-000000001024.gz")
	writeChunkFile(t, path, frame("k"), frame("v"))

	r, err := OpenFile(path, true)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer r.Close()

	if got := r.Address(); got != testAddr {
		t.Fatalf("Address() = %+v, want %+v", got, testAddr)
	}

	rec, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Offset != 1024 || string(rec.Key) != "k" || string(rec.Value) != "v" {
		t.Errorf("record: got %d %q %q", rec.Offset, rec.Key, rec.Value)
	}
	if _, err := r.Next(); !errors.Is(err, chunk.ErrNoMoreRecords) {
		t.Fatalf("expected ErrNoMoreRecords, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenFileBadName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-chunk.gz")
	writeChunkFile(t, path, frame("v"))

	if _, err := OpenFile(path, false); !errors.Is(err, chunk.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
