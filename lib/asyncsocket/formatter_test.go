package asyncsocket

import (
	"bytes"
	"encoding/binary"
	"github.com/pkg/errors"
	"github.com/smallnest/ringbuffer"
	"io"
	"testing"
)

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

// streamReader emulates the receive transaction on an in memory stream
type streamReader struct {
	rb      *ringbuffer.RingBuffer
	message []byte
	reads   []int
}

func newStreamReader(t *testing.T, data ...[]byte) *streamReader {
	t.Helper()
	rb := ringbuffer.New(4096)
	for _, d := range data {
		if _, err := rb.Write(d); err != nil {
			t.Fatalf("Failed to fill ring buffer: %v", err)
		}
	}
	return &streamReader{rb: rb}
}

func (r *streamReader) read(size int) ([]byte, error) {
	r.reads = append(r.reads, size)
	buf := make([]byte, size)
	if _, err := io.ReadFull(r.rb, buf); err != nil {
		return nil, err
	}
	r.message = append(r.message, buf...)
	return buf, nil
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestFormatLengthPrefixed(t *testing.T) {
	f := NewBinaryFormatter(LengthPrefixed())
	r := newStreamReader(t, EncodeLengthPrefixed([]byte("Hello World")))

	if err := f.Format(r.read); err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if len(r.message) != 15 {
		t.Fatalf("Expected message of 15 bytes, got %d", len(r.message))
	}
	if got := string(r.message[LengthPrefixSize:]); got != "Hello World" {
		t.Errorf("Expected payload %q, got %q", "Hello World", got)
	}
	if len(r.reads) != 2 || r.reads[0] != LengthPrefixSize || r.reads[1] != 11 {
		t.Errorf("Unexpected read sequence %v", r.reads)
	}
}

func TestFormatMixedFields(t *testing.T) {
	f := NewBinaryFormatter(Fixed(2), LengthPrefixed(), Fixed(0), LengthPrefixed())

	var wire []byte
	wire = append(wire, 0xAB, 0xCD)
	wire = AppendLengthPrefixed(wire, binary.NativeEndian, []byte("first"))
	wire = AppendLengthPrefixed(wire, binary.NativeEndian, nil)
	r := newStreamReader(t, wire)

	if err := f.Format(r.read); err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !bytes.Equal(r.message, wire) {
		t.Errorf("Expected message %x, got %x", wire, r.message)
	}
	if f.Size() != 4 {
		t.Errorf("Expected 4 fields, got %d", f.Size())
	}
}

func TestFormatByteOrder(t *testing.T) {
	f := NewBinaryFormatter(LengthPrefixed()).WithByteOrder(binary.BigEndian)
	r := newStreamReader(t, AppendLengthPrefixed(nil, binary.BigEndian, []byte("big")))

	if err := f.Format(r.read); err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !bytes.Equal(r.message[:LengthPrefixSize], []byte{0, 0, 0, 3}) {
		t.Errorf("Expected big endian prefix, got %x", r.message[:LengthPrefixSize])
	}
}

// TestFormatAbortsOnFailure verifies that no field is read after a failed one
func TestFormatAbortsOnFailure(t *testing.T) {
	f := NewBinaryFormatter(LengthPrefixed(), Fixed(8))

	// announce 100 bytes but only provide 5
	wire := binary.NativeEndian.AppendUint32(nil, 100)
	wire = append(wire, []byte("short")...)
	r := newStreamReader(t, wire)

	if err := f.Format(r.read); err == nil {
		t.Fatalf("Expected Format to fail")
	}
	if len(r.reads) != 2 {
		t.Errorf("Expected 2 reads before abort, got %v", r.reads)
	}
}

func TestFormatFieldTooLarge(t *testing.T) {
	f := NewBinaryFormatter(LengthPrefixed()).WithMaxFieldSize(8)
	r := newStreamReader(t, EncodeLengthPrefixed([]byte("more than eight bytes")))

	err := f.Format(r.read)
	if !errors.Is(err, ErrFieldTooLarge) {
		t.Fatalf("Expected ErrFieldTooLarge, got %v", err)
	}
	if len(r.reads) != 1 {
		t.Errorf("Expected only the prefix to be read, got %v", r.reads)
	}
}

func TestFormatterSealed(t *testing.T) {
	f := NewBinaryFormatter(Fixed(1))
	if f.Sealed() {
		t.Fatalf("New formatter must not be sealed")
	}

	f.seal()

	if err := f.Add(Fixed(1)); !errors.Is(err, ErrFormatterSealed) {
		t.Errorf("Expected ErrFormatterSealed, got %v", err)
	}
	f.WithMaxFieldSize(1)
	if len(f.Fields()) != 1 {
		t.Errorf("Sealed formatter was modified: %v", f.Fields())
	}
}

func TestInvalidField(t *testing.T) {
	f := NewBinaryFormatter()
	if err := f.Add(Fixed(-1)); !errors.Is(err, ErrInvalidField) {
		t.Errorf("Expected ErrInvalidField, got %v", err)
	}
	if err := f.Add(Field{Type: FieldType(42)}); !errors.Is(err, ErrInvalidField) {
		t.Errorf("Expected ErrInvalidField, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("Expected NewBinaryFormatter to panic on invalid field")
		}
	}()
	NewBinaryFormatter(Fixed(-2))
}
