package asyncsocket

import (
	"encoding/binary"
	"fmt"
	"github.com/pkg/errors"
	"sync"
)

// LengthPrefixSize is the size of the length prefix of a LengthPrefixed field
const LengthPrefixSize = 4

var (
	// ErrFormatterSealed is returned when a field is added to a formatter
	// that is already attached to a receive
	ErrFormatterSealed = errors.New("asyncsocket: formatter is attached to a receive and can not be modified")
	// ErrFieldTooLarge is returned when a length prefix announces more bytes than allowed
	ErrFieldTooLarge = errors.New("asyncsocket: field exceeds maximum size")
	// ErrInvalidField is returned for malformed field descriptors
	ErrInvalidField = errors.New("asyncsocket: invalid field")
)

// --------------------------------------------------------------------------
// Field descriptors
// --------------------------------------------------------------------------

// FieldType is the kind of a field descriptor
type FieldType int

const (
	// FieldFixed reads exactly Field.Size bytes
	FieldFixed FieldType = iota
	// FieldLengthPrefixed reads a 4 byte unsigned length L followed by L bytes
	FieldLengthPrefixed
)

func (t FieldType) String() string {
	switch t {
	case FieldFixed:
		return "fixed"
	case FieldLengthPrefixed:
		return "length-prefixed"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field describes one section of a structured message
type Field struct {
	Type FieldType
	Size int // only used by FieldFixed
}

// Fixed returns a descriptor for a field of exactly n bytes
func Fixed(n int) Field {
	return Field{Type: FieldFixed, Size: n}
}

// LengthPrefixed returns a descriptor for a 4 byte length followed by that many bytes
func LengthPrefixed() Field {
	return Field{Type: FieldLengthPrefixed}
}

func (f Field) String() string {
	if f.Type == FieldFixed {
		return fmt.Sprintf("fixed(%d)", f.Size)
	}
	return f.Type.String()
}

func (f Field) validate() error {
	switch f.Type {
	case FieldFixed:
		if f.Size < 0 {
			return errors.Wrapf(ErrInvalidField, "negative size %d", f.Size)
		}
	case FieldLengthPrefixed:
	default:
		return errors.Wrapf(ErrInvalidField, "unknown type %s", f.Type)
	}
	return nil
}

// --------------------------------------------------------------------------
// BinaryFormatter
// --------------------------------------------------------------------------

// ReadFunc reads exactly size bytes, appends them to the message and returns them
type ReadFunc func(size int) ([]byte, error)

// BinaryFormatter is an ordered list of field descriptors describing how a
// structured message is read from a byte stream. It knows nothing about the
// message beyond its size framing.
//
// The formatter is sealed once it is passed to AsyncSocket.Receive, fields
// can not be added afterwards. A sealed formatter can be used for any number
// of receives.
type BinaryFormatter struct {
	mu           sync.Mutex
	fields       []Field
	order        binary.ByteOrder
	maxFieldSize int
	sealed       bool
}

// NewBinaryFormatter creates a formatter with the given fields. Length
// prefixes are decoded in native byte order.
func NewBinaryFormatter(fields ...Field) *BinaryFormatter {
	f := &BinaryFormatter{order: binary.NativeEndian}
	for _, field := range fields {
		if err := f.Add(field); err != nil {
			panic(err)
		}
	}
	return f
}

// Add appends a field descriptor
func (f *BinaryFormatter) Add(field Field) error {
	if err := field.validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sealed {
		return ErrFormatterSealed
	}
	f.fields = append(f.fields, field)
	return nil
}

// WithByteOrder sets the byte order of length prefixes. It has no effect on a sealed formatter.
func (f *BinaryFormatter) WithByteOrder(order binary.ByteOrder) *BinaryFormatter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sealed {
		f.order = order
	}
	return f
}

// WithMaxFieldSize bounds the length a length prefix may announce. Zero means
// the limit of the socket the formatter is used with. It has no effect on a
// sealed formatter.
func (f *BinaryFormatter) WithMaxFieldSize(n int) *BinaryFormatter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sealed {
		f.maxFieldSize = n
	}
	return f
}

// Fields returns a copy of the field descriptors
func (f *BinaryFormatter) Fields() []Field {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Field(nil), f.fields...)
}

// Size returns the number of field descriptors
func (f *BinaryFormatter) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fields)
}

// Sealed returns true once the formatter was attached to a receive
func (f *BinaryFormatter) Sealed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sealed
}

func (f *BinaryFormatter) seal() {
	f.mu.Lock()
	f.sealed = true
	f.mu.Unlock()
}

// Format evaluates the descriptors in order and reads every field through
// read. The first failing read aborts the whole pass.
func (f *BinaryFormatter) Format(read ReadFunc) error {
	return f.format(read, 0)
}

// format is Format with a fallback limit for length prefixes used when the
// formatter has none
func (f *BinaryFormatter) format(read ReadFunc, limit int) error {
	f.mu.Lock()
	fields := f.fields
	order := f.order
	if f.maxFieldSize > 0 {
		limit = f.maxFieldSize
	}
	f.mu.Unlock()

	for i, field := range fields {
		switch field.Type {
		case FieldFixed:
			if _, err := read(field.Size); err != nil {
				return errors.Wrapf(err, "field %d (%s)", i, field)
			}

		case FieldLengthPrefixed:
			prefix, err := read(LengthPrefixSize)
			if err != nil {
				return errors.Wrapf(err, "length of field %d", i)
			}

			length := order.Uint32(prefix)
			if limit > 0 && uint64(length) > uint64(limit) {
				return errors.Wrapf(ErrFieldTooLarge, "field %d announces %d bytes, limit is %d", i, length, limit)
			}

			if _, err := read(int(length)); err != nil {
				return errors.Wrapf(err, "data of field %d (%d bytes)", i, length)
			}
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Encoding helpers
// --------------------------------------------------------------------------

// AppendLengthPrefixed appends the wire form of a length-prefixed field to dst
func AppendLengthPrefixed(dst []byte, order binary.ByteOrder, payload []byte) []byte {
	var prefix [LengthPrefixSize]byte
	order.PutUint32(prefix[:], uint32(len(payload)))
	dst = append(dst, prefix[:]...)
	return append(dst, payload...)
}

// EncodeLengthPrefixed returns the wire form of a length-prefixed field in native byte order
func EncodeLengthPrefixed(payload []byte) []byte {
	return AppendLengthPrefixed(make([]byte, 0, LengthPrefixSize+len(payload)), binary.NativeEndian, payload)
}
