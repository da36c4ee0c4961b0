// Package wire implements the tagged-field binary encoding shared by category
// payloads and the agent/collector protocol.
//
// The encoding is the protobuf binary wire format. Fields are identified by
// number, so a decoder skips numbers it does not know and leaves fields that
// are absent at their zero value. Zero-valued scalars are not written.
package wire

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is a value with a wire representation.
type Message interface {
	MarshalWire() []byte
	UnmarshalWire(b []byte) error
}

// ErrInvalidUTF8 is reported when a string field holds invalid UTF-8.
var ErrInvalidUTF8 = errors.New("invalid UTF-8 in string field")

// Error describes where decoding stopped.
type Error struct {
	Field  protowire.Number
	Offset int
	Err    error
}

func (e *Error) Error() string {
	if e.Field == 0 {
		return fmt.Sprintf("wire: offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("wire: field %d at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Encoder appends fields to a buffer.
type Encoder struct {
	buf []byte
}

// Bytes returns the encoded buffer.
func (e *Encoder) Bytes() []byte {
	if e.buf == nil {
		return []byte{}
	}
	return e.buf
}

// String writes a non-empty string field. Invalid UTF-8 sequences are
// replaced with U+FFFD so that the result always decodes.
func (e *Encoder) String(num protowire.Number, s string) {
	if s == "" {
		return
	}
	e.appendString(num, s)
}

// Strings writes a repeated string field, empty elements included.
func (e *Encoder) Strings(num protowire.Number, ss []string) {
	for _, s := range ss {
		e.appendString(num, s)
	}
}

func (e *Encoder) appendString(num protowire.Number, s string) {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, s)
}

// Blob writes a non-empty bytes field.
func (e *Encoder) Blob(num protowire.Number, b []byte) {
	if len(b) == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, b)
}

// Uint64 writes a non-zero varint field.
func (e *Encoder) Uint64(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
}

// Int64 writes a non-zero varint field in two's complement, like int64 in
// protobuf.
func (e *Encoder) Int64(num protowire.Number, v int64) {
	e.Uint64(num, uint64(v))
}

// Enum writes an enum value. Negative values are sign extended, as protobuf does.
func (e *Encoder) Enum(num protowire.Number, v int32) {
	e.Uint64(num, uint64(int64(v)))
}

// Int64s writes a packed repeated field.
func (e *Encoder) Int64s(num protowire.Number, vs []int64) {
	if len(vs) == 0 {
		return
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, packed)
}

// Message writes m as an embedded message. Empty messages are still written
// so that repeated items keep their position.
func (e *Encoder) Message(num protowire.Number, m Message) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, m.MarshalWire())
}

// Reader walks the fields of an encoded message.
//
//	r := wire.NewReader(b)
//	for r.Next() {
//		switch r.Field() {
//		case 1:
//			r.String(&m.Name)
//		}
//	}
//	return r.Err()
//
// Accessors ignore fields whose wire type does not match, which is how
// protobuf treats them.
type Reader struct {
	buf   []byte
	off   int
	start int
	num   protowire.Number
	typ   protowire.Type
	val   []byte
	err   error
}

// NewReader returns a Reader positioned before the first field of b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Next advances to the next field. It returns false at the end of input or
// after an error.
func (r *Reader) Next() bool {
	if r.err != nil || r.off >= len(r.buf) {
		return false
	}
	num, typ, n := protowire.ConsumeTag(r.buf[r.off:])
	if n < 0 {
		r.fail(0, r.off, protowire.ParseError(n))
		return false
	}
	m := protowire.ConsumeFieldValue(num, typ, r.buf[r.off+n:])
	if m < 0 {
		r.fail(num, r.off, protowire.ParseError(m))
		return false
	}
	r.start = r.off
	r.num, r.typ = num, typ
	r.val = r.buf[r.off+n : r.off+n+m]
	r.off += n + m
	return true
}

// Field returns the number of the current field.
func (r *Reader) Field() protowire.Number { return r.num }

// Err returns the first decoding error.
func (r *Reader) Err() error { return r.err }

func (r *Reader) fail(num protowire.Number, off int, err error) {
	if r.err == nil {
		r.err = &Error{Field: num, Offset: off, Err: err}
	}
}

func (r *Reader) bytes() ([]byte, bool) {
	if r.typ != protowire.BytesType {
		return nil, false
	}
	v, n := protowire.ConsumeBytes(r.val)
	if n < 0 {
		r.fail(r.num, r.start, protowire.ParseError(n))
		return nil, false
	}
	return v, true
}

func (r *Reader) varint() (uint64, bool) {
	if r.typ != protowire.VarintType {
		return 0, false
	}
	v, n := protowire.ConsumeVarint(r.val)
	if n < 0 {
		r.fail(r.num, r.start, protowire.ParseError(n))
		return 0, false
	}
	return v, true
}

// String decodes a string field. Invalid UTF-8 is a decoding error.
func (r *Reader) String(dst *string) {
	v, ok := r.bytes()
	if !ok {
		return
	}
	if !utf8.Valid(v) {
		r.fail(r.num, r.start, ErrInvalidUTF8)
		return
	}
	*dst = string(v)
}

// AppendString decodes one element of a repeated string field.
func (r *Reader) AppendString(dst *[]string) {
	var s string
	v, ok := r.bytes()
	if !ok {
		return
	}
	if !utf8.Valid(v) {
		r.fail(r.num, r.start, ErrInvalidUTF8)
		return
	}
	s = string(v)
	*dst = append(*dst, s)
}

// Blob decodes a bytes field into a copy owned by dst.
func (r *Reader) Blob(dst *[]byte) {
	v, ok := r.bytes()
	if !ok {
		return
	}
	*dst = append([]byte(nil), v...)
}

// Uint64 decodes a varint field.
func (r *Reader) Uint64(dst *uint64) {
	if v, ok := r.varint(); ok {
		*dst = v
	}
}

// Int64 decodes a varint field written by Encoder.Int64.
func (r *Reader) Int64(dst *int64) {
	if v, ok := r.varint(); ok {
		*dst = int64(v)
	}
}

// Enum decodes an enum value. Values outside the known set are kept as is;
// mapping them is up to the caller.
func (r *Reader) Enum(dst *int32) {
	if v, ok := r.varint(); ok {
		*dst = int32(v)
	}
}

// AppendInt64 decodes a repeated int64 field in packed or unpacked form.
func (r *Reader) AppendInt64(dst *[]int64) {
	switch r.typ {
	case protowire.VarintType:
		v, _ := r.varint()
		if r.err == nil {
			*dst = append(*dst, int64(v))
		}
	case protowire.BytesType:
		packed, ok := r.bytes()
		if !ok {
			return
		}
		for len(packed) > 0 {
			v, n := protowire.ConsumeVarint(packed)
			if n < 0 {
				r.fail(r.num, r.start, protowire.ParseError(n))
				return
			}
			*dst = append(*dst, int64(v))
			packed = packed[n:]
		}
	}
}

// Message decodes an embedded message into m. It reports whether m was
// populated.
func (r *Reader) Message(m Message) bool {
	v, ok := r.bytes()
	if !ok {
		return false
	}
	if err := m.UnmarshalWire(v); err != nil {
		r.fail(r.num, r.start, err)
		return false
	}
	return true
}
