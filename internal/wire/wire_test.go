package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

type pair struct {
	Name  string
	Count uint64
	Tags  []string
}

func (p *pair) MarshalWire() []byte {
	var e Encoder
	e.String(1, p.Name)
	e.Uint64(2, p.Count)
	e.Strings(3, p.Tags)
	return e.Bytes()
}

func (p *pair) UnmarshalWire(b []byte) error {
	r := NewReader(b)
	for r.Next() {
		switch r.Field() {
		case 1:
			r.String(&p.Name)
		case 2:
			r.Uint64(&p.Count)
		case 3:
			r.AppendString(&p.Tags)
		}
	}
	return r.Err()
}

func TestEncoder_OmitsZeroScalars(t *testing.T) {
	var e Encoder
	e.String(1, "")
	e.Uint64(2, 0)
	e.Enum(3, 0)
	e.Blob(4, nil)

	assert.Empty(t, e.Bytes())
	assert.NotNil(t, e.Bytes())
}

func TestReader_RoundTrip(t *testing.T) {
	in := &pair{Name: "svc", Count: 42, Tags: []string{"a", "", "c"}}

	var out pair
	require.NoError(t, out.UnmarshalWire(in.MarshalWire()))
	assert.Equal(t, *in, out)
}

func TestReader_SkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "kept")
	b = protowire.AppendTag(b, 10, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 1)
	b = protowire.AppendTag(b, 11, protowire.BytesType)
	b = protowire.AppendString(b, "future")

	var out pair
	require.NoError(t, out.UnmarshalWire(b))
	assert.Equal(t, "kept", out.Name)
	assert.Zero(t, out.Count)
}

func TestReader_IgnoresMismatchedWireType(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 3)

	var out pair
	require.NoError(t, out.UnmarshalWire(b))
	assert.Empty(t, out.Name)
}

func TestReader_Truncated(t *testing.T) {
	full := (&pair{Name: "truncated", Count: 1}).MarshalWire()

	for cut := 1; cut < len(full); cut++ {
		var out pair
		err := out.UnmarshalWire(full[:cut])
		if err == nil {
			// Cutting exactly between two fields yields a shorter valid message.
			continue
		}
		var werr *Error
		require.True(t, errors.As(err, &werr), "cut %d: %v", cut, err)
	}

	var out pair
	err := out.UnmarshalWire(full[:3])
	require.Error(t, err)
}

func TestReader_InvalidUTF8(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte{0xff, 0xfe})

	var out pair
	err := out.UnmarshalWire(b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestEncoder_ReplacesInvalidUTF8(t *testing.T) {
	var e Encoder
	e.String(1, "a\xffb")
	e.Strings(2, []string{"\xc3", "ok"})

	var s string
	var ss []string
	r := NewReader(e.Bytes())
	for r.Next() {
		switch r.Field() {
		case 1:
			r.String(&s)
		case 2:
			r.AppendString(&ss)
		}
	}
	require.NoError(t, r.Err())
	assert.Equal(t, "a\uFFFDb", s)
	assert.Equal(t, []string{"\uFFFD", "ok"}, ss)
}

func TestReader_AppendInt64PackedAndUnpacked(t *testing.T) {
	var e Encoder
	e.Int64s(1, []int64{1, 2, 300})
	b := e.Bytes()
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, 4)

	var got []int64
	r := NewReader(b)
	for r.Next() {
		r.AppendInt64(&got)
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []int64{1, 2, 300, 4}, got)
}

func TestReader_NestedError(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte{0x0a, 0x05, 'a'})

	r := NewReader(b)
	require.True(t, r.Next())
	var inner pair
	assert.False(t, r.Message(&inner))
	assert.Error(t, r.Err())
	assert.False(t, r.Next())
}
