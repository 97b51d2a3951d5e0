package codec

import (
	"encoding/hex"
	"math"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emdb/internal/value"
)

func TestRoundTrip(t *testing.T) {
	id := uuid.MustParse("0190d1a2-7f8e-7c3b-9d4e-123456789abc")
	instant := time.Date(2024, 2, 29, 23, 59, 59, 123456789, time.UTC)

	tests := []struct {
		name string
		v    value.Value
	}{
		{"none", value.None{}},
		{"null", value.Null{}},
		{"bool", value.Bool(true)},
		{"int", value.Int(-42)},
		{"max int", value.Int(math.MaxInt64)},
		{"min int", value.Int(math.MinInt64)},
		{"float", value.Float(3.25)},
		{"nan", value.Float(math.NaN())},
		{"inf", value.Float(math.Inf(-1))},
		{"decimal", value.MustDecimal("12345678901234567890.000001")},
		{"string", value.String("héllo")},
		{"bytes", value.Bytes{0, 1, 2, 255}},
		{"uuid", value.UUID(id)},
		{"datetime", value.Datetime(instant)},
		{"pre-epoch datetime", value.Datetime(time.Date(1900, 1, 1, 0, 0, 0, 5, time.UTC))},
		{"duration", value.Duration(90*time.Minute + 7)},
		{"negative duration", value.Duration(-1500 * time.Millisecond)},
		{"table", value.Table("person")},
		{"record string key", value.NewRecordID("person", value.String("tobie"))},
		{"record array key", value.NewRecordID("temp", value.Array{value.String("london"), value.Int(3)})},
		{"array", value.Array{value.Int(1), value.None{}, value.Null{}}},
		{"object", value.Object{"name": value.String("a"), "tags": value.Array{}, "nested": value.Object{"x": value.Float(1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.v)
			require.NoError(t, err)

			got, err := Decode(b)
			require.NoError(t, err)
			assert.True(t, value.Equal(tt.v, got), "want %#v, got %#v", tt.v, got)
		})
	}
}

func TestEncodeDeterministic(t *testing.T) {
	obj := value.Object{"b": value.Int(2), "a": value.Int(1), "aa": value.Int(3)}
	first, err := Encode(obj)
	require.NoError(t, err)
	for range 20 {
		again, err := Encode(obj)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	// Core deterministic order: shorter encoded keys first.
	assert.Equal(t, "a3616101616202626161"+"03", hex.EncodeToString(first))
}

func TestEncodeWireFormat(t *testing.T) {
	tests := []struct {
		name string
		v    value.Value
		hex  string
	}{
		{"none", value.None{}, "c6f6"},
		{"null", value.Null{}, "f6"},
		{"table", value.Table("a"), "c76161"},
		{"record", value.NewRecordID("a", value.Int(1)), "c882616101"},
		{"decimal", value.MustDecimal("1.5"), "ca63312e35"},
		{"duration", value.Duration(time.Second + 2), "ce820102"},
		{"datetime", value.Datetime(time.Unix(1, 2)), "cc820102"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.hex, hex.EncodeToString(b))
		})
	}
}

func TestDecodeAlternateForms(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want value.Value
	}{
		{"uuid text", cbor.Tag{Number: TagUUIDText, Content: "0190d1a2-7f8e-7c3b-9d4e-123456789abc"},
			value.UUID(uuid.MustParse("0190d1a2-7f8e-7c3b-9d4e-123456789abc"))},
		{"duration text", cbor.Tag{Number: TagDurationText, Content: "1h30m"}, value.Duration(90 * time.Minute)},
		{"datetime text", cbor.Tag{Number: TagDatetimeText, Content: "2024-01-02T03:04:05Z"},
			value.Datetime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))},
		{"datetime seconds only", cbor.Tag{Number: TagDatetime, Content: []any{int64(60)}},
			value.Datetime(time.Unix(60, 0))},
		{"empty duration", cbor.Tag{Number: TagDuration, Content: []any{}}, value.Duration(0)},
		{"bignum", cbor.Tag{Number: 2, Content: []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
			value.MustDecimal("18446744073709551616")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := cbor.Marshal(tt.raw)
			require.NoError(t, err)
			got, err := Decode(b)
			require.NoError(t, err)
			assert.True(t, value.Equal(tt.want, got), "want %#v, got %#v", tt.want, got)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	valid, err := Encode(value.Object{"a": value.Array{value.Int(1), value.String("xyz")}})
	require.NoError(t, err)

	mustMarshal := func(v any) []byte {
		t.Helper()
		b, err := cbor.Marshal(v)
		require.NoError(t, err)
		return b
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"truncated", valid[:len(valid)-2]},
		{"trailing", append(append([]byte{}, valid...), 0x00)},
		{"integer key", mustMarshal(map[int]string{1: "a"})},
		{"unknown tag", mustMarshal(cbor.Tag{Number: 99, Content: "x"})},
		{"uint overflow", []byte{0x1b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		{"negative overflow", []byte{0x3b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		{"short uuid", mustMarshal(cbor.Tag{Number: TagUUID, Content: []byte{1, 2, 3}})},
		{"bad uuid text", mustMarshal(cbor.Tag{Number: TagUUIDText, Content: "nope"})},
		{"bad decimal", mustMarshal(cbor.Tag{Number: TagDecimal, Content: "1.2.3"})},
		{"record wrong arity", mustMarshal(cbor.Tag{Number: TagRecordID, Content: []any{"a"}})},
		{"record bool key", mustMarshal(cbor.Tag{Number: TagRecordID, Content: []any{"a", true}})},
		{"none with content", mustMarshal(cbor.Tag{Number: TagNone, Content: 1})},
		{"datetime nanos range", mustMarshal(cbor.Tag{Number: TagDatetime, Content: []any{1, 2_000_000_000}})},
		{"duration text", mustMarshal(cbor.Tag{Number: TagDurationText, Content: "5 parsecs"})},
		{"duration seconds overflow", mustMarshal(cbor.Tag{Number: TagDuration, Content: []any{int64(math.MaxInt64 / int64(time.Second)), 999_999_999}})},
		{"duration negative overflow", mustMarshal(cbor.Tag{Number: TagDuration, Content: []any{-int64(math.MaxInt64 / int64(time.Second)), -999_999_999}})},
		{"reserved byte", []byte{0x1c}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := Decode(tt.input)
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrCodec)
			})
		})
	}
}

func TestDecodeDuration_Limits(t *testing.T) {
	maxSecs := int64(math.MaxInt64 / int64(time.Second))
	maxNanos := int64(math.MaxInt64 % int64(time.Second))

	b, err := cbor.Marshal(cbor.Tag{Number: TagDuration, Content: []any{maxSecs, maxNanos}})
	require.NoError(t, err)
	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, value.Duration(math.MaxInt64), got)

	b, err = cbor.Marshal(cbor.Tag{Number: TagDuration, Content: []any{-maxSecs, -maxNanos - 1}})
	require.NoError(t, err)
	got, err = Decode(b)
	require.NoError(t, err)
	assert.Equal(t, value.Duration(math.MinInt64), got)

	b, err = cbor.Marshal(cbor.Tag{Number: TagDuration, Content: []any{maxSecs, maxNanos + 1}})
	require.NoError(t, err)
	_, err = Decode(b)
	assert.ErrorIs(t, err, ErrCodec)
}

func TestDecodeParams(t *testing.T) {
	params, err := DecodeParams(nil)
	require.NoError(t, err)
	assert.Empty(t, params)

	b, err := Encode(value.Array{value.String("ns"), value.None{}})
	require.NoError(t, err)
	params, err = DecodeParams(b)
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, value.String("ns"), params[0])
	assert.Equal(t, value.None{}, params[1])

	b, err = Encode(value.Object{})
	require.NoError(t, err)
	_, err = DecodeParams(b)
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = DecodeParams([]byte{0xff})
	assert.ErrorIs(t, err, ErrCodec)
}

func TestEncodeString(t *testing.T) {
	got, err := Decode(EncodeString("boom"))
	require.NoError(t, err)
	assert.Equal(t, value.String("boom"), got)
}
