package rpc

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodCodes(t *testing.T) {
	tests := []struct {
		method Method
		code   int32
		name   string
	}{
		{Ping, 1, "ping"},
		{Query, 14, "query"},
		{InsertRelation, 17, "insert_relation"},
		{Reset, 24, "reset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, int32(tt.method))
			assert.Equal(t, tt.name, tt.method.String())
			assert.True(t, tt.method.Valid())

			m, err := ParseMethod(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.method, m)
		})
	}
}

func TestMethod_Unknown(t *testing.T) {
	assert.False(t, Method(0).Valid())
	assert.False(t, Method(25).Valid())
	assert.Equal(t, "method(99)", Method(99).String())

	_, err := ParseMethod("drop")
	assert.ErrorIs(t, err, ErrMethodNotSupported)
}

func TestParseMethod_Alias(t *testing.T) {
	m, err := ParseMethod("insertRelation")
	require.NoError(t, err)
	assert.Equal(t, InsertRelation, m)
}

func TestParseID(t *testing.T) {
	id := uuid.MustParse("0190f5a4-7b6c-7def-8abc-0123456789ab")

	got, err := ParseID(id[:])
	require.NoError(t, err)
	assert.True(t, got.Valid)
	assert.Equal(t, id, got.UUID)

	for _, b := range [][]byte{nil, {}, id[:15], append(id[:], 0)} {
		got, err := ParseID(b)
		require.NoError(t, err)
		assert.False(t, got.Valid, "len %d", len(b))
	}
}
