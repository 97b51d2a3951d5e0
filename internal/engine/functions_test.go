package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/emdb/internal/value"
)

func TestRun_Builtins(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	e := newScopedEngine(t, Options{}, WithClock(NewFixedClock(now)))

	tests := []struct {
		name string
		args value.Value
		want value.Value
	}{
		{"string::uppercase", value.Array{value.String("abc")}, value.String("ABC")},
		{"string::lowercase", value.Array{value.String("AbC")}, value.String("abc")},
		{"string::len", value.Array{value.String("héllo")}, value.Int(5)},
		{"array::len", value.Array{value.Array{value.Int(1), value.Null{}}}, value.Int(2)},
		{"math::sum", value.Array{value.Array{value.Int(1), value.Int(2), value.Int(3)}}, value.Int(6)},
		{"math::sum", value.Array{value.Array{value.Int(1), value.Float(0.5)}}, value.Float(1.5)},
		{"math::sum", value.Array{value.Array{}}, value.Int(0)},
		{"time::now", value.None{}, value.Datetime(now)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Run(ctx, defaultCall, tt.name, value.None{}, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun_Random(t *testing.T) {
	e := newScopedEngine(t, Options{})

	got, err := e.Run(ctx, defaultCall, "rand::uuid", nil, nil)
	require.NoError(t, err)
	assert.IsType(t, value.UUID{}, got)

	got, err = e.Run(ctx, defaultCall, "rand::ulid", nil, value.Array{})
	require.NoError(t, err)
	assert.Len(t, string(got.(value.String)), 26)
}

func TestRun_Errors(t *testing.T) {
	e := newScopedEngine(t, Options{})

	_, err := e.Run(ctx, defaultCall, "fn::custom", nil, nil)
	assert.ErrorIs(t, err, ErrUnknownFunction)

	_, err = e.Run(ctx, defaultCall, "upper", nil, value.Array{value.String("a")})
	assert.ErrorIs(t, err, ErrFeatureDisabled)
	assert.ErrorContains(t, err, "sql_functions")

	_, err = e.Run(ctx, defaultCall, "string::len", nil, value.Array{value.Int(1)})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = e.Run(ctx, defaultCall, "string::len", nil, value.Array{})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = e.Run(ctx, defaultCall, "time::now", nil, value.String("args"))
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = e.Run(ctx, defaultCall, "time::now", value.Int(1), nil)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestRun_SQLFunctions(t *testing.T) {
	opts := Options{Capabilities: Capabilities{Experimental: Targets{Allow: TargetSet{All: true}}}}
	e := newScopedEngine(t, opts)

	got, err := e.Run(ctx, defaultCall, "upper", value.String("1.0.0"), value.Array{value.String("abc")})
	require.NoError(t, err)
	assert.Equal(t, value.String("ABC"), got)

	got, err = e.Run(ctx, defaultCall, "abs", nil, value.Array{value.Int(-3)})
	require.NoError(t, err)
	assert.Equal(t, value.Int(3), got)

	_, err = e.Run(ctx, defaultCall, "no_such_function", nil, nil)
	assert.Error(t, err)

	denied := Options{Capabilities: Capabilities{Experimental: Targets{
		Allow: TargetSet{All: true},
		Deny:  TargetSet{Names: []Feature{FeatureSQLFunctions}},
	}}}
	e = newScopedEngine(t, denied)
	_, err = e.Run(ctx, defaultCall, "upper", nil, value.Array{value.String("abc")})
	assert.ErrorIs(t, err, ErrFeatureDisabled)
}

func TestRun_TableDefine(t *testing.T) {
	e := newScopedEngine(t, Options{})

	_, err := e.Run(ctx, defaultCall, "table::define", nil, value.Array{value.Table("knows"), value.Bool(true)})
	require.NoError(t, err)

	tables, err := e.Query(ctx, defaultCall, "SELECT tb, relation FROM catalog", nil)
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.Object{"tb": value.String("knows"), "relation": value.Int(1)}},
		tables[0].(value.Object)["result"])

	_, err = e.Run(ctx, defaultCall, "table::define", nil, value.Array{value.String("")})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestBuiltins_Sorted(t *testing.T) {
	names := Builtins()
	assert.Contains(t, names, "time::now")
	assert.IsIncreasing(t, names)
}
