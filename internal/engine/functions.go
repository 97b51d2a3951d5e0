package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/roach88/emdb/internal/store"
	"github.com/roach88/emdb/internal/value"
)

// builtin is a function callable through run. Functions that touch
// storage get the call and its scope through env.
type builtin func(ctx context.Context, env funcEnv, args value.Array) (value.Value, error)

type funcEnv struct {
	engine *Engine
	call   Call
}

var builtins = map[string]builtin{
	"rand::uuid":        randUUID,
	"rand::uuid::v4":    randUUID,
	"rand::uuid::v7":    randUUIDv7,
	"rand::ulid":        randULID,
	"time::now":         timeNow,
	"string::uppercase": stringFunc(strings.ToUpper),
	"string::lowercase": stringFunc(strings.ToLower),
	"string::len":       stringLen,
	"array::len":        arrayLen,
	"math::sum":         mathSum,
	"table::define":     tableDefine,
}

// Builtins lists the names run accepts besides SQL functions.
func Builtins() []string {
	return slices.Sorted(maps.Keys(builtins))
}

// Run calls a builtin by name. A bare identifier calls the SQLite scalar
// function of that name when the sql_functions feature is enabled.
// version is accepted for protocol compatibility and must be None, Null or
// a string; no function is versioned.
func (e *Engine) Run(ctx context.Context, c Call, name string, version, args value.Value) (value.Value, error) {
	switch v := version.(type) {
	case nil, value.None, value.Null, value.String:
	default:
		return nil, invalidParams("version: expected string, found %s", v.Kind())
	}
	var argv value.Array
	switch a := args.(type) {
	case nil, value.None, value.Null:
	case value.Array:
		argv = a
	default:
		return nil, invalidParams("args: expected array, found %s", a.Kind())
	}

	if fn, ok := builtins[name]; ok {
		return fn(ctx, funcEnv{engine: e, call: c}, argv)
	}
	if strings.Contains(name, "::") {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	if !e.opts.Capabilities.Enabled(FeatureSQLFunctions) {
		return nil, fmt.Errorf("%w: calling %s needs the %s experimental capability",
			ErrFeatureDisabled, name, FeatureSQLFunctions)
	}

	var out value.Value
	err := e.read(c, func(q store.Querier) error {
		var err error
		out, err = store.CallFunction(ctx, q, name, argv)
		return err
	})
	return out, err
}

func arity(args value.Array, n int) error {
	if len(args) != n {
		return invalidParams("expected %d arguments, found %d", n, len(args))
	}
	return nil
}

func randUUID(_ context.Context, _ funcEnv, args value.Array) (value.Value, error) {
	if err := arity(args, 0); err != nil {
		return nil, err
	}
	return value.UUID(uuid.New()), nil
}

func randUUIDv7(_ context.Context, _ funcEnv, args value.Array) (value.Value, error) {
	if err := arity(args, 0); err != nil {
		return nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	return value.UUID(id), nil
}

func randULID(_ context.Context, _ funcEnv, args value.Array) (value.Value, error) {
	if err := arity(args, 0); err != nil {
		return nil, err
	}
	return value.String(ulid.Make().String()), nil
}

func timeNow(_ context.Context, env funcEnv, args value.Array) (value.Value, error) {
	if err := arity(args, 0); err != nil {
		return nil, err
	}
	return value.Datetime(env.engine.clock.Now()), nil
}

func stringArg(args value.Array) (string, error) {
	if err := arity(args, 1); err != nil {
		return "", err
	}
	s, ok := args[0].(value.String)
	if !ok {
		return "", invalidParams("expected string, found %s", kindName(args[0]))
	}
	return string(s), nil
}

func stringFunc(fn func(string) string) builtin {
	return func(_ context.Context, _ funcEnv, args value.Array) (value.Value, error) {
		s, err := stringArg(args)
		if err != nil {
			return nil, err
		}
		return value.String(fn(s)), nil
	}
}

func stringLen(_ context.Context, _ funcEnv, args value.Array) (value.Value, error) {
	s, err := stringArg(args)
	if err != nil {
		return nil, err
	}
	return value.Int(utf8.RuneCountInString(s)), nil
}

func arrayLen(_ context.Context, _ funcEnv, args value.Array) (value.Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	arr, ok := args[0].(value.Array)
	if !ok {
		return nil, invalidParams("expected array, found %s", kindName(args[0]))
	}
	return value.Int(len(arr)), nil
}

// mathSum adds numbers. The sum stays an int while every element is one.
func mathSum(_ context.Context, _ funcEnv, args value.Array) (value.Value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	arr, ok := args[0].(value.Array)
	if !ok {
		return nil, invalidParams("expected array, found %s", kindName(args[0]))
	}
	var isum int64
	var fsum float64
	floats := false
	for i, elem := range arr {
		switch n := elem.(type) {
		case value.Int:
			isum += int64(n)
			fsum += float64(n)
		case value.Float:
			floats = true
			fsum += float64(n)
		default:
			return nil, invalidParams("element %d: expected number, found %s", i, kindName(elem))
		}
	}
	if floats {
		return value.Float(fsum), nil
	}
	return value.Int(isum), nil
}

// tableDefine adds a table to the catalog: table::define(name, relation?).
func tableDefine(ctx context.Context, env funcEnv, args value.Array) (value.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, invalidParams("expected 1 or 2 arguments, found %d", len(args))
	}
	var name string
	switch n := args[0].(type) {
	case value.String:
		name = string(n)
	case value.Table:
		name = string(n)
	default:
		return nil, invalidParams("expected table name, found %s", kindName(args[0]))
	}
	if name == "" {
		return nil, invalidParams("table name must not be empty")
	}
	relation := len(args) == 2 && value.Truthy(args[1])

	sc, err := env.engine.scopeFor(env.call)
	if err != nil {
		return nil, err
	}
	err = env.engine.write(ctx, env.call, func(q store.Querier) error {
		return store.DefineTable(ctx, q, sc, name, relation)
	})
	return value.None{}, err
}
