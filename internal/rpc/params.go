package rpc

import (
	"github.com/google/uuid"

	"github.com/roach88/emdb/internal/engine"
	"github.com/roach88/emdb/internal/value"
)

// ErrInvalidParams reports a parameter list of the wrong shape.
var ErrInvalidParams = engine.ErrInvalidParams

// expect checks the parameter count.
func expect(params value.Array, lo, hi int) error {
	n := len(params)
	if n >= lo && n <= hi {
		return nil
	}
	if lo == hi {
		return paramError("expected %d params, found %d", lo, n)
	}
	return paramError("expected %d to %d params, found %d", lo, hi, n)
}

// arg returns params[i], or None when the caller passed fewer.
func arg(params value.Array, i int) value.Value {
	if i < len(params) && params[i] != nil {
		return params[i]
	}
	return value.None{}
}

func stringArg(params value.Array, i int, what string) (string, error) {
	s, ok := arg(params, i).(value.String)
	if !ok {
		return "", paramError("%s: expected string, found %s", what, arg(params, i).Kind())
	}
	return string(s), nil
}

// optionalVars accepts an object or None/Null.
func optionalVars(v value.Value) (value.Object, error) {
	switch o := v.(type) {
	case value.None, value.Null:
		return nil, nil
	case value.Object:
		return o, nil
	default:
		return nil, paramError("vars: expected object, found %s", o.Kind())
	}
}

// transactionArg takes the transaction id from the last parameter.
func transactionArg(params value.Array) (uuid.UUID, error) {
	if len(params) > 0 {
		if id, ok := params[len(params)-1].(value.UUID); ok {
			return uuid.UUID(id), nil
		}
	}
	return uuid.Nil, paramError("expected transaction UUID")
}

// ParseID reads an optional 16-byte envelope id. Any other length means
// the id is absent.
func ParseID(b []byte) (uuid.NullUUID, error) {
	if len(b) != 16 {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}
