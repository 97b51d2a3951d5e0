package harness

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/emdb/internal/value"
)

// converter turns YAML data into values. txn is the last transaction
// begun, used by $txn.
type converter struct {
	txn uuid.NullUUID
}

func (c *converter) params(raw []any) (value.Array, error) {
	out := make(value.Array, len(raw))
	for i, p := range raw {
		v, err := c.convert(p)
		if err != nil {
			return nil, fmt.Errorf("params[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (c *converter) convert(raw any) (value.Value, error) {
	switch v := raw.(type) {
	case []any:
		arr := make(value.Array, len(v))
		for i, elem := range v {
			ev, err := c.convert(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		if len(v) == 1 {
			for k, arg := range v {
				if strings.HasPrefix(k, "$") {
					return c.typed(k, arg)
				}
			}
		}
		obj := make(value.Object, len(v))
		for k, elem := range v {
			ev, err := c.convert(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	default:
		return value.FromGo(raw)
	}
}

func (c *converter) typed(kind string, arg any) (value.Value, error) {
	if kind == "$none" {
		return value.None{}, nil
	}
	if kind == "$txn" {
		if !c.txn.Valid {
			return nil, fmt.Errorf("$txn: no transaction has been begun")
		}
		return value.UUID(c.txn.UUID), nil
	}
	s, ok := arg.(string)
	if !ok {
		return nil, fmt.Errorf("%s: expected string, got %T", kind, arg)
	}
	switch kind {
	case "$table":
		return value.Table(s), nil
	case "$record":
		rid, err := parseRecordID(s)
		if err != nil {
			return nil, err
		}
		return rid, nil
	case "$uuid":
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("$uuid: %w", err)
		}
		return value.UUID(id), nil
	case "$datetime":
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("$datetime: %w", err)
		}
		return value.Datetime(t), nil
	case "$duration":
		d, err := value.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("$duration: %w", err)
		}
		return value.Duration(d), nil
	case "$decimal":
		d, err := value.ParseDecimal(s)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown typed value %s", kind)
	}
}

// parseRecordID reads "tb:key". An all-digit key is an integer.
func parseRecordID(s string) (value.RecordID, error) {
	tb, key, ok := strings.Cut(s, ":")
	if !ok || tb == "" || key == "" {
		return value.RecordID{}, fmt.Errorf("$record: expected tb:key, got %q", s)
	}
	if n, err := strconv.ParseInt(key, 10, 64); err == nil {
		return value.NewRecordID(tb, value.Int(n)), nil
	}
	return value.NewRecordID(tb, value.String(key)), nil
}

// sessionID maps a session name to a stable UUID.
func sessionID(name string) uuid.UUID {
	if name == "" {
		return uuid.Nil
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("emdb-session:"+name))
}
