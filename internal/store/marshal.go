package store

import (
	"fmt"
	"time"

	"github.com/roach88/emdb/internal/codec"
	"github.com/roach88/emdb/internal/value"
)

// Declared column types that carry encoded values.
const (
	declCBOR = "CBORBLOB"
	declJSON = "JSONTEXT"
)

// marshalDocument produces the content and doc columns for a record.
func marshalDocument(doc value.Object) ([]byte, string, error) {
	content, err := codec.Encode(doc)
	if err != nil {
		return nil, "", fmt.Errorf("marshal document: %w", err)
	}
	projection, err := value.MarshalCanonical(doc)
	if err != nil {
		return nil, "", fmt.Errorf("marshal document: %w", err)
	}
	return content, string(projection), nil
}

// unmarshalDocument decodes a content column back into a record.
func unmarshalDocument(content []byte) (value.Object, error) {
	v, err := codec.Decode(content)
	if err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	obj, ok := v.(value.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal document: expected object, found %s", v.Kind())
	}
	return obj, nil
}

// bindValue converts a value into a driver argument. Values SQLite has no
// native type for are bound as text: structured values as canonical JSON,
// the rest in their display form.
func bindValue(v value.Value) (any, error) {
	switch val := v.(type) {
	case nil, value.None, value.Null:
		return nil, nil
	case value.Bool:
		return bool(val), nil
	case value.Int:
		return int64(val), nil
	case value.Float:
		return float64(val), nil
	case value.String:
		return string(val), nil
	case value.Bytes:
		return []byte(val), nil
	case value.Decimal:
		return val.String(), nil
	case value.UUID:
		return val.String(), nil
	case value.Datetime:
		return val.Time().Format(time.RFC3339Nano), nil
	case value.Duration:
		return val.String(), nil
	case value.Table:
		return string(val), nil
	case value.RecordID:
		return val.String(), nil
	case value.Array, value.Object:
		b, err := value.MarshalCanonical(val)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return nil, fmt.Errorf("cannot bind %T", v)
	}
}

// columnValue converts a scanned column into a value. decl is the upper-case
// declared type of the column, empty for expressions.
func columnValue(raw any, decl string) value.Value {
	switch v := raw.(type) {
	case nil:
		return value.Null{}
	case int64:
		return value.Int(v)
	case float64:
		return value.Float(v)
	case bool:
		return value.Bool(v)
	case time.Time:
		return value.Datetime(v)
	case string:
		if decl == declJSON {
			if parsed, err := value.FromJSON([]byte(v)); err == nil {
				return parsed
			}
		}
		return value.String(v)
	case []byte:
		if decl == declCBOR {
			if decoded, err := codec.Decode(v); err == nil {
				return decoded
			}
		}
		if decl == declJSON {
			if parsed, err := value.FromJSON(v); err == nil {
				return parsed
			}
		}
		return value.Bytes(append([]byte(nil), v...))
	default:
		return value.String(fmt.Sprint(v))
	}
}
