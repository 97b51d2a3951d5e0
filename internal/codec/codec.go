package codec

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/roach88/emdb/internal/value"
)

// Tag numbers. Append only.
const (
	TagDatetimeText  = 0
	TagNone          = 6
	TagTable         = 7
	TagRecordID      = 8
	TagUUIDText      = 9
	TagDecimal       = 10
	TagDatetime      = 12
	TagDurationText  = 13
	TagDuration      = 14
	TagUUID          = 37
	maxNestingLevels = 256
)

var (
	// ErrCodec marks every encode or decode failure.
	ErrCodec = errors.New("codec")

	// ErrInvalidParams marks a parameter payload that is valid CBOR but not
	// a parameter array.
	ErrInvalidParams = errors.New("invalid params")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: build encode mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: maxNestingLevels,
		IntDec:          cbor.IntDecConvertSignedOrFail,
		BigIntDec:       cbor.BigIntDecodePointer,
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: build decode mode: %v", err))
	}
}

// Encode serialises v. A nil Value encodes as None.
func Encode(v value.Value) ([]byte, error) {
	raw, err := toCBOR(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}
	b, err := encMode.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}
	return b, nil
}

// EncodeString encodes a plain String value. It cannot fail, which makes it
// suitable for failure payloads.
func EncodeString(s string) []byte {
	b, err := encMode.Marshal(s)
	if err != nil {
		// Marshalling a Go string has no failure path.
		panic(fmt.Sprintf("codec: encode string: %v", err))
	}
	return b
}

// Decode parses exactly one CBOR item. Empty input, truncated input,
// trailing bytes, non-text map keys, unknown tags and integers outside the
// int64 range are all errors.
func Decode(b []byte) (value.Value, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrCodec)
	}
	var raw any
	if err := decMode.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}
	v, err := fromCBOR(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}
	return v, nil
}

// DecodeParams decodes a positional parameter array. An empty payload is an
// empty array.
func DecodeParams(b []byte) (value.Array, error) {
	if len(b) == 0 {
		return value.Array{}, nil
	}
	v, err := Decode(b)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(value.Array)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, found %s", ErrInvalidParams, v.Kind())
	}
	return arr, nil
}

func toCBOR(v value.Value) (any, error) {
	switch val := v.(type) {
	case nil, value.None:
		return cbor.Tag{Number: TagNone, Content: nil}, nil
	case value.Null:
		return nil, nil
	case value.Bool:
		return bool(val), nil
	case value.Int:
		return int64(val), nil
	case value.Float:
		return float64(val), nil
	case value.Decimal:
		return cbor.Tag{Number: TagDecimal, Content: val.String()}, nil
	case value.String:
		return string(val), nil
	case value.Bytes:
		return []byte(val), nil
	case value.UUID:
		return cbor.Tag{Number: TagUUID, Content: val[:]}, nil
	case value.Datetime:
		t := val.Time()
		return cbor.Tag{Number: TagDatetime, Content: []any{t.Unix(), int64(t.Nanosecond())}}, nil
	case value.Duration:
		d := int64(val)
		return cbor.Tag{Number: TagDuration, Content: []any{d / int64(time.Second), d % int64(time.Second)}}, nil
	case value.Table:
		return cbor.Tag{Number: TagTable, Content: string(val)}, nil
	case value.RecordID:
		id, err := toCBOR(val.ID)
		if err != nil {
			return nil, fmt.Errorf("record id %s: %w", val.Table, err)
		}
		return cbor.Tag{Number: TagRecordID, Content: []any{val.Table, id}}, nil
	case value.Array:
		out := make([]any, len(val))
		for i, elem := range val {
			e, err := toCBOR(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			out[i] = e
		}
		return out, nil
	case value.Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			e, err := toCBOR(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			out[k] = e
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func fromCBOR(raw any) (value.Value, error) {
	switch val := raw.(type) {
	case nil:
		return value.Null{}, nil
	case bool:
		return value.Bool(val), nil
	case int64:
		return value.Int(val), nil
	case float64:
		return value.Float(val), nil
	case string:
		return value.String(val), nil
	case []byte:
		return value.Bytes(val), nil
	case time.Time:
		return value.Datetime(val.UTC()), nil
	case *big.Int:
		return value.DecimalFromBigInt(val), nil
	case []any:
		arr := make(value.Array, len(val))
		for i, elem := range val {
			e, err := fromCBOR(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	case map[string]any:
		obj := make(value.Object, len(val))
		for k, elem := range val {
			e, err := fromCBOR(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = e
		}
		return obj, nil
	case cbor.Tag:
		return fromTag(val)
	default:
		return nil, fmt.Errorf("unsupported CBOR item %T", raw)
	}
}

func fromTag(tag cbor.Tag) (value.Value, error) {
	switch tag.Number {
	case TagNone:
		if tag.Content != nil {
			return nil, fmt.Errorf("tag %d: expected null content", tag.Number)
		}
		return value.None{}, nil

	case TagTable:
		s, err := textContent(tag)
		if err != nil {
			return nil, err
		}
		return value.Table(s), nil

	case TagRecordID:
		pair, ok := tag.Content.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("tag %d: expected [table, id]", tag.Number)
		}
		table, ok := pair[0].(string)
		if !ok {
			return nil, fmt.Errorf("tag %d: table must be text", tag.Number)
		}
		id, err := fromCBOR(pair[1])
		if err != nil {
			return nil, fmt.Errorf("tag %d: %w", tag.Number, err)
		}
		if !value.ValidRecordKey(id) {
			return nil, fmt.Errorf("tag %d: invalid record key type %s", tag.Number, id.Kind())
		}
		return value.NewRecordID(table, id), nil

	case TagUUIDText:
		s, err := textContent(tag)
		if err != nil {
			return nil, err
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("tag %d: %w", tag.Number, err)
		}
		return value.UUID(u), nil

	case TagUUID:
		b, ok := tag.Content.([]byte)
		if !ok || len(b) != 16 {
			return nil, fmt.Errorf("tag %d: expected 16 byte string", tag.Number)
		}
		u, err := uuid.FromBytes(b)
		if err != nil {
			return nil, fmt.Errorf("tag %d: %w", tag.Number, err)
		}
		return value.UUID(u), nil

	case TagDecimal:
		s, err := textContent(tag)
		if err != nil {
			return nil, err
		}
		d, err := value.ParseDecimal(s)
		if err != nil {
			return nil, fmt.Errorf("tag %d: %w", tag.Number, err)
		}
		return d, nil

	case TagDatetime:
		secs, nanos, err := secondsNanos(tag)
		if err != nil {
			return nil, err
		}
		return value.Datetime(time.Unix(secs, nanos).UTC()), nil

	case TagDurationText:
		s, err := textContent(tag)
		if err != nil {
			return nil, err
		}
		d, err := value.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("tag %d: %w", tag.Number, err)
		}
		return value.Duration(d), nil

	case TagDuration:
		secs, nanos, err := secondsNanos(tag)
		if err != nil {
			return nil, err
		}
		if !durationFits(secs, nanos) {
			return nil, fmt.Errorf("tag %d: duration out of range", tag.Number)
		}
		return value.Duration(secs*int64(time.Second) + nanos), nil

	default:
		return nil, fmt.Errorf("unknown tag %d", tag.Number)
	}
}

// durationFits reports whether secs seconds plus nanos nanoseconds is
// representable as a time.Duration. |nanos| is below one second.
func durationFits(secs, nanos int64) bool {
	const second = int64(time.Second)
	const maxSecs = math.MaxInt64 / second
	switch {
	case secs > maxSecs || secs < -maxSecs:
		return false
	case nanos > 0:
		return secs <= (math.MaxInt64-nanos)/second
	case nanos < 0:
		return secs >= (math.MinInt64-nanos)/second
	}
	return true
}

func textContent(tag cbor.Tag) (string, error) {
	s, ok := tag.Content.(string)
	if !ok {
		return "", fmt.Errorf("tag %d: expected text content", tag.Number)
	}
	return s, nil
}

// secondsNanos reads the compact [seconds, nanoseconds] form. Trailing
// zero elements may be omitted.
func secondsNanos(tag cbor.Tag) (int64, int64, error) {
	parts, ok := tag.Content.([]any)
	if !ok || len(parts) > 2 {
		return 0, 0, fmt.Errorf("tag %d: expected [seconds, nanoseconds]", tag.Number)
	}
	var out [2]int64
	for i, p := range parts {
		n, ok := p.(int64)
		if !ok {
			return 0, 0, fmt.Errorf("tag %d: element %d must be an integer", tag.Number, i)
		}
		out[i] = n
	}
	if out[1] <= -int64(time.Second) || out[1] >= int64(time.Second) {
		return 0, 0, fmt.Errorf("tag %d: nanoseconds out of range", tag.Number)
	}
	return out[0], out[1], nil
}
