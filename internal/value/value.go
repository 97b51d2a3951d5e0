package value

import (
	"fmt"
	"math/big"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNone Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindBytes
	KindUUID
	KindDatetime
	KindDuration
	KindArray
	KindObject
	KindTable
	KindRecordID
)

var kindNames = [...]string{
	KindNone:     "none",
	KindNull:     "null",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindDecimal:  "decimal",
	KindString:   "string",
	KindBytes:    "bytes",
	KindUUID:     "uuid",
	KindDatetime: "datetime",
	KindDuration: "duration",
	KindArray:    "array",
	KindObject:   "object",
	KindTable:    "table",
	KindRecordID: "record",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a sealed interface over the supported data shapes.
type Value interface {
	Kind() Kind
	value() // Sealed - only this package implements it
}

// None is the absence of a value. It differs from Null: a None field is
// treated as "not provided", a Null field as "explicitly empty".
type None struct{}

func (None) Kind() Kind { return KindNone }
func (None) value()     {}

// Null is an explicit null.
type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) value()     {}

type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) value()     {}

type Int int64

func (Int) Kind() Kind { return KindInt }
func (Int) value()     {}

type Float float64

func (Float) Kind() Kind { return KindFloat }
func (Float) value()     {}

// Decimal is an arbitrary-precision decimal number.
type Decimal struct {
	d apd.Decimal
}

func (Decimal) Kind() Kind { return KindDecimal }
func (Decimal) value()     {}

// ParseDecimal parses the textual form of a decimal ("1.50", "-3E+4").
func ParseDecimal(s string) (Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return Decimal{d: *d}, nil
}

// MustDecimal is ParseDecimal for literals known to be valid.
func MustDecimal(s string) Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DecimalFromBigInt converts a big integer into a Decimal with exponent 0.
func DecimalFromBigInt(b *big.Int) Decimal {
	var d apd.Decimal
	d.Coeff.SetMathBigInt(b)
	if d.Coeff.Sign() < 0 {
		d.Negative = true
		d.Coeff.Abs(&d.Coeff)
	}
	return Decimal{d: d}
}

func (d Decimal) String() string {
	return d.d.String()
}

// IsFinite reports whether the decimal is neither NaN nor infinite.
func (d Decimal) IsFinite() bool {
	return d.d.Form == apd.Finite
}

// Cmp compares two decimals numerically.
func (d Decimal) Cmp(o Decimal) int {
	return d.d.Cmp(&o.d)
}

type String string

func (String) Kind() Kind { return KindString }
func (String) value()     {}

type Bytes []byte

func (Bytes) Kind() Kind { return KindBytes }
func (Bytes) value()     {}

type UUID uuid.UUID

func (UUID) Kind() Kind { return KindUUID }
func (UUID) value()     {}

func (u UUID) String() string {
	return uuid.UUID(u).String()
}

// Datetime is an instant. The location is not part of the value.
type Datetime time.Time

func (Datetime) Kind() Kind { return KindDatetime }
func (Datetime) value()     {}

// Time returns the instant in UTC.
func (d Datetime) Time() time.Time {
	return time.Time(d).UTC()
}

type Duration time.Duration

func (Duration) Kind() Kind { return KindDuration }
func (Duration) value()     {}

func (d Duration) String() string {
	return FormatDuration(time.Duration(d))
}

type Array []Value

func (Array) Kind() Kind { return KindArray }
func (Array) value()     {}

// Object maps string keys to values. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) Kind() Kind { return KindObject }
func (Object) value()     {}

// Get returns the value stored under key, or None when absent.
func (o Object) Get(key string) Value {
	if v, ok := o[key]; ok && v != nil {
		return v
	}
	return None{}
}

// Clone returns a deep copy of the object.
func (o Object) Clone() Object {
	if o == nil {
		return nil
	}
	return Clone(o).(Object)
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's default string ordering compares UTF-8 bytes, which differs for
// characters outside the BMP.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// Table names a table as a whole.
type Table string

func (Table) Kind() Kind { return KindTable }
func (Table) value()     {}

// RecordID addresses one record: a table plus a key. The key is a String,
// Int, UUID, Array or Object.
type RecordID struct {
	Table string
	ID    Value
}

func (RecordID) Kind() Kind { return KindRecordID }
func (RecordID) value()     {}

// NewRecordID builds a RecordID.
func NewRecordID(table string, id Value) RecordID {
	return RecordID{Table: table, ID: id}
}

// String renders the record id as table:key. Keys that are not plain
// identifiers are wrapped in ⟨⟩.
func (r RecordID) String() string {
	return r.Table + ":" + keyText(r.ID)
}

func keyText(id Value) string {
	switch v := id.(type) {
	case String:
		if isIdent(string(v)) {
			return string(v)
		}
		return "⟨" + strings.ReplaceAll(string(v), "⟩", `\⟩`) + "⟩"
	case Int:
		return strconv.FormatInt(int64(v), 10)
	case UUID:
		return "u'" + v.String() + "'"
	case nil:
		return "⟨⟩"
	default:
		b, err := MarshalCanonical(id)
		if err != nil {
			return fmt.Sprintf("⟨%v⟩", id)
		}
		return string(b)
	}
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	allDigits := true
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			allDigits = false
		default:
			return false
		}
	}
	return !allDigits
}

// ValidRecordKey reports whether v may be used as the key part of a RecordID.
func ValidRecordKey(v Value) bool {
	switch v.(type) {
	case String, Int, UUID, Array, Object:
		return true
	default:
		return false
	}
}

// Truthy reports whether v counts as true in a boolean position.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case nil, None, Null:
		return false
	case Bool:
		return bool(t)
	case Int:
		return t != 0
	case Float:
		return t != 0
	case String:
		return t != ""
	case Array:
		return len(t) > 0
	case Object:
		return len(t) > 0
	default:
		return true
	}
}

// IsNone reports whether v is absent (nil or None).
func IsNone(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(None)
	return ok
}

// IsNullish reports whether v is None or Null.
func IsNullish(v Value) bool {
	if IsNone(v) {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Clone returns a deep copy of v. Scalars are returned unchanged.
func Clone(v Value) Value {
	switch t := v.(type) {
	case Array:
		out := make(Array, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	case Object:
		out := make(Object, len(t))
		for k, e := range t {
			out[k] = Clone(e)
		}
		return out
	case Bytes:
		return slices.Clone(t)
	case RecordID:
		return RecordID{Table: t.Table, ID: Clone(t.ID)}
	default:
		return v
	}
}
