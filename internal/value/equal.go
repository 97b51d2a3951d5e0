package value

import (
	"bytes"
	"math"
)

// Equal reports whether a and b hold the same value. Decimals compare
// numerically, datetimes compare as instants, and a nil Value equals None.
func Equal(a, b Value) bool {
	if a == nil {
		a = None{}
	}
	if b == nil {
		b = None{}
	}
	if a.Kind() != b.Kind() {
		return false
	}

	switch av := a.(type) {
	case None, Null:
		return true
	case Bool:
		return av == b.(Bool)
	case Int:
		return av == b.(Int)
	case Float:
		bv := b.(Float)
		if math.IsNaN(float64(av)) && math.IsNaN(float64(bv)) {
			return true
		}
		return av == bv
	case Decimal:
		bv := b.(Decimal)
		if !av.IsFinite() || !bv.IsFinite() {
			return av.String() == bv.String()
		}
		return av.Cmp(bv) == 0
	case String:
		return av == b.(String)
	case Bytes:
		return bytes.Equal(av, b.(Bytes))
	case UUID:
		return av == b.(UUID)
	case Datetime:
		return av.Time().Equal(b.(Datetime).Time())
	case Duration:
		return av == b.(Duration)
	case Table:
		return av == b.(Table)
	case RecordID:
		bv := b.(RecordID)
		return av.Table == bv.Table && Equal(av.ID, bv.ID)
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv := b.(Object)
		if len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
