package value

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the RFC 8785 canonical JSON projection of v.
//
// The projection is used for record keys and for the queryable document
// column, so two equal values always project to the same bytes:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping, U+2028/U+2029 emitted literally
//  3. Strings are NFC normalized
//  4. Non-JSON variants project to strings (uuid, datetime, duration, table,
//     record id) or base64 (bytes)
//
// None and Null both project to null.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil, None, Null:
		buf.WriteString("null")
	case Bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		writeCanonicalFloat(buf, float64(val))
	case Decimal:
		if !val.IsFinite() {
			writeCanonicalString(buf, val.String())
			return nil
		}
		buf.WriteString(val.String())
	case String:
		writeCanonicalString(buf, string(val))
	case Bytes:
		writeCanonicalString(buf, base64.StdEncoding.EncodeToString(val))
	case UUID:
		writeCanonicalString(buf, val.String())
	case Datetime:
		writeCanonicalString(buf, val.Time().Format(time.RFC3339Nano))
	case Duration:
		writeCanonicalString(buf, val.String())
	case Table:
		writeCanonicalString(buf, string(val))
	case RecordID:
		writeCanonicalString(buf, val.String())
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalFloat follows the ECMAScript number serialisation used by
// RFC 8785. NaN and the infinities have no JSON form and project to strings.
func writeCanonicalFloat(buf *bytes.Buffer, f float64) {
	switch {
	case math.IsNaN(f):
		writeCanonicalString(buf, "NaN")
	case math.IsInf(f, 1):
		writeCanonicalString(buf, "Infinity")
	case math.IsInf(f, -1):
		writeCanonicalString(buf, "-Infinity")
	case f == 0:
		buf.WriteByte('0')
	default:
		abs := math.Abs(f)
		if abs >= 1e21 || abs < 1e-6 {
			s := strconv.FormatFloat(f, 'e', -1, 64)
			// Go pads exponents to two digits (1e-07), ECMAScript does not.
			if i := strings.IndexByte(s, 'e'); i >= 0 && len(s) > i+2 && s[i+2] == '0' {
				s = s[:i+2] + s[i+3:]
			}
			buf.WriteString(s)
			return
		}
		buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	}
}

// writeCanonicalString escapes only what RFC 8785 requires: the quote, the
// backslash and control characters below U+0020.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r < 0x20:
			fmt.Fprintf(buf, `\u%04x`, r)
		case r == utf8.RuneError && size == 1:
			buf.WriteString(`�`)
		default:
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}

// Key returns the storage key for a record id key value: its canonical JSON.
func Key(id Value) (string, error) {
	if !ValidRecordKey(id) {
		return "", fmt.Errorf("invalid record key type %s", kindOf(id))
	}
	b, err := MarshalCanonical(id)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func kindOf(v Value) string {
	if v == nil {
		return KindNone.String()
	}
	return v.Kind().String()
}
