package reality

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON. This is the only
// serialization that may feed content-addressed hashing.
//
// Differences from encoding/json:
//  1. Object keys sorted by UTF-16 code units, not UTF-8 bytes
//  2. No HTML escaping (< > & stay literal)
//  3. Strings are NFC normalized
//  4. Floats are rejected
//  5. Null is rejected
func MarshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case String:
		return canonicalString(string(val))
	case string:
		return canonicalString(val)
	case Int:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case int64:
		return strconv.AppendInt(nil, val, 10), nil
	case int:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case Bool:
		return strconv.AppendBool(nil, bool(val)), nil
	case bool:
		return strconv.AppendBool(nil, val), nil
	case Array:
		return canonicalArray(val)
	case Object:
		return canonicalObject(val)
	case float32, float64:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func canonicalArray(arr Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := MarshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(eb)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func canonicalObject(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := canonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := MarshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// canonicalString encodes one string per RFC 8785: NFC normalized, no
// HTML escaping, and U+2028/U+2029 kept literal. Go's encoder escapes the
// two separators for JavaScript embedding, so those escapes are undone.
func canonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1] // Encode appends a newline
	}
	return unescapeSeparators(out), nil
}

// unescapeSeparators rewrites \u2028 and \u2029 escape sequences to the
// literal characters. Escape sequences are consumed atomically, so a
// backslash-escaped "\\u2028" (literal text in the source string) is left
// alone: its backslash pair is copied before the 'u' is ever looked at.
func unescapeSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	var out bytes.Buffer
	out.Grow(len(data))
	for i := 0; i < len(data); {
		if data[i] != '\\' {
			out.WriteByte(data[i])
			i++
			continue
		}
		if i+6 <= len(data) && data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' {
			switch data[i+5] {
			case '8':
				out.WriteString("\u2028")
				i += 6
				continue
			case '9':
				out.WriteString("\u2029")
				i += 6
				continue
			}
		}
		// Some other escape sequence: copy the backslash and the byte it
		// escapes as a unit.
		out.WriteByte(data[i])
		if i+1 < len(data) {
			out.WriteByte(data[i+1])
		}
		i += 2
	}
	return out.Bytes()
}
