// Package canonical implements the single canonical JSON encoding that
// spec §4.2/§6/§9 designates as the sole input to every hash and
// signature in the kernel: UTF-8, no whitespace, object keys sorted by
// Unicode code-point order, arrays in source order, booleans as literal
// true/false, numbers in minimal decimal form, no derived fields.
//
// Mirrors the two-pass shape of the teacher's plan canonicalizer
// (intermediate canonical form, then a single hash over its bytes) but
// targets JSON rather than CBOR, because the spec normatively fixes the
// wire/hash encoding to JSON.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Encode returns the canonical JSON bytes of v. It accepts a closed
// set of types: nil, bool, string, int, int64, float64, []interface{},
// []string, []map[string]interface{} and map[string]interface{}, with
// nested values drawn from the same set. Anything else is a defect in the caller, not a
// legitimate encoding failure, so Encode returns an error rather than
// panicking — callers in the pure stages are expected to never hit it.
func Encode(v interface{}) ([]byte, error) {
	var b strings.Builder
	if err := encodeValue(&b, v); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// Hash returns the lower-case hex SHA-256 of the canonical encoding of v.
func Hash(v interface{}) (string, error) {
	data, err := Encode(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func encodeValue(b *strings.Builder, v interface{}) error {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		encodeString(b, val)
	case int:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case float64:
		encodeNumber(b, val)
	case []interface{}:
		return encodeArray(b, val)
	case map[string]interface{}:
		return encodeObject(b, val)
	case []string:
		arr := make([]interface{}, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return encodeArray(b, arr)
	case []map[string]interface{}:
		arr := make([]interface{}, len(val))
		for i, m := range val {
			arr[i] = m
		}
		return encodeArray(b, arr)
	default:
		return fmt.Errorf("canonical: unsupported type %T", v)
	}
	return nil
}

func encodeNumber(b *strings.Builder, f float64) {
	// Minimal decimal form: integral floats render without a trailing
	// ".0"; otherwise render the shortest round-trippable form.
	if f == float64(int64(f)) {
		b.WriteString(strconv.FormatInt(int64(f), 10))
		return
	}
	b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}

func encodeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

func encodeArray(b *strings.Builder, arr []interface{}) error {
	b.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := encodeValue(b, elem); err != nil {
			return err
		}
	}
	b.WriteByte(']')
	return nil
}

func encodeObject(b *strings.Builder, obj map[string]interface{}) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		// Unicode code-point order: byte-wise comparison of valid UTF-8
		// strings is equivalent to code-point order.
		return keys[i] < keys[j]
	})

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		encodeString(b, k)
		b.WriteByte(':')
		if err := encodeValue(b, obj[k]); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}
