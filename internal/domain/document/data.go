package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Data is a schemaless JSON object that keeps its key order.
//
// Values are one of: string, json.Number, bool, nil, []any, Data.
// The zero value is an empty object ready to use.
type Data struct {
	keys   []string
	values map[string]any
}

// NewData builds Data from key/value pairs in order. Values are normalized
// through JSON, so Go maps, ints and floats are accepted.
func NewData(pairs ...any) (Data, error) {
	if len(pairs)%2 != 0 {
		return Data{}, errors.New("document data: odd number of key/value arguments")
	}
	var d Data
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return Data{}, fmt.Errorf("document data: key at position %d is %T, not string", i, pairs[i])
		}
		v, err := normalizeValue(pairs[i+1])
		if err != nil {
			return Data{}, fmt.Errorf("document data: key %q: %w", key, err)
		}
		d.Set(key, v)
	}
	return d, nil
}

// MustData is NewData that panics on error. Intended for tests and literals.
func MustData(pairs ...any) Data {
	d, err := NewData(pairs...)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseData decodes a JSON object preserving key order.
func ParseData(raw []byte) (Data, error) {
	var d Data
	if err := d.UnmarshalJSON(raw); err != nil {
		return Data{}, err
	}
	return d, nil
}

// Len returns the number of top-level keys.
func (d Data) Len() int { return len(d.keys) }

// Keys returns the top-level keys in insertion order.
func (d Data) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Get returns the value stored under key.
func (d Data) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Set stores v under key. Existing keys keep their position.
func (d *Data) Set(key string, v any) {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

// Delete removes key.
func (d *Data) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Text flattens the value under key into plain text for full-text indexing.
// Strings are returned as is; numbers and booleans by their literal; arrays and
// nested objects are joined with spaces. Missing keys and nulls yield "".
func (d Data) Text(key string) string {
	v, ok := d.values[key]
	if !ok {
		return ""
	}
	var sb strings.Builder
	writeText(&sb, v)
	return strings.TrimSpace(sb.String())
}

func writeText(sb *strings.Builder, v any) {
	switch tv := v.(type) {
	case nil:
	case string:
		sb.WriteString(tv)
		sb.WriteByte(' ')
	case json.Number:
		sb.WriteString(tv.String())
		sb.WriteByte(' ')
	case bool:
		sb.WriteString(strconv.FormatBool(tv))
		sb.WriteByte(' ')
	case []any:
		for _, item := range tv {
			writeText(sb, item)
		}
	case Data:
		for _, k := range tv.keys {
			writeText(sb, tv.values[k])
		}
	}
}

// Equal reports whether both objects hold the same keys, order and values.
func (d Data) Equal(other Data) bool {
	a, errA := d.MarshalJSON()
	b, errB := other.MarshalJSON()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// Clone returns a deep copy.
func (d Data) Clone() Data {
	var c Data
	for _, k := range d.keys {
		c.Set(k, cloneValue(d.values[k]))
	}
	return c
}

func cloneValue(v any) any {
	switch tv := v.(type) {
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = cloneValue(item)
		}
		return out
	case Data:
		return tv.Clone()
	default:
		return v
	}
}

// MarshalJSON encodes the object with keys in insertion order.
func (d Data) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch tv := v.(type) {
	case Data:
		buf.WriteByte('{')
		for i, k := range tv.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := encodeValue(buf, tv.values[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range tv {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		raw, err := json.Marshal(tv)
		if err != nil {
			return fmt.Errorf("encode value: %w", err)
		}
		buf.Write(raw)
	}
	return nil
}

// UnmarshalJSON decodes a JSON object preserving key order, including in nested objects.
func (d *Data) UnmarshalJSON(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("document data: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("document data: expected JSON object")
	}
	obj, err := decodeObject(dec)
	if err != nil {
		return fmt.Errorf("document data: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("document data: trailing content after object")
	}
	*d = obj
	return nil
}

func decodeObject(dec *json.Decoder) (Data, error) {
	var d Data
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Data{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Data{}, fmt.Errorf("unexpected token %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return Data{}, err
		}
		d.Set(key, v)
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return Data{}, err
	}
	if d.values == nil {
		d.values = map[string]any{}
	}
	return d, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch tv := tok.(type) {
	case json.Delim:
		switch tv {
		case '{':
			return decodeObject(dec)
		case '[':
			arr := []any{}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, item)
			}
			if _, err := dec.Token(); err != nil { // closing ']'
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", tv)
		}
	default:
		return tv, nil
	}
}

// normalizeValue converts arbitrary Go values into the Data value domain.
func normalizeValue(v any) (any, error) {
	switch tv := v.(type) {
	case nil, string, json.Number, bool, Data:
		return tv, nil
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			n, err := normalizeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return decodeValue(dec)
}
