package usage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Field is one metadata entry.
type Field struct {
	Key   string
	Value any
}

// Metadata is an ordered set of key/value pairs attached to a Record.
//
// Values may be any JSON-encodable value, including nested maps and slices.
// Order is preserved on the wire. Keys must be unique and non-empty.
type Metadata []Field

// FromMap converts a map into Metadata with keys in sorted order.
func FromMap(m map[string]any) Metadata {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	md := make(Metadata, 0, len(keys))
	for _, k := range keys {
		md = append(md, Field{Key: k, Value: m[k]})
	}
	return md
}

// Pairs builds Metadata from alternating key/value arguments:
//
//	usage.Pairs("prompt_tokens", 100, "completion_tokens", 50)
//
// A trailing key without a value is stored with a nil value.
func Pairs(kv ...any) Metadata {
	md := make(Metadata, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		var value any
		if i+1 < len(kv) {
			value = kv[i+1]
		}
		md = md.With(key, value)
	}
	return md
}

// With returns a copy of m with key set to value. An existing key keeps its
// position; a new key is appended.
func (m Metadata) With(key string, value any) Metadata {
	out := m.Clone()
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Field{Key: key, Value: value})
}

// Get returns the value stored under key.
func (m Metadata) Get(key string) (any, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Clone returns a copy of the entry list. Values are not deep-copied.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	copy(out, m)
	return out
}

// Map converts m to a plain map. Order is lost.
func (m Metadata) Map() map[string]any {
	out := make(map[string]any, len(m))
	for _, f := range m {
		out[f.Key] = f.Value
	}
	return out
}

func (m Metadata) validate() error {
	seen := make(map[string]struct{}, len(m))
	for _, f := range m {
		if f.Key == "" {
			return &ValidationError{Field: "metadata", Reason: "has an empty key"}
		}
		if _, dup := seen[f.Key]; dup {
			return &ValidationError{Field: "metadata", Reason: fmt.Sprintf("has duplicate key %q", f.Key)}
		}
		seen[f.Key] = struct{}{}
	}
	return nil
}

// MarshalJSON encodes m as a JSON object in insertion order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", f.Key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping key order. Numbers are kept
// as json.Number so integers round-trip without float conversion.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*m = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metadata: expected JSON object, got %v", tok)
	}

	out := Metadata{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("metadata: unexpected key token %v", keyTok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("metadata %q: %w", key, err)
		}
		out = out.With(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}
