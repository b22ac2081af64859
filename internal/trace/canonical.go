package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the canonical JSON used for golden-file
// comparison and trace hashing. Standard json.Marshal is unsuitable for
// content identity: it HTML-escapes, preserves map iteration nondeterminism
// through struct tricks, and does not normalize strings.
//
// Canonical rules:
//  1. Object keys sorted bytewise after NFC normalization
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings NFC normalized, so visually identical savepoint and handle
//     names hash identically regardless of the producer's Unicode form
//  4. No floats (returns error) - traces carry only ints, strings, bools
//  5. No null (returns error)
func MarshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical trace JSON")
	case string:
		return marshalCanonicalString(val)
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		return marshalCanonicalArray(val)
	case map[string]any:
		return marshalCanonicalObject(val)
	default:
		return nil, fmt.Errorf("unsupported type %T in canonical trace JSON", v)
	}
}

func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, fmt.Errorf("marshal canonical string: %w", err)
	}
	// Encoder appends a newline; strip it.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func marshalCanonicalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalCanonical(elem)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, norm.NFC.String(k))
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalCanonicalString(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := MarshalCanonical(obj[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EventMap converts an event to the map form used in canonical snapshots.
// Empty savepoint names are omitted rather than serialized as "".
func EventMap(ev Event) map[string]any {
	m := map[string]any{
		"seq":    ev.Seq,
		"op":     string(ev.Op),
		"handle": ev.Handle,
	}
	if ev.Savepoint != "" {
		m["savepoint"] = ev.Savepoint
	}
	return m
}

// Snapshot builds the canonical map for a named run's full trace.
func Snapshot(name string, events []Event) map[string]any {
	list := make([]any, len(events))
	for i, ev := range events {
		list[i] = EventMap(ev)
	}
	return map[string]any{
		"name":  name,
		"trace": list,
	}
}
