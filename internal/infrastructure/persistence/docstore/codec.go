// Package docstore holds the encoding and ordering rules shared by the
// DocumentStore adapters.
package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/alchemorsel/pantrychef/internal/ports/outbound"
)

// Encode resolves ServerTimestamp sentinels against now and serializes doc.
func Encode(doc outbound.Document, now time.Time) ([]byte, error) {
	resolved := resolve(map[string]any(doc), now.UTC()).(map[string]any)
	delete(resolved, outbound.IDField)
	data, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

// Decode parses a stored document. Numbers decode as json.Number so
// integers survive the round trip.
func Decode(data []byte) (outbound.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc outbound.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if doc == nil {
		doc = outbound.Document{}
	}
	return doc, nil
}

// DecodeWithID decodes a stored document and records its id under IDField.
func DecodeWithID(data []byte, id string) (outbound.Document, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	doc[outbound.IDField] = id
	return doc, nil
}

// Merge overlays fields onto an existing encoded document.
func Merge(existing []byte, fields outbound.Document, now time.Time) ([]byte, error) {
	doc, err := Decode(existing)
	if err != nil {
		return nil, err
	}
	delete(doc, outbound.IDField)
	for k, v := range fields {
		doc[k] = v
	}
	return Encode(doc, now)
}

func resolve(v any, now time.Time) any {
	switch t := v.(type) {
	case outbound.Document:
		return resolve(map[string]any(t), now)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = resolve(item, now)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = resolve(item, now)
		}
		return out
	default:
		if outbound.IsServerTimestamp(v) {
			return now
		}
		return v
	}
}

// Sort orders docs by field in place. Values are compared as timestamps
// when both parse as RFC 3339, as numbers when both are numeric, and as
// strings otherwise. Documents missing the field sort last.
func Sort(docs []outbound.Document, field string, dir outbound.SortDirection) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, aok := docs[i][field]
		b, bok := docs[j][field]
		switch {
		case !aok && !bok:
			return false
		case !aok:
			return false
		case !bok:
			return true
		}

		c := compare(a, b)
		if dir == outbound.Descending {
			return c > 0
		}
		return c < 0
	})
}

func compare(a, b any) int {
	if ta, ok := asTime(a); ok {
		if tb, ok := asTime(b); ok {
			return ta.Compare(tb)
		}
	}
	if na, ok := asNumber(a); ok {
		if nb, ok := asNumber(b); ok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			default:
				return 0
			}
		}
	}

	sa, sb := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
