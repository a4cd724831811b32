package fetcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMissingKey is returned when a required key is absent or null.
	ErrMissingKey = errors.New("missing key")
	// ErrBadType is returned when a value has an unexpected JSON type.
	ErrBadType = errors.New("unexpected type")
)

// Record is one raw, provider-shaped JSON object. Numbers are json.Number
// when the record was decoded by httpclient.
type Record map[string]any

// String returns the required string value at key.
func (r Record) String(key string) (string, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%q: %w", key, ErrMissingKey)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	}
	return "", fmt.Errorf("%q is %T: %w", key, v, ErrBadType)
}

// OptString returns the string value at key, or "" when absent or not a string.
func (r Record) OptString(key string) string {
	s, err := r.String(key)
	if err != nil {
		return ""
	}
	return s
}

// Int64 returns the required integer at key. Numeric strings are accepted,
// upstream IDs come both ways.
func (r Record) Int64(key string) (int64, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%q: %w", key, ErrMissingKey)
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", key, err)
	}
	return n, nil
}

// Records returns the list of objects at key. Absent keys yield an empty list.
func (r Record) Records(key string) ([]Record, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	return AsRecords(v)
}

// AsRecords converts a decoded JSON array of objects.
func AsRecords(v any) ([]Record, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("list is %T: %w", v, ErrBadType)
	}
	out := make([]Record, 0, len(items))
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is %T: %w", i, it, ErrBadType)
		}
		out = append(out, Record(m))
	}
	return out, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("%q: %w", n, ErrBadType)
		}
		return int64(f), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v: %w", n, ErrBadType)
		}
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q: %w", n, ErrBadType)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%T: %w", v, ErrBadType)
}
