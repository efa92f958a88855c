package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Property bags arrive as decoded JSON objects: numbers are float64 or
// json.Number, dates are strings.  The helpers below report a VALIDATION
// error naming the offending key.

func bagString(bag map[string]any, key string) (string, bool, error) {
	v, ok := bag[key]
	if !ok || v == nil {
		return "", false, nil
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true, nil
	case float64, json.Number, int, int64:
		return fmt.Sprint(t), true, nil
	}
	return "", false, Validation("%s must be a string", key)
}

func bagDecimal(bag map[string]any, key string) (decimal.NullDecimal, bool, error) {
	v, ok := bag[key]
	if !ok {
		return decimal.NullDecimal{}, false, nil
	}
	if v == nil {
		return decimal.NullDecimal{}, true, nil
	}
	d, err := toDecimal(v)
	if err != nil {
		return decimal.NullDecimal{}, false, Validation("%s must be a number", key)
	}
	return d, true, nil
}

func toDecimal(v any) (decimal.NullDecimal, error) {
	switch t := v.(type) {
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(t)), nil
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(t))), nil
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(t)), nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return decimal.NewNullDecimal(d), err
	case string:
		if strings.TrimSpace(t) == "" {
			return decimal.NullDecimal{}, nil
		}
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return decimal.NewNullDecimal(d), err
	}
	return decimal.NullDecimal{}, fmt.Errorf("unsupported number %T", v)
}

func bagUint(bag map[string]any, key string) (uint64, bool, error) {
	v, ok := bag[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch t := v.(type) {
	case float64:
		if t > 0 && t == float64(uint64(t)) {
			return uint64(t), true, nil
		}
	case json.Number:
		if n, err := strconv.ParseUint(t.String(), 10, 64); err == nil && n > 0 {
			return n, true, nil
		}
	case string:
		if n, err := strconv.ParseUint(strings.TrimSpace(t), 10, 64); err == nil && n > 0 {
			return n, true, nil
		}
	case int:
		if t > 0 {
			return uint64(t), true, nil
		}
	case uint64:
		if t > 0 {
			return t, true, nil
		}
	}
	return 0, false, Validation("%s must be a positive integer", key)
}

func bagDate(bag map[string]any, key string) (*time.Time, bool, error) {
	s, ok, err := bagString(bag, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	if s == "" {
		return nil, true, nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil, false, Validation("%s must be a date (YYYY-MM-DD)", key)
	}
	return &t, true, nil
}

// ParseDate accepts YYYY-MM-DD, a local date-time without zone, or RFC 3339,
// and returns the instant in UTC.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
