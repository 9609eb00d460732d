package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DateLayout is the format dates are submitted in
const DateLayout = "2006-01-02T15:04:05Z"

// dateInputLayouts are the layouts accepted for date values, tried in order
var dateInputLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

type cacheKey struct {
	storeID string
	field   string
	raw     string
}

// ValueCache memoizes normalized string values for the duration of one feed run.
// A new cache is created for every run and dropped when the run ends, so memory
// never grows across runs. It is safe for concurrent use.
type ValueCache struct {
	mu     sync.Mutex
	values map[cacheKey]any
}

// NewValueCache creates an empty cache
func NewValueCache() *ValueCache {
	return &ValueCache{values: make(map[cacheKey]any)}
}

// Len returns the number of cached values
func (c *ValueCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// Reset drops every cached value
func (c *ValueCache) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[cacheKey]any)
}

// Normalize converts a raw field value into the shape declared by the descriptor.
// Multi-valued fields always yield a slice with empty entries removed; single
// valued fields yield the first usable value.
func (c *ValueCache) Normalize(storeID string, field FieldDescriptor, raw any) (any, error) {
	values := flatten(raw)

	normalized := make([]any, 0, len(values))
	for _, v := range values {
		nv, err := c.normalizeScalar(storeID, field, v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		if isBlank(nv) {
			continue
		}
		normalized = append(normalized, nv)
	}

	if field.MultiValued {
		return normalized, nil
	}
	if len(normalized) == 0 {
		if field.DataType == FieldTypeBool {
			return false, nil
		}
		return nil, nil
	}
	return normalized[0], nil
}

func (c *ValueCache) normalizeScalar(storeID string, field FieldDescriptor, v any) (any, error) {
	s, isString := v.(string)
	if !isString || c == nil {
		return normalizeScalar(field.DataType, v)
	}

	key := cacheKey{storeID: storeID, field: field.Name, raw: s}
	c.mu.Lock()
	cached, ok := c.values[key]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	nv, err := normalizeScalar(field.DataType, s)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.values[key] = nv
	c.mu.Unlock()
	return nv, nil
}

func normalizeScalar(t FieldType, v any) (any, error) {
	switch t {
	case FieldTypeBool:
		return toBool(v)
	case FieldTypeDecimal:
		return toDecimal(v)
	case FieldTypeDate:
		return toDate(v)
	default:
		return toText(v), nil
	}
}

func flatten(raw any) []any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

func toText(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return false, err
		}
		return f != 0, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		switch s {
		case "", "0", "false", "no", "n":
			return false, nil
		case "1", "true", "yes", "y":
			return true, nil
		}
		return false, fmt.Errorf("invalid bool value %q", x)
	case nil:
		return false, nil
	}
	return false, fmt.Errorf("invalid bool value of type %T", v)
}

func toDecimal(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid decimal value %q", x)
		}
		return f, nil
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("invalid decimal value of type %T", v)
}

func toDate(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(DateLayout), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		for _, layout := range dateInputLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC().Format(DateLayout), nil
			}
		}
		return nil, fmt.Errorf("invalid date value %q", x)
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("invalid date value of type %T", v)
}
