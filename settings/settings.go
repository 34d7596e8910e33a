// Package settings builds the effective configuration for a placeholder by
// layering built-in defaults, operator-wide overrides and the placeholder's
// own data attributes.
package settings

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// KeyCacheDuration holds the cache lifetime in minutes.
const KeyCacheDuration = "cacheDuration"

// DefaultCacheMinutes is the built-in cache lifetime.
const DefaultCacheMinutes = 5

// NestedDelimiter separates path segments in data attribute names.
const NestedDelimiter = "__"

// listKeys are split on commas into lower-cased, trimmed string lists.
var listKeys = []string{"metadataBelowExcerpt", "metadataAboveTitle", "metadataBelowTitle"}

// Settings is a tree of configuration values. Nested tables are
// map[string]any (or Settings); leaves are bool, float64, int64, string or
// []string.
type Settings map[string]any

// Defaults returns the built-in defaults. Each call returns a fresh map.
func Defaults() Settings {
	return Settings{KeyCacheDuration: float64(DefaultCacheMinutes)}
}

// Merge deep-merges layers left to right into a new Settings. Later layers
// win key by key; when both sides hold a table the tables are merged
// recursively instead of replaced. Inputs are never modified.
func Merge(layers ...Settings) Settings {
	out := Settings{}
	for _, l := range layers {
		mergeInto(out, l)
	}
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := asTable(v); ok {
			if dv, ok := asTable(dst[k]); ok {
				merged := make(map[string]any, len(dv))
				mergeInto(merged, dv)
				mergeInto(merged, sv)
				dst[k] = merged
				continue
			}
			cp := make(map[string]any, len(sv))
			mergeInto(cp, sv)
			dst[k] = cp
			continue
		}
		dst[k] = v
	}
}

func asTable(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case Settings:
		return t, true
	case map[string]any:
		return t, true
	}
	return nil, false
}

// FromAttributes builds the per-placeholder layer from a dataset
// (dataset key → raw string value). Keys containing NestedDelimiter create
// nested tables; values are coerced with Coerce. The metadata list keys are
// post-processed into string lists.
func FromAttributes(dataset map[string]string) Settings {
	keys := make([]string, 0, len(dataset))
	for k := range dataset {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := Settings{}
	for _, key := range keys {
		setPath(out, strings.Split(key, NestedDelimiter), Coerce(dataset[key]))
	}
	for _, k := range listKeys {
		if v, ok := out[k]; ok {
			if l, ok := splitList(v); ok {
				out[k] = l
			}
		}
	}
	return out
}

func setPath(m map[string]any, path []string, v any) {
	for _, seg := range path[:len(path)-1] {
		next, ok := m[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[seg] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

func splitList(v any) ([]string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case bool:
		s = strconv.FormatBool(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return nil, false
	}
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return parts, true
}

// Coerce converts a raw attribute value: "true" and "false" become bools,
// a string that is the canonical decimal form of a finite number becomes a
// float64, and anything else is returned unchanged. "1.10", "05", "1e3" and
// "0x10" stay strings because reformatting the number would not give them back.
func Coerce(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) && strconv.FormatFloat(f, 'f', -1, 64) == raw {
		return f
	}
	return raw
}

// Lookup walks path through nested tables.
func (s Settings) Lookup(path ...string) (any, bool) {
	var cur any = map[string]any(s)
	for _, seg := range path {
		t, ok := asTable(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = t[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// CacheDuration returns the cacheDuration value (minutes) as a Duration.
// Missing or unusable values fall back to DefaultCacheMinutes.
func (s Settings) CacheDuration() time.Duration {
	v, ok := s[KeyCacheDuration]
	if !ok {
		return minutes(DefaultCacheMinutes)
	}
	switch t := v.(type) {
	case float64:
		return minutes(t)
	case int64:
		return minutes(float64(t))
	case int:
		return minutes(float64(t))
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return minutes(f)
		}
	}
	return minutes(DefaultCacheMinutes)
}

// maxMinutes is the largest minute count representable as a Duration.
const maxMinutes = float64(math.MaxInt64) / float64(time.Minute)

// minutes converts m to a Duration, saturating instead of overflowing.
func minutes(m float64) time.Duration {
	switch {
	case m >= maxMinutes:
		return math.MaxInt64
	case m <= -maxMinutes:
		return math.MinInt64
	}
	return time.Duration(m * float64(time.Minute))
}
