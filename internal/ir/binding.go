package ir

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// RefPrefix marks a string literal whose value is an opaque reference token
// rather than inline text: 'ref <name>'.
const RefPrefix = "ref "

// Binding maps variable (or option) names to matched values.
//
// Values are stored exactly as matched. Typed accessors convert at read time
// and return the zero value when the name is unbound or does not convert;
// use Lookup when the distinction matters.
type Binding map[string]string

// Point is a 2D coordinate as carried in region facts.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Lookup returns the raw value and whether the name is bound.
func (b Binding) Lookup(name string) (string, bool) {
	v, ok := b[name]
	return v, ok
}

// Has reports whether the name is bound.
func (b Binding) Has(name string) bool {
	_, ok := b[name]
	return ok
}

// Len returns the number of bound names.
func (b Binding) Len() int {
	return len(b)
}

// Keys returns the bound names in sorted order.
func (b Binding) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns an independent copy.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other into b, overwriting on conflict.
func (b Binding) Merge(other Binding) {
	for k, v := range other {
		b[k] = v
	}
}

// String returns the raw value.
func (b Binding) String(name string) string {
	return b[name]
}

// Int parses the value as an integer. Decimal values are truncated toward
// zero, so "12.7" reads as 12.
func (b Binding) Int(name string) int {
	v, ok := b[name]
	if !ok {
		return 0
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
		return int(f)
	}
	return 0
}

// Float parses the value as a float64.
func (b Binding) Float(name string) float64 {
	v, ok := b[name]
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}

// Bool parses the value with strconv.ParseBool.
func (b Binding) Bool(name string) bool {
	v, ok := b[name]
	if !ok {
		return false
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false
	}
	return parsed
}

// Strings splits a newline-separated value, dropping empty lines.
func (b Binding) Strings(name string) []string {
	v, ok := b[name]
	if !ok {
		return nil
	}
	var out []string
	for _, line := range strings.Split(v, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// JSON decodes a JSON-encoded value into dst.
func (b Binding) JSON(name string, dst any) error {
	v, ok := b[name]
	if !ok {
		return fmt.Errorf("binding %q not found", name)
	}
	if err := json.Unmarshal([]byte(v), dst); err != nil {
		return fmt.Errorf("binding %q: %w", name, err)
	}
	return nil
}

// Points decodes a JSON array of {"x":..,"y":..} objects.
func (b Binding) Points(name string) ([]Point, error) {
	var pts []Point
	if err := b.JSON(name, &pts); err != nil {
		return nil, err
	}
	return pts, nil
}

// Ref returns the reference name carried by the value. Both the bare name and
// the RefPrefix form are accepted. Resolution to a payload is the reference
// registry's job.
func (b Binding) Ref(name string) (string, bool) {
	v, ok := b[name]
	if !ok || v == "" {
		return "", false
	}
	return strings.TrimPrefix(v, RefPrefix), true
}

// Map returns a plain map copy for encoding.
func (b Binding) Map() map[string]string {
	return map[string]string(b.Clone())
}
