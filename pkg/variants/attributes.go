package variants

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Attributes is a typed attribute map of an allele. Values are int64,
// float64, string or bool and keep their type through serialization.
type Attributes struct {
	values map[string]any
}

func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		return x, nil
	case bool:
		return x, nil
	}
	return nil, fmt.Errorf("unsupported attribute type %T", v)
}

// Set stores a value, converting integer and float widths
func (a *Attributes) Set(name string, v any) error {
	nv, err := normalizeValue(v)
	if err != nil {
		return fmt.Errorf("attribute %s: %w", name, err)
	}
	if a.values == nil {
		a.values = make(map[string]any)
	}
	a.values[name] = nv
	return nil
}

// Update sets every entry of m. Applying the same map twice leaves the
// attributes as after the first application.
func (a *Attributes) Update(m map[string]any) error {
	for _, k := range sortedKeys(m) {
		if err := a.Set(k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the raw value
func (a *Attributes) Get(name string) (any, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Has reports whether the attribute is present
func (a *Attributes) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// Float returns a numeric attribute as float64
func (a *Attributes) Float(name string) (float64, bool) {
	switch x := a.values[name].(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	}
	return 0, false
}

// Int returns an integer attribute
func (a *Attributes) Int(name string) (int64, bool) {
	x, ok := a.values[name].(int64)
	return x, ok
}

// Str returns a string attribute
func (a *Attributes) Str(name string) (string, bool) {
	x, ok := a.values[name].(string)
	return x, ok
}

// Bool returns a boolean attribute
func (a *Attributes) Bool(name string) (bool, bool) {
	x, ok := a.values[name].(bool)
	return x, ok
}

// Or returns the attribute or def when absent
func (a *Attributes) Or(name string, def any) any {
	if v, ok := a.values[name]; ok {
		return v
	}
	return def
}

// Names returns attribute names in sorted order
func (a *Attributes) Names() []string { return sortedKeys(a.values) }

// Len returns the number of attributes
func (a *Attributes) Len() int { return len(a.values) }

// Equal compares names, types and values
func (a *Attributes) Equal(o *Attributes) bool {
	if a.Len() != o.Len() {
		return false
	}
	for k, v := range a.values {
		ov, ok := o.values[k]
		if !ok {
			return false
		}
		if ov != v && !(isNaN(ov) && isNaN(v)) {
			return false
		}
	}
	return true
}

func isNaN(v any) bool {
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}

// Clone returns an independent copy
func (a *Attributes) Clone() Attributes {
	out := Attributes{values: make(map[string]any, len(a.values))}
	for k, v := range a.values {
		out.values[k] = v
	}
	return out
}

type typedValue struct {
	Type  string          `json:"t"`
	Value json.RawMessage `json:"v"`
}

// MarshalJSON writes each value with a type tag so that integers and
// floats survive a round trip. NaN and infinities are written as the
// strings "NaN", "+Inf" and "-Inf".
func (a Attributes) MarshalJSON() ([]byte, error) {
	out := make(map[string]typedValue, len(a.values))
	for k, v := range a.values {
		var payload any = v
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			payload = strconv.FormatFloat(f, 'g', -1, 64)
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		tv := typedValue{Value: raw}
		switch v.(type) {
		case int64:
			tv.Type = "i"
		case float64:
			tv.Type = "f"
		case string:
			tv.Type = "s"
		case bool:
			tv.Type = "b"
		}
		out[k] = tv
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the MarshalJSON form
func (a *Attributes) UnmarshalJSON(data []byte) error {
	var in map[string]typedValue
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	a.values = make(map[string]any, len(in))
	for k, tv := range in {
		var err error
		switch tv.Type {
		case "i":
			var x int64
			err = json.Unmarshal(tv.Value, &x)
			a.values[k] = x
		case "f":
			a.values[k], err = unmarshalFloat(tv.Value)
		case "s":
			var x string
			err = json.Unmarshal(tv.Value, &x)
			a.values[k] = x
		case "b":
			var x bool
			err = json.Unmarshal(tv.Value, &x)
			a.values[k] = x
		default:
			err = fmt.Errorf("unknown type tag %q", tv.Type)
		}
		if err != nil {
			return fmt.Errorf("attribute %s: %w", k, err)
		}
	}
	return nil
}

func unmarshalFloat(raw json.RawMessage) (float64, error) {
	var x float64
	if err := json.Unmarshal(raw, &x); err == nil {
		return x, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "+Inf":
		return math.Inf(1), nil
	case "-Inf":
		return math.Inf(-1), nil
	}
	return 0, fmt.Errorf("invalid float %q", s)
}
