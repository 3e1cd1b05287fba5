package genetics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Value is a concrete trait value. Only the field matching Kind is meaningful.
type Value struct {
	Kind Kind
	Num  float64
	Cat  string
	RGB  [3]int
}

// NumberValue returns a range value.
func NumberValue(f float64) Value {
	return Value{Kind: Range, Num: f}
}

// CategoryValue returns a categorical value.
func CategoryValue(s string) Value {
	return Value{Kind: Categorical, Cat: s}
}

// ColorValue returns a color value.
func ColorValue(r, g, b int) Value {
	return Value{Kind: Color, RGB: [3]int{r, g, b}}
}

// Equal reports whether two values are identical.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case Range:
		return v.Num == o.Num
	case Categorical:
		return v.Cat == o.Cat
	case Color:
		return v.RGB == o.RGB
	}
	return false
}

func (v Value) String() string {
	switch v.Kind {
	case Range:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case Categorical:
		return strconv.Quote(v.Cat)
	case Color:
		return fmt.Sprintf("(%d, %d, %d)", v.RGB[0], v.RGB[1], v.RGB[2])
	}
	return "<invalid>"
}

// MarshalJSON encodes ranges as numbers, categories as strings and colors
// as [r, g, b] arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case Range:
		return json.Marshal(v.Num)
	case Categorical:
		return json.Marshal(v.Cat)
	case Color:
		return json.Marshal(v.RGB)
	}
	return nil, fmt.Errorf("cannot marshal value of kind %v", v.Kind)
}

// UnmarshalJSON infers the kind from the JSON type.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty genetics value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = CategoryValue(s)
	case '[':
		var rgb []int
		if err := json.Unmarshal(data, &rgb); err != nil {
			return fmt.Errorf("color must be three integers: %w", err)
		}
		if len(rgb) != 3 {
			return fmt.Errorf("color must have 3 channels, got %d", len(rgb))
		}
		*v = ColorValue(rgb[0], rgb[1], rgb[2])
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("unsupported genetics value %s", data)
		}
		*v = NumberValue(f)
	}
	return nil
}

// Map assigns values to trait names.
type Map map[string]Value

// Clone returns an independent copy of m.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// Keys returns the trait names in sorted order.
func (m Map) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// Equal reports whether both maps hold the same traits with equal values.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
