// Package genetics defines the heritable trait schema and the engine that
// generates, inherits and mutates trait maps.
package genetics

import (
	"fmt"
	"math"
	"slices"

	"github.com/pthm-cable/shellrace/simerr"
)

// Kind is the value domain of a trait.
type Kind uint8

const (
	Range       Kind = iota // continuous value in [Min, Max]
	Categorical             // one of Options
	Color                   // RGB triple, channels in [0, 255]
)

var kindNames = [...]string{"range", "categorical", "color"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// MarshalText encodes the kind as its name.
func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("unknown gene kind %d", uint8(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown gene kind %q", text)
}

// Gene describes one trait and its valid domain.
type Gene struct {
	Name        string   `json:"name"`
	Kind        Kind     `json:"kind"`
	Min         float64  `json:"min,omitempty"`
	Max         float64  `json:"max,omitempty"`
	Options     []string `json:"options,omitempty"`
	Default     Value    `json:"default"`
	Description string   `json:"description"`
}

// Contains reports whether v lies in the gene's domain.
func (g Gene) Contains(v Value) bool {
	if v.Kind != g.Kind {
		return false
	}
	switch g.Kind {
	case Range:
		return !math.IsNaN(v.Num) && v.Num >= g.Min && v.Num <= g.Max
	case Categorical:
		return slices.Contains(g.Options, v.Cat)
	case Color:
		for _, c := range v.RGB {
			if c < 0 || c > 255 {
				return false
			}
		}
		return true
	}
	return false
}

func (g Gene) check() error {
	if g.Name == "" {
		return simerr.Validationf("gene", "name must not be empty")
	}
	switch g.Kind {
	case Range:
		if math.IsNaN(g.Min) || math.IsNaN(g.Max) || g.Min > g.Max {
			return simerr.Validationf(g.Name, "invalid range [%v, %v]", g.Min, g.Max)
		}
	case Categorical:
		if len(g.Options) == 0 {
			return simerr.Validationf(g.Name, "categorical gene needs at least one option")
		}
	case Color:
	default:
		return simerr.Validationf(g.Name, "unknown kind %v", g.Kind)
	}
	if !g.Contains(g.Default) {
		return simerr.Validationf(g.Name, "default %v outside domain", g.Default)
	}
	return nil
}

// Schema is an immutable registry of genes, ordered by registration.
// It is safe to share between goroutines.
type Schema struct {
	genes []Gene
	index map[string]int
}

// NewSchema builds a schema from the given genes.
// Names must be unique and every default must lie in its gene's domain.
func NewSchema(genes ...Gene) (*Schema, error) {
	s := &Schema{
		genes: make([]Gene, 0, len(genes)),
		index: make(map[string]int, len(genes)),
	}
	for _, g := range genes {
		if err := g.check(); err != nil {
			return nil, err
		}
		if _, dup := s.index[g.Name]; dup {
			return nil, simerr.Validationf(g.Name, "duplicate gene")
		}
		g.Options = slices.Clone(g.Options)
		s.index[g.Name] = len(s.genes)
		s.genes = append(s.genes, g)
	}
	return s, nil
}

// Len returns the number of genes.
func (s *Schema) Len() int {
	return len(s.genes)
}

// Names returns the gene names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.genes))
	for i, g := range s.genes {
		names[i] = g.Name
	}
	return names
}

// Genes returns a copy of every gene in schema order.
func (s *Schema) Genes() []Gene {
	out := make([]Gene, len(s.genes))
	for i, g := range s.genes {
		g.Options = slices.Clone(g.Options)
		out[i] = g
	}
	return out
}

// Lookup returns the gene registered under name.
func (s *Schema) Lookup(name string) (Gene, bool) {
	i, ok := s.index[name]
	if !ok {
		return Gene{}, false
	}
	g := s.genes[i]
	g.Options = slices.Clone(g.Options)
	return g, true
}

// Validate reports whether v is a valid value for the named trait.
// Unknown traits are never valid.
func (s *Schema) Validate(name string, v Value) bool {
	i, ok := s.index[name]
	if !ok {
		return false
	}
	return s.genes[i].Contains(v)
}

// ValidateMap checks every entry of m against the schema.
// Traits the schema omits are allowed to be absent from m.
func (s *Schema) ValidateMap(m Map) error {
	for _, name := range m.Keys() {
		i, ok := s.index[name]
		if !ok {
			return simerr.Validationf(name, "unknown trait")
		}
		if v := m[name]; !s.genes[i].Contains(v) {
			return simerr.Validationf(name, "value %v outside domain", v)
		}
	}
	return nil
}

// Defaults returns a map holding every gene's default value.
func (s *Schema) Defaults() Map {
	m := make(Map, len(s.genes))
	for _, g := range s.genes {
		m[g.Name] = g.Default
	}
	return m
}

// DefaultSchema returns the turtle appearance schema: shell, body, head,
// leg and eye traits.
func DefaultSchema() *Schema {
	s, err := NewSchema(defaultGenes()...)
	if err != nil {
		panic(fmt.Sprintf("genetics: default schema is invalid: %v", err))
	}
	return s
}

func defaultGenes() []Gene {
	return []Gene{
		// Shell
		{Name: "shell_base_color", Kind: Color, Default: ColorValue(34, 139, 34), Description: "Primary shell color"},
		{Name: "shell_pattern_type", Kind: Categorical, Options: []string{"hex", "spots", "stripes", "rings"}, Default: CategoryValue("hex"), Description: "Shell pattern type"},
		{Name: "shell_pattern_color", Kind: Color, Default: ColorValue(255, 255, 255), Description: "Shell pattern color"},
		{Name: "pattern_color", Kind: Color, Default: ColorValue(255, 255, 255), Description: "Pattern color used by renderers"},
		{Name: "shell_pattern_density", Kind: Range, Min: 0.1, Max: 1.0, Default: NumberValue(0.5), Description: "Pattern density"},
		{Name: "shell_pattern_opacity", Kind: Range, Min: 0.3, Max: 1.0, Default: NumberValue(0.8), Description: "Pattern transparency"},
		{Name: "shell_size_modifier", Kind: Range, Min: 0.5, Max: 1.5, Default: NumberValue(1.0), Description: "Shell size scaling"},

		// Body
		{Name: "body_base_color", Kind: Color, Default: ColorValue(107, 142, 35), Description: "Primary body color"},
		{Name: "body_pattern_type", Kind: Categorical, Options: []string{"solid", "mottled", "speckled", "marbled"}, Default: CategoryValue("solid"), Description: "Body pattern type"},
		{Name: "body_pattern_color", Kind: Color, Default: ColorValue(85, 107, 47), Description: "Body pattern color"},
		{Name: "body_pattern_density", Kind: Range, Min: 0.1, Max: 1.0, Default: NumberValue(0.3), Description: "Body pattern density"},

		// Head
		{Name: "head_size_modifier", Kind: Range, Min: 0.7, Max: 1.3, Default: NumberValue(1.0), Description: "Head size scaling"},
		{Name: "head_color", Kind: Color, Default: ColorValue(139, 90, 43), Description: "Head color"},

		// Legs
		{Name: "leg_length", Kind: Range, Min: 0.5, Max: 1.5, Default: NumberValue(1.0), Description: "Leg length scaling"},
		{Name: "limb_shape", Kind: Categorical, Options: []string{"flippers", "feet", "fins"}, Default: CategoryValue("flippers"), Description: "Limb shape type"},
		{Name: "leg_thickness_modifier", Kind: Range, Min: 0.7, Max: 1.3, Default: NumberValue(1.0), Description: "Leg thickness"},
		{Name: "leg_color", Kind: Color, Default: ColorValue(101, 67, 33), Description: "Leg color"},

		// Eyes
		{Name: "eye_color", Kind: Color, Default: ColorValue(0, 0, 0), Description: "Eye color"},
		{Name: "eye_size_modifier", Kind: Range, Min: 0.8, Max: 1.2, Default: NumberValue(1.0), Description: "Eye size scaling"},
	}
}
