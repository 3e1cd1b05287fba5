package genetics

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pthm-cable/shellrace/simerr"
)

// Traits carried by the compact genome string.
const (
	BodyPatternTrait  = "body_pattern_type"
	ShellPatternTrait = "shell_pattern_type"
	LimbShapeTrait    = "limb_shape"
	ShellColorTrait   = "shell_base_color"
)

// Codec converts trait maps to the compact genome string
// B{body}-S{shell}-P{limb}-C{RRGGBB} used by spectator clients and back.
// Indices refer to the option order of the schema's categorical genes.
type Codec struct {
	body, shell, limb Gene
	color             Gene
}

// NewCodec builds a codec for schema. The schema must define the four
// encoded traits with the expected kinds.
func NewCodec(schema *Schema) (*Codec, error) {
	c := &Codec{}
	targets := []struct {
		name string
		kind Kind
		dst  *Gene
	}{
		{BodyPatternTrait, Categorical, &c.body},
		{ShellPatternTrait, Categorical, &c.shell},
		{LimbShapeTrait, Categorical, &c.limb},
		{ShellColorTrait, Color, &c.color},
	}
	for _, t := range targets {
		g, ok := schema.Lookup(t.name)
		if !ok {
			return nil, simerr.Validationf(t.name, "codec trait missing from schema")
		}
		if g.Kind != t.kind {
			return nil, simerr.Validationf(t.name, "codec expects %v gene, schema has %v", t.kind, g.Kind)
		}
		*t.dst = g
	}
	return c, nil
}

// Encode returns the genome string for m. Missing traits use the schema
// default.
func (c *Codec) Encode(m Map) string {
	rgb := c.value(m, c.color).RGB
	return fmt.Sprintf("B%d-S%d-P%d-C%02X%02X%02X",
		c.index(m, c.body),
		c.index(m, c.shell),
		c.index(m, c.limb),
		rgb[0], rgb[1], rgb[2],
	)
}

func (c *Codec) value(m Map, g Gene) Value {
	if v, ok := m[g.Name]; ok && g.Contains(v) {
		return v
	}
	return g.Default
}

func (c *Codec) index(m Map, g Gene) int {
	return max(slices.Index(g.Options, c.value(m, g).Cat), 0)
}

// Decode parses a genome string into a partial trait map holding the four
// encoded traits.
func (c *Codec) Decode(genome string) (Map, error) {
	m := make(Map, 4)
	for part := range strings.SplitSeq(genome, "-") {
		if part == "" {
			continue
		}
		prefix, body := part[0], part[1:]
		switch prefix {
		case 'B':
			if err := c.decodeOption(m, c.body, body); err != nil {
				return nil, err
			}
		case 'S':
			if err := c.decodeOption(m, c.shell, body); err != nil {
				return nil, err
			}
		case 'P':
			if err := c.decodeOption(m, c.limb, body); err != nil {
				return nil, err
			}
		case 'C':
			rgb, err := parseHexColor(body)
			if err != nil {
				return nil, simerr.Validationf(c.color.Name, "%v", err)
			}
			m[c.color.Name] = rgb
		default:
			return nil, simerr.Validationf("genome", "unknown segment %q", part)
		}
	}
	return m, nil
}

func (c *Codec) decodeOption(m Map, g Gene, digits string) error {
	idx, err := strconv.Atoi(digits)
	if err != nil || idx < 0 || idx >= len(g.Options) {
		return simerr.Validationf(g.Name, "invalid option index %q", digits)
	}
	m[g.Name] = CategoryValue(g.Options[idx])
	return nil
}

func parseHexColor(s string) (Value, error) {
	if len(s) != 6 {
		return Value{}, fmt.Errorf("color %q must be 6 hex digits", s)
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Value{}, fmt.Errorf("color %q: %w", s, err)
	}
	return ColorValue(int(n>>16&0xFF), int(n>>8&0xFF), int(n&0xFF)), nil
}
