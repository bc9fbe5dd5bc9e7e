// Package catalog loads the optional meters.yaml file describing known meters.
// Meters missing from the catalog still chart; they get a name derived from
// their ID and a palette color.
package catalog

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Meter is one entry of the catalog.
type Meter struct {
	ID          string `yaml:"meter_id"`
	Description string `yaml:"description"`
	Color       string `yaml:"color"`
	Unit        string `yaml:"output_unit"`
}

type file struct {
	Meters []Meter `yaml:"meters"`
}

// Catalog maps meter IDs to their entries. A nil *Catalog is empty.
type Catalog struct {
	meters map[string]Meter
}

// Load reads a catalog from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read meter catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse meter catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog. Entries must have a unique, non-empty meter_id.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	c := &Catalog{meters: make(map[string]Meter, len(f.Meters))}
	for i, m := range f.Meters {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, fmt.Errorf("meter %d has no meter_id", i)
		}
		if _, ok := c.meters[m.ID]; ok {
			return nil, fmt.Errorf("duplicate meter_id: %s", m.ID)
		}
		if m.Color != "" && !isHexColor(m.Color) {
			return nil, fmt.Errorf("meter %s: invalid color %q", m.ID, m.Color)
		}
		c.meters[m.ID] = m
	}
	return c, nil
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		if !unicode.Is(unicode.ASCII_Hex_Digit, r) {
			return false
		}
	}
	return true
}

// Len returns the number of meters in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.meters)
}

// Lookup returns the entry for id.
func (c *Catalog) Lookup(id string) (Meter, bool) {
	if c == nil {
		return Meter{}, false
	}
	m, ok := c.meters[id]
	return m, ok
}

// Name returns the display name of id: the catalog description when set,
// otherwise the ID in title case.
func (c *Catalog) Name(id string) string {
	if m, ok := c.Lookup(id); ok && strings.TrimSpace(m.Description) != "" {
		return strings.TrimSpace(m.Description)
	}
	return TitleCase(id)
}

// Color returns the configured color of id, if any.
func (c *Catalog) Color(id string) (string, bool) {
	if m, ok := c.Lookup(id); ok && m.Color != "" {
		return m.Color, true
	}
	return "", false
}

// TitleCase turns a meter ID like "eg_strom" into "Eg Strom".
func TitleCase(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		rs := []rune(strings.ToLower(w))
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	if len(words) == 0 {
		return id
	}
	return strings.Join(words, " ")
}
