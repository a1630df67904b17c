// Package questionnaire holds the dimension catalog and maps question keys to dimensions.
package questionnaire

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed questionnaire.yaml
var defaultCatalog []byte

// ErrInvalidCatalog is returned when a catalog document cannot be used.
var ErrInvalidCatalog = errors.New("invalid questionnaire catalog")

// DimensionInfo describes one questionnaire dimension.
type DimensionInfo struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Title string `yaml:"title" json:"title"`
}

// Catalog is an immutable, ordered set of dimensions.
type Catalog struct {
	dims []DimensionInfo
	byID map[string]DimensionInfo
}

type document struct {
	Dimensions []DimensionInfo `yaml:"dimensions"`
}

// Parse builds a catalog from a YAML document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if len(doc.Dimensions) == 0 {
		return nil, fmt.Errorf("%w: no dimensions", ErrInvalidCatalog)
	}

	c := &Catalog{
		dims: make([]DimensionInfo, 0, len(doc.Dimensions)),
		byID: make(map[string]DimensionInfo, len(doc.Dimensions)),
	}
	names := make(map[string]struct{}, len(doc.Dimensions))
	for _, d := range doc.Dimensions {
		if d.ID == "" || d.Name == "" {
			return nil, fmt.Errorf("%w: dimension needs id and name", ErrInvalidCatalog)
		}
		if strings.Contains(d.ID, ".") {
			return nil, fmt.Errorf("%w: dimension id %q contains a dot", ErrInvalidCatalog, d.ID)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate dimension id %q", ErrInvalidCatalog, d.ID)
		}
		if _, dup := names[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate dimension name %q", ErrInvalidCatalog, d.Name)
		}
		names[d.Name] = struct{}{}
		c.byID[d.ID] = d
		c.dims = append(c.dims, d)
	}
	return c, nil
}

// Default returns the built-in six-dimension catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic("questionnaire: embedded catalog: " + err.Error())
	}
	return c
}

// Lookup returns the dimension registered under id.
func (c *Catalog) Lookup(id string) (DimensionInfo, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Known reports whether id is a catalog dimension.
func (c *Catalog) Known(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Dimensions returns the catalog in declaration order.
func (c *Catalog) Dimensions() []DimensionInfo {
	out := make([]DimensionInfo, len(c.dims))
	copy(out, c.dims)
	return out
}

// Names returns the snapshot names in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.dims))
	for i, d := range c.dims {
		out[i] = d.Name
	}
	return out
}

// Resolve maps a question key to the snapshot name of its dimension.
// Keys without a prefix or with an unknown prefix are not resolved.
func (c *Catalog) Resolve(key string) (DimensionInfo, bool) {
	id, ok := Dimension(key)
	if !ok {
		return DimensionInfo{}, false
	}
	return c.Lookup(id)
}
