// Package variables maps human-friendly aliases to Census statistical
// variable codes and records which datasets each year publishes.
package variables

import (
	_ "embed"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Population is the alias normalizable variables are divided by.
const Population = "population"

//go:embed aliases.yaml
var builtin []byte

// Alias describes one catalog entry.
type Alias struct {
	Name         string `yaml:"-" json:"name"`
	Variable     string `yaml:"variable" json:"variable"`
	Normalizable bool   `yaml:"normalizable" json:"normalizable"`
	Description  string `yaml:"description" json:"description,omitempty"`
}

// Catalog resolves aliases and dataset support. It is read-only after
// construction and safe for concurrent use.
type Catalog struct {
	aliases map[string]Alias
	years   map[int][]string
}

type catalogFile struct {
	Catalog struct {
		Years   map[int][]string `yaml:"years"`
		Aliases map[string]Alias `yaml:"aliases"`
	} `yaml:"catalog"`
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog from a YAML file. An empty path returns Default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "variables: read catalog %s", path)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "variables: parse catalog")
	}
	if _, ok := f.Catalog.Aliases[Population]; !ok {
		return nil, eris.New("variables: catalog has no population alias")
	}
	c := &Catalog{
		aliases: make(map[string]Alias, len(f.Catalog.Aliases)),
		years:   f.Catalog.Years,
	}
	for name, a := range f.Catalog.Aliases {
		if a.Variable == "" {
			return nil, eris.Errorf("variables: alias %q has no variable", name)
		}
		a.Name = name
		c.aliases[name] = a
	}
	return c, nil
}

// Resolve returns the variable code for an alias, or the input unchanged
// when it is not an alias.
func (c *Catalog) Resolve(name string) string {
	if a, ok := c.aliases[name]; ok {
		return a.Variable
	}
	return name
}

// IsNormalizable reports whether name is an alias flagged for division by
// population.
func (c *Catalog) IsNormalizable(name string) bool {
	return c.aliases[name].Normalizable
}

// WithPopulation returns vars with the population alias appended once when
// any entry is normalizable and population is not already requested.
// vars itself is not modified.
func (c *Catalog) WithPopulation(vars []string) []string {
	out := append([]string(nil), vars...)
	needs := false
	for _, v := range vars {
		if v == Population || v == c.Resolve(Population) {
			return out
		}
		if c.IsNormalizable(v) {
			needs = true
		}
	}
	if needs {
		out = append(out, Population)
	}
	return out
}

// Aliases lists catalog entries sorted by name.
func (c *Catalog) Aliases() []Alias {
	out := make([]Alias, 0, len(c.aliases))
	for _, a := range c.aliases {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Datasets returns the datasets published for year.
func (c *Catalog) Datasets(year int) []string {
	return c.years[year]
}

// Supports reports whether api is published for year.
func (c *Catalog) Supports(year int, api string) bool {
	for _, d := range c.years[year] {
		if d == api {
			return true
		}
	}
	return false
}

// LatestYear returns the most recent year in the catalog.
func (c *Catalog) LatestYear() int {
	latest := 0
	for y := range c.years {
		latest = max(latest, y)
	}
	return latest
}

// CheckSupport logs a warning when api does not appear to be published for
// year. The request still goes out; the statistics API has the final word.
func (c *Catalog) CheckSupport(year int, api string) bool {
	if c.Supports(year, api) {
		return true
	}
	zap.L().Warn("dataset does not appear to support year",
		zap.String("api", api),
		zap.Int("year", year),
		zap.Strings("published", c.Datasets(year)),
	)
	return false
}
