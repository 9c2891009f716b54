// Package catalog maps moods to search queries, curated references and
// per-mood fallback assets. The built-in catalog is embedded; deployments
// can override it with a YAML file.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embedded []byte

// CuratedItem is a hand-picked reference known to be reliable.
type CuratedItem struct {
	Reference       string  `yaml:"reference"`
	Title           string  `yaml:"title"`
	DurationSeconds float64 `yaml:"duration_seconds"`
}

// Mood holds the per-mood query and curated pools.
type Mood struct {
	Queries  []string      `yaml:"queries"`
	Curated  []CuratedItem `yaml:"curated"`
	Fallback string        `yaml:"fallback"`
}

// Catalog is the full mood catalog.
type Catalog struct {
	DefaultQueries  []string        `yaml:"default_queries"`
	DefaultFallback string          `yaml:"default_fallback"`
	DefaultCurated  []CuratedItem   `yaml:"default_curated"`
	Moods           map[string]Mood `yaml:"moods"`
}

// Load parses a catalog from YAML bytes.
func Load(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if c.DefaultFallback == "" {
		return nil, fmt.Errorf("catalog has no default fallback reference")
	}
	if len(c.DefaultQueries) == 0 {
		return nil, fmt.Errorf("catalog has no default queries")
	}
	return &c, nil
}

// LoadFile parses a catalog from a YAML file on disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Load(data)
}

// Default returns the embedded catalog. The embedded file is part of the
// build, so a parse failure is a programming error.
func Default() *Catalog {
	c, err := Load(embedded)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// MoodNames returns the catalog moods in sorted order.
func (c *Catalog) MoodNames() []string {
	names := make([]string, 0, len(c.Moods))
	for name := range c.Moods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether mood is in the catalog.
func (c *Catalog) Has(mood string) bool {
	_, ok := c.Moods[normalize(mood)]
	return ok
}

// QueriesFor returns the search queries for a mood. Unrecognized moods get
// the default query set. For non-english languages the language is appended
// to each query.
func (c *Catalog) QueriesFor(mood, language string) []string {
	queries := c.DefaultQueries
	if m, ok := c.Moods[normalize(mood)]; ok && len(m.Queries) > 0 {
		queries = m.Queries
	}
	language = normalize(language)
	if language == "" || language == "english" {
		return append([]string(nil), queries...)
	}
	out := make([]string, len(queries))
	for i, q := range queries {
		out[i] = q + " " + language
	}
	return out
}

// CuratedFor returns the curated pool for a mood: the mood's own items
// followed by the shared pool.
func (c *Catalog) CuratedFor(mood string) []CuratedItem {
	var items []CuratedItem
	if m, ok := c.Moods[normalize(mood)]; ok {
		items = append(items, m.Curated...)
	}
	items = append(items, c.DefaultCurated...)
	return items
}

// FallbackFor returns the guaranteed fallback reference for a mood.
func (c *Catalog) FallbackFor(mood string) string {
	if m, ok := c.Moods[normalize(mood)]; ok && m.Fallback != "" {
		return m.Fallback
	}
	return c.DefaultFallback
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
