package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/chronorm/internal/queryir"
)

// Scenario defines a query scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Schema lists the CUE files defining the portals.
	Schema []string `yaml:"schema"`

	// Fixtures lists flat files loaded before the queries run.
	Fixtures []string `yaml:"fixtures,omitempty"`

	// Now fixes the clock of every as-of attribute.
	Now string `yaml:"now,omitempty"`

	// Queries run in order against the loaded fixtures.
	Queries []Query `yaml:"queries"`
}

// Query is one find against a portal.
type Query struct {
	Name   string        `yaml:"name"`
	Portal string        `yaml:"portal"`
	Where  queryir.Where `yaml:"where,omitempty"`

	// AllVersions returns every milestoned version for as-of attributes
	// the where clause leaves unconstrained.
	AllVersions bool `yaml:"all_versions,omitempty"`

	Expect Expect `yaml:"expect"`
}

// Expect holds what a query must return. Nil fields are not checked.
type Expect struct {
	Keys  []string `yaml:"keys,omitempty"`
	Count *int     `yaml:"count,omitempty"`
	Error string   `yaml:"error,omitempty"`
}

func (e Expect) empty() bool {
	return e.Keys == nil && e.Count == nil && e.Error == ""
}

// LoadScenario reads and parses a scenario YAML file, resolving schema and
// fixture paths relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving schema and fixture paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, basePath)
}

// ParseScenario parses scenario YAML, resolving relative paths against
// basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict decoding catches typos like "querys:" vs "queries:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	resolve(scenario.Schema, basePath)
	resolve(scenario.Fixtures, basePath)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolve(paths []string, basePath string) {
	for i, p := range paths {
		if !filepath.IsAbs(p) && basePath != "" {
			paths[i] = filepath.Join(basePath, p)
		}
	}
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Schema) == 0 {
		return fmt.Errorf("schema list is required and must be non-empty")
	}
	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}

	for _, p := range append(append([]string{}, s.Schema...), s.Fixtures...) {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", p)
		}
	}

	if s.Now != "" {
		if _, err := parseNow(s.Now); err != nil {
			return fmt.Errorf("now: %w", err)
		}
	}

	seen := make(map[string]bool, len(s.Queries))
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if seen[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		seen[q.Name] = true
		if q.Portal == "" {
			return fmt.Errorf("queries[%d]: portal is required", i)
		}
		if q.Expect.empty() {
			return fmt.Errorf("queries[%d]: expect needs keys, count or error", i)
		}
		if q.Expect.Count != nil && *q.Expect.Count < 0 {
			return fmt.Errorf("queries[%d]: count must be non-negative", i)
		}
		if q.Where.Predicate != nil {
			if res := queryir.Validate(q.Where.Predicate); !res.Valid && q.Expect.Error == "" {
				return fmt.Errorf("queries[%d]: invalid where clause: %s", i, res.Problems[0])
			}
		}
	}
	return nil
}
