package pipeline

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed examples.yaml
var examplesYAML []byte

// ExampleMatcher selects a worked example for a concept. An empty result
// means no example is added to the prompt.
type ExampleMatcher interface {
	Match(concept string) string
}

// Example is one catalog entry.
type Example struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Code     string   `yaml:"code"`
}

type exampleCatalog struct {
	Examples []Example `yaml:"examples"`
}

// KeywordMatcher matches the first example whose keyword is contained in the
// lowercased concept.
type KeywordMatcher struct {
	examples []Example
}

// NewKeywordMatcher builds a matcher over examples, preserving their order.
func NewKeywordMatcher(examples []Example) *KeywordMatcher {
	out := make([]Example, 0, len(examples))
	for _, ex := range examples {
		kw := make([]string, 0, len(ex.Keywords))
		for _, k := range ex.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kw = append(kw, k)
			}
		}
		ex.Keywords = kw
		out = append(out, ex)
	}
	return &KeywordMatcher{examples: out}
}

// LoadKeywordMatcher parses a YAML catalog.
func LoadKeywordMatcher(data []byte) (*KeywordMatcher, error) {
	var cat exampleCatalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse example catalog: %w", err)
	}
	return NewKeywordMatcher(cat.Examples), nil
}

// DefaultMatcher returns the matcher over the built-in catalog.
func DefaultMatcher() *KeywordMatcher {
	m, err := LoadKeywordMatcher(examplesYAML)
	if err != nil {
		panic(err)
	}
	return m
}

// Match implements ExampleMatcher.
func (m *KeywordMatcher) Match(concept string) string {
	c := strings.ToLower(concept)
	for _, ex := range m.examples {
		for _, k := range ex.Keywords {
			if strings.Contains(c, k) {
				return ex.Code
			}
		}
	}
	return ""
}

// Names lists the catalog entries in match order.
func (m *KeywordMatcher) Names() []string {
	names := make([]string, len(m.examples))
	for i, ex := range m.examples {
		names[i] = ex.Name
	}
	return names
}
