// Package checklist holds the fixed audit vocabulary shared by the audit form,
// the detail view and the command-line client.
package checklist

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var embeddedSchema []byte

var (
	ErrEmptySchema  = errors.New("checklist schema has no categories")
	ErrDuplicateKey = errors.New("duplicate checklist key")
	ErrUnknownKey   = errors.New("unknown checklist key")
)

// Item is one compliance criterion.
type Item struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
}

// Category groups items under a heading. Item order is display order.
type Category struct {
	Name  string `yaml:"name" json:"name"`
	Items []Item `yaml:"items" json:"items"`
}

// Schema is the ordered list of categories with a key index.
type Schema struct {
	Categories []Category `yaml:"categories" json:"categories"`

	index map[string]Item
}

var (
	defaultSchema *Schema
	defaultOnce   sync.Once
)

// Default returns the embedded schema. It panics if the embedded document is invalid,
// which can only happen at build time.
func Default() *Schema {
	defaultOnce.Do(func() {
		s, err := Parse(embeddedSchema)
		if err != nil {
			panic(fmt.Sprintf("embedded checklist schema: %v", err))
		}
		defaultSchema = s
	})
	return defaultSchema
}

// Parse decodes and validates a YAML schema document.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode checklist schema: %w", err)
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) build() error {
	if len(s.Categories) == 0 {
		return ErrEmptySchema
	}
	s.index = make(map[string]Item)
	for _, c := range s.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return errors.New("checklist category without name")
		}
		if len(c.Items) == 0 {
			return fmt.Errorf("checklist category %q has no items", c.Name)
		}
		for _, it := range c.Items {
			if strings.TrimSpace(it.Key) == "" || strings.TrimSpace(it.Label) == "" {
				return fmt.Errorf("checklist category %q: item needs key and label", c.Name)
			}
			if _, dup := s.index[it.Key]; dup {
				return fmt.Errorf("%w: %s", ErrDuplicateKey, it.Key)
			}
			s.index[it.Key] = it
		}
	}
	return nil
}

// Keys returns every item key in display order.
func (s *Schema) Keys() []string {
	keys := make([]string, 0, len(s.index))
	for _, c := range s.Categories {
		for _, it := range c.Items {
			keys = append(keys, it.Key)
		}
	}
	return keys
}

// Item looks up an item by key.
func (s *Schema) Item(key string) (Item, bool) {
	it, ok := s.index[key]
	return it, ok
}

// Category looks up a category by name.
func (s *Schema) Category(name string) (Category, bool) {
	for _, c := range s.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// NewEntries returns a fresh entry for every key, all NON CONFORME with no comment.
func (s *Schema) NewEntries() Entries {
	e := make(Entries, len(s.index))
	for key := range s.index {
		e[key] = Entry{Status: NonConforme}
	}
	return e
}

// Summary counts conforming items of one category. Missing keys count as NON CONFORME.
type Summary struct {
	Conformes int
	Total     int
}

func (s *Schema) Summary(c Category, entries Entries) Summary {
	sum := Summary{Total: len(c.Items)}
	for _, it := range c.Items {
		if entries.Get(it.Key).Status == Conforme {
			sum.Conformes++
		}
	}
	return sum
}
