package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
)

// rulesFile is the YAML shape of a category-rules file.
type rulesFile struct {
	Categories []ruleEntry `yaml:"categories"`
}

type ruleEntry struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
}

// LoadRules reads category rules from a YAML file, preserving file order.
// Rules get fresh ids; stable identity belongs to the storage layer.
func LoadRules(path string) ([]model.CategoryRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}

	rules := make([]model.CategoryRule, 0, len(rf.Categories))
	for _, e := range rf.Categories {
		if e.Name == "" {
			return nil, fmt.Errorf("rules file: category with empty name")
		}
		rules = append(rules, model.CategoryRule{
			ID:       uuid.New(),
			Name:     e.Name,
			Patterns: e.Patterns,
		})
	}
	return rules, nil
}

// SaveRules writes category rules to a YAML file.
func SaveRules(path string, rules []model.CategoryRule) error {
	rf := rulesFile{Categories: make([]ruleEntry, 0, len(rules))}
	for _, r := range rules {
		rf.Categories = append(rf.Categories, ruleEntry{Name: r.Name, Patterns: r.Patterns})
	}
	data, err := yaml.Marshal(&rf)
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	return nil
}

// DefaultRules seeds a new workspace with a small starter rule set.
func DefaultRules() []model.CategoryRule {
	return []model.CategoryRule{
		{ID: uuid.New(), Name: "Groceries", Patterns: []string{"rewe", "edeka", "aldi", "lidl", "whole foods"}},
		{ID: uuid.New(), Name: "Streaming", Patterns: []string{"netflix", "spotify", "disney plus"}},
		{ID: uuid.New(), Name: "Rent", Patterns: []string{"rent", "miete"}},
	}
}
