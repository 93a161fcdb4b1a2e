// Package category classifies transactions against a mutable set of literal
// pattern rules.
package category

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
)

// RuleSource supplies the rule set. It is read when the compiled view is
// (re)built, never subscribed to.
type RuleSource interface {
	ListCategoryRules(ctx context.Context) ([]model.CategoryRule, error)
}

// Matcher holds a compiled view of the rule set. The view is rebuilt only on
// the first use after Invalidate; rule edits are never observed implicitly.
type Matcher struct {
	source RuleSource

	mu       sync.Mutex
	compiled []compiledRule
	valid    bool
}

type compiledRule struct {
	rule     model.CategoryRule
	sources  []string         // pattern text, longest first
	patterns []*regexp.Regexp // compiled form of sources, same order
}

// Match is a classification hit: the winning rule and the literal pattern
// that matched, kept as evidence.
type Match struct {
	Rule    model.CategoryRule
	Pattern string
}

// NewMatcher creates a Matcher over a rule source. Compilation is deferred
// to the first classification.
func NewMatcher(source RuleSource) *Matcher {
	return &Matcher{source: source}
}

// Invalidate discards the compiled view; the next classification rebuilds it
// from the source.
func (m *Matcher) Invalidate() {
	m.mu.Lock()
	m.valid = false
	m.mu.Unlock()
}

// Classify concatenates recipient and purpose and returns the first match,
// testing rules in stored order and each rule's patterns longest-first. A
// nil result means no match.
func (m *Matcher) Classify(ctx context.Context, recipient, purpose string) (*Match, error) {
	compiled, err := m.view(ctx)
	if err != nil {
		return nil, err
	}

	text := strings.ToLower(recipient + " " + purpose)
	for i := range compiled {
		for pi, re := range compiled[i].patterns {
			if re.MatchString(text) {
				return &Match{Rule: compiled[i].rule, Pattern: compiled[i].sources[pi]}, nil
			}
		}
	}
	return nil, nil
}

// Subject is one classification input.
type Subject struct {
	Recipient string
	Purpose   string
}

// ClassifyBulk applies Classify per item, sharing one compiled view.
func (m *Matcher) ClassifyBulk(ctx context.Context, items []Subject) ([]*Match, error) {
	results := make([]*Match, len(items))
	for i, it := range items {
		match, err := m.Classify(ctx, it.Recipient, it.Purpose)
		if err != nil {
			return nil, err
		}
		results[i] = match
	}
	return results, nil
}

func (m *Matcher) view(ctx context.Context) ([]compiledRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		return m.compiled, nil
	}

	rules, err := m.source.ListCategoryRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading category rules: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		cr := compiledRule{rule: rule}
		patterns := append([]string(nil), rule.Patterns...)
		sort.SliceStable(patterns, func(i, j int) bool {
			return len(patterns[i]) > len(patterns[j])
		})
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(p) + `\b`)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q of rule %q: %w", p, rule.Name, err)
			}
			cr.sources = append(cr.sources, p)
			cr.patterns = append(cr.patterns, re)
		}
		compiled = append(compiled, cr)
	}

	m.compiled = compiled
	m.valid = true
	return compiled, nil
}
