package category

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/model"
)

// sliceSource is an in-memory RuleSource with a load counter.
type sliceSource struct {
	rules []model.CategoryRule
	loads int
}

func (s *sliceSource) ListCategoryRules(_ context.Context) ([]model.CategoryRule, error) {
	s.loads++
	out := make([]model.CategoryRule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

func rule(name string, patterns ...string) model.CategoryRule {
	return model.CategoryRule{ID: uuid.New(), Name: name, Patterns: patterns}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	src := &sliceSource{rules: []model.CategoryRule{
		rule("Groceries", "rewe", "edeka"),
		rule("Streaming", "netflix"),
	}}
	m := NewMatcher(src)
	ctx := context.Background()

	got, err := m.Classify(ctx, "REWE Markt GmbH", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Groceries", got.Rule.Name)

	got, err = m.Classify(ctx, "PayPal", "NETFLIX.COM monthly")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Streaming", got.Rule.Name)

	got, err = m.Classify(ctx, "Unknown Shop", "nothing here")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClassify_LongestPatternFirstWithinRule(t *testing.T) {
	src := &sliceSource{rules: []model.CategoryRule{
		rule("Subscriptions", "amazon", "amazon prime"),
	}}
	m := NewMatcher(src)

	got, err := m.Classify(context.Background(), "AMAZON PRIME membership", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "amazon prime", got.Pattern, "longer pattern must win within the rule")

	got, err = m.Classify(context.Background(), "AMAZON marketplace", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "amazon", got.Pattern)
}

func TestClassify_FirstRuleWinsTies(t *testing.T) {
	src := &sliceSource{rules: []model.CategoryRule{
		rule("Shopping", "amazon"),
		rule("Subscriptions", "amazon prime"),
	}}
	m := NewMatcher(src)

	got, err := m.Classify(context.Background(), "AMAZON PRIME membership", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Shopping", got.Rule.Name, "stored rule order breaks ties between rules")
}

func TestClassify_WordBoundaries(t *testing.T) {
	src := &sliceSource{rules: []model.CategoryRule{rule("Fuel", "aral")}}
	m := NewMatcher(src)

	got, err := m.Classify(context.Background(), "ARAL Tankstelle 42", "")
	require.NoError(t, err)
	assert.NotNil(t, got)

	// "aral" inside another word is not a match.
	got, err = m.Classify(context.Background(), "Federal Services", "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInvalidate_RuleEditsAreNotObservedImplicitly(t *testing.T) {
	src := &sliceSource{rules: []model.CategoryRule{rule("Old", "acme")}}
	m := NewMatcher(src)
	ctx := context.Background()

	got, err := m.Classify(ctx, "ACME Corp", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Old", got.Rule.Name)
	assert.Equal(t, 1, src.loads)

	// Mutate the rule set behind the matcher's back.
	src.rules = []model.CategoryRule{rule("New", "acme")}

	got, err = m.Classify(ctx, "ACME Corp", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Old", got.Rule.Name, "compiled view must not observe edits")
	assert.Equal(t, 1, src.loads)

	m.Invalidate()
	got, err = m.Classify(ctx, "ACME Corp", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "New", got.Rule.Name)
	assert.Equal(t, 2, src.loads)
}

func TestClassifyBulk(t *testing.T) {
	src := &sliceSource{rules: []model.CategoryRule{
		rule("Groceries", "rewe"),
		rule("Streaming", "netflix"),
	}}
	m := NewMatcher(src)

	got, err := m.ClassifyBulk(context.Background(), []Subject{
		{Recipient: "REWE"},
		{Recipient: "Netflix"},
		{Recipient: "nobody"},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Groceries", got[0].Rule.Name)
	assert.Equal(t, "Streaming", got[1].Rule.Name)
	assert.Nil(t, got[2])
	assert.Equal(t, 1, src.loads, "bulk shares one compiled view")
}
