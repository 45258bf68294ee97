package rules

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fodmapworks/fodmap-flow/internal/model"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	return New(DefaultConfig(), slog.Default())
}

func TestClassify(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name     string
		product  string
		category string
		want     model.FodmapStatus
	}{
		{name: "low keyword", product: "Banana", category: "Fruit", want: model.StatusLow},
		{name: "high keyword", product: "Pšenični hleb", category: "Bakery", want: model.StatusHigh},
		{name: "keyword from category", product: "Domaći proizvod", category: "jogurt", want: model.StatusHigh},
		{name: "synonym expansion low", product: "Riža 1kg", category: "", want: model.StatusLow},
		{name: "synonym expansion high", product: "Kisela pavlaka", category: "Dairy", want: model.StatusHigh},
		{name: "accent folding", product: "sargarepa", category: "", want: model.StatusLow},
		{name: "unit tokens stripped", product: "Pirinač 500g", category: "", want: model.StatusLow},
		{name: "no match", product: "Zubna pasta", category: "Higijena", want: model.StatusUnknown},
		{name: "word boundary respected", product: "bananin sok", category: "", want: model.StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.product, tt.category)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestClassifyHighWinsOverLow(t *testing.T) {
	c := newTestClassifier(t)

	// Mentions both a low (pirinač) and a high (mleko) keyword; the
	// conservative high classification wins.
	got := c.Classify("Pirinač i mleko", "")
	assert.Equal(t, model.StatusHigh, got.Status)
}

func TestClassifyResultFullyPopulated(t *testing.T) {
	c := newTestClassifier(t)

	matched := c.Classify("banana", "")
	require.NotNil(t, matched.IsFood)
	assert.True(t, *matched.IsFood)
	assert.NotEmpty(t, matched.Explanation)

	unknown := c.Classify("nepoznat artikal", "")
	assert.Nil(t, unknown.IsFood)
	assert.NotEmpty(t, unknown.Explanation)
}

func TestClassifyBatchCoversEveryInput(t *testing.T) {
	c := newTestClassifier(t)

	products := []model.Product{
		{IdentityHash: "name_1", Name: "banana"},
		{IdentityHash: "name_2", Name: "hleb"},
		{IdentityHash: "name_3", Name: "nepoznato"},
	}

	results := c.ClassifyBatch(products)
	require.Len(t, results, 3)
	assert.Equal(t, model.StatusLow, results["name_1"].Status)
	assert.Equal(t, model.StatusHigh, results["name_2"].Status)
	assert.Equal(t, model.StatusUnknown, results["name_3"].Status)
}

func TestClassifyIgnoreTokens(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Ignore = []string{"bio"}
	c := New(cfg, slog.Default())

	// "bio" is stripped before matching, so it cannot break a keyword match.
	got := c.Classify("bio banana", "")
	assert.Equal(t, model.StatusLow, got.Status)
}
