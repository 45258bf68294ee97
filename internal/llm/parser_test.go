package llm

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fodmapworks/fodmap-flow/internal/model"
)

func TestParseSingleResponse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantStatus model.FodmapStatus
		wantFood   *bool
	}{
		{
			name:       "json response",
			raw:        `{"status": "high", "is_food": true, "explanation": "wheat bread contains fructans"}`,
			wantStatus: model.StatusHigh,
			wantFood:   model.Bool(true),
		},
		{
			name:       "json wrapped in markdown fence",
			raw:        "```json\n{\"status\": \"low\", \"is_food\": true, \"explanation\": \"rice is low FODMAP\"}\n```",
			wantStatus: model.StatusLow,
			wantFood:   model.Bool(true),
		},
		{
			name:       "json without is_food derives from status",
			raw:        `{"status": "na", "explanation": "shampoo is not food"}`,
			wantStatus: model.StatusNA,
			wantFood:   model.Bool(false),
		},
		{
			name:       "bare token",
			raw:        "HIGH",
			wantStatus: model.StatusHigh,
			wantFood:   model.Bool(true),
		},
		{
			name:       "verbose sentence containing status",
			raw:        "The product is low FODMAP.",
			wantStatus: model.StatusLow,
			wantFood:   model.Bool(true),
		},
		{
			name:       "garbage degrades to unknown",
			raw:        "I cannot help with that.",
			wantStatus: model.StatusUnknown,
			wantFood:   nil,
		},
		{
			name:       "empty response",
			raw:        "",
			wantStatus: model.StatusUnknown,
			wantFood:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseSingleResponse(tt.raw)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantFood, result.IsFood)
		})
	}
}

func TestParseSingleResponseKeepsExplanation(t *testing.T) {
	result := parseSingleResponse(`{"status": "moderate", "is_food": true, "explanation": "small portions tolerated"}`)
	assert.Equal(t, model.StatusModerate, result.Status)
	assert.Equal(t, "small portions tolerated", result.Explanation)
}

func TestParseBatchResponseJSON(t *testing.T) {
	products := []model.Product{
		{IdentityHash: "h1", Name: "Pirinač"},
		{IdentityHash: "h2", Name: "Mleko"},
		{IdentityHash: "h3", Name: "Šampon"},
	}
	raw := "```json\n" + `[
		{"index": 1, "status": "low", "is_food": true, "explanation": "rice"},
		{"index": 2, "status": "high", "is_food": true, "explanation": "lactose"},
		{"index": 3, "status": "na", "is_food": false, "explanation": "shampoo"}
	]` + "\n```"

	results := parseBatchResponse(raw, products, slog.Default())
	require.Len(t, results, 3)
	assert.Equal(t, model.StatusLow, results["h1"].Status)
	assert.Equal(t, model.StatusHigh, results["h2"].Status)
	assert.Equal(t, model.StatusNA, results["h3"].Status)
	assert.Equal(t, model.Bool(false), results["h3"].IsFood)
}

func TestParseBatchResponsePlainLines(t *testing.T) {
	products := []model.Product{
		{IdentityHash: "h1", Name: "Pirinač"},
		{IdentityHash: "h2", Name: "Hleb"},
	}
	raw := "1: low\n2: high"

	results := parseBatchResponse(raw, products, slog.Default())
	require.Len(t, results, 2)
	assert.Equal(t, model.StatusLow, results["h1"].Status)
	assert.Equal(t, model.StatusHigh, results["h2"].Status)
}

func TestParseBatchResponseMissingEntries(t *testing.T) {
	products := []model.Product{
		{IdentityHash: "h1", Name: "Pirinač"},
		{IdentityHash: "h2", Name: "Hleb"},
		{IdentityHash: "h3", Name: "Jogurt"},
	}
	raw := `[{"index": 2, "status": "high", "is_food": true}]`

	results := parseBatchResponse(raw, products, slog.Default())
	require.Len(t, results, 3, "every input product must be present in the output")
	assert.Equal(t, model.StatusUnknown, results["h1"].Status)
	assert.Equal(t, model.StatusHigh, results["h2"].Status)
	assert.Equal(t, model.StatusUnknown, results["h3"].Status)
	assert.Equal(t, "missing from batch response", results["h1"].Explanation)
}

func TestParseBatchResponseGarbage(t *testing.T) {
	products := []model.Product{{IdentityHash: "h1", Name: "Pirinač"}}

	results := parseBatchResponse("no usable content here", products, slog.Default())
	require.Len(t, results, 1)
	assert.Equal(t, model.StatusUnknown, results["h1"].Status)
}

func TestCleanMarkdownWrapper(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"fence with language", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fence without language", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  ```json\n{\"a\": 1}\n```  ", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanMarkdownWrapper(tt.input))
		})
	}
}
