package llm

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/fodmapworks/fodmap-flow/internal/model"
)

// batchLine matches the plain-text fallback batch format, e.g. "2: high".
var batchLine = regexp.MustCompile(`^(\d+)[:.]\s*(\S+)`)

// cleanMarkdownWrapper strips a markdown code fence (with optional language
// tag) wrapped around a JSON payload. Models add these despite instructions.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	if idx := strings.Index(content, "\n"); idx >= 0 {
		// Drop the language tag line ("json", "text", ...).
		content = content[idx+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

type singleResponse struct {
	IsFood      *bool  `json:"is_food"`
	Status      string `json:"status"`
	Explanation string `json:"explanation"`
}

type batchItemResponse struct {
	IsFood      *bool  `json:"is_food"`
	Status      string `json:"status"`
	Explanation string `json:"explanation"`
	Index       int    `json:"index"`
}

// deriveIsFood infers the is_food flag from a status when the model did not
// state it explicitly: anything with a FODMAP level is food, NA is not, and
// UNKNOWN stays undetermined.
func deriveIsFood(status model.FodmapStatus) *bool {
	switch status {
	case model.StatusLow, model.StatusModerate, model.StatusHigh:
		return model.Bool(true)
	case model.StatusNA:
		return model.Bool(false)
	default:
		return nil
	}
}

// parseSingleResponse turns a raw model response into a fully-populated
// result. Structured JSON is preferred; a bare status token is accepted as a
// fallback. Unparseable input degrades to UNKNOWN, never to an error.
func parseSingleResponse(raw string) model.ClassificationResult {
	content := cleanMarkdownWrapper(raw)

	var parsed singleResponse
	if err := json.Unmarshal([]byte(content), &parsed); err == nil && parsed.Status != "" {
		status := model.ParseStatus(parsed.Status)
		isFood := parsed.IsFood
		if isFood == nil {
			isFood = deriveIsFood(status)
		}
		return model.ClassificationResult{
			Status:      status,
			IsFood:      isFood,
			Explanation: parsed.Explanation,
		}
	}

	// Some models answer with a bare status token despite the JSON
	// instruction.
	status := model.ParseStatus(content)
	if status == model.StatusUnknown {
		return model.UnknownResult("unrecognized model response")
	}
	return model.ClassificationResult{
		Status: status,
		IsFood: deriveIsFood(status),
	}
}

// parseBatchResponse maps a raw batch response onto the input products, keyed
// by identity hash. Indices in the response are 1-based and match the order
// products were enumerated in the prompt. Every input product appears in the
// output exactly once; entries the model omitted become UNKNOWN with a logged
// warning.
func parseBatchResponse(raw string, products []model.Product, logger *slog.Logger) map[string]model.ClassificationResult {
	byIndex := make(map[int]model.ClassificationResult, len(products))

	content := cleanMarkdownWrapper(raw)

	var items []batchItemResponse
	if err := json.Unmarshal([]byte(content), &items); err == nil && len(items) > 0 {
		for _, item := range items {
			status := model.ParseStatus(item.Status)
			isFood := item.IsFood
			if isFood == nil {
				isFood = deriveIsFood(status)
			}
			byIndex[item.Index] = model.ClassificationResult{
				Status:      status,
				IsFood:      isFood,
				Explanation: item.Explanation,
			}
		}
	} else {
		for _, line := range strings.Split(content, "\n") {
			matches := batchLine.FindStringSubmatch(strings.TrimSpace(line))
			if matches == nil {
				continue
			}
			index, err := strconv.Atoi(matches[1])
			if err != nil {
				continue
			}
			status := model.ParseStatus(matches[2])
			byIndex[index] = model.ClassificationResult{
				Status: status,
				IsFood: deriveIsFood(status),
			}
		}
	}

	results := make(map[string]model.ClassificationResult, len(products))
	for i, p := range products {
		result, ok := byIndex[i+1]
		if !ok {
			logger.Warn("missing classification in batch response",
				"index", i+1,
				"product", p.Name)
			result = model.UnknownResult("missing from batch response")
		}
		results[p.IdentityHash] = result
	}
	return results
}
