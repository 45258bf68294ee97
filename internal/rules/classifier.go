// Package rules implements the deterministic keyword-based FODMAP classifier.
package rules

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/fodmapworks/fodmap-flow/internal/model"
)

// KeywordSet holds the configured keywords for one FODMAP level. Synonyms map
// alternative spellings to a canonical keyword; both sides are matched.
type KeywordSet struct {
	Synonyms map[string]string `mapstructure:"synonyms"`
	Keywords []string          `mapstructure:"keywords"`
}

// Config holds the keyword lists for the rule-based classifier. The lists are
// configuration data, not code; DefaultConfig supplies the built-in Serbian
// product vocabulary.
type Config struct {
	Low    KeywordSet `mapstructure:"low"`
	High   KeywordSet `mapstructure:"high"`
	Ignore []string   `mapstructure:"ignore"`
}

// Classifier matches product names against configured keyword lists. It makes
// no I/O calls and never fails.
type Classifier struct {
	logger       *slog.Logger
	ignore       []string
	highPatterns []keywordPattern
	lowPatterns  []keywordPattern
}

type keywordPattern struct {
	re      *regexp.Regexp
	keyword string
}

// asciiFolder strips combining marks after canonical decomposition, reducing
// accented characters to their ASCII base.
var asciiFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// unitTokens matches standalone weight/volume/count tokens such as "500g",
// "200ml", "1l", "2kg" or bare numbers.
var unitTokens = regexp.MustCompile(`\b\d+g\b|\b\d+ml\b|\b\d+l\b|\b\d+kg\b|\b\d+\b`)

var whitespace = regexp.MustCompile(`\s+`)

// Serbian đ has no Unicode decomposition, so the fold above misses it.
var latinReplacer = strings.NewReplacer("đ", "dj", "Đ", "dj")

// New creates a rule-based classifier, compiling one word-boundary pattern per
// configured keyword. High-FODMAP patterns are kept separate because they are
// tested first.
func New(cfg Config, logger *slog.Logger) *Classifier {
	c := &Classifier{
		logger: logger,
		ignore: cfg.Ignore,
	}
	c.highPatterns = c.compile(cfg.High)
	c.lowPatterns = c.compile(cfg.Low)
	return c
}

func (c *Classifier) compile(set KeywordSet) []keywordPattern {
	keywords := make([]string, 0, len(set.Keywords)+len(set.Synonyms))
	keywords = append(keywords, set.Keywords...)
	for synonym := range set.Synonyms {
		keywords = append(keywords, synonym)
	}

	patterns := make([]keywordPattern, 0, len(keywords))
	for _, keyword := range keywords {
		normalized := c.normalize(keyword)
		if normalized == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(normalized) + `\b`)
		if err != nil {
			c.logger.Warn("skipping unmatchable keyword", "keyword", keyword, "error", err)
			continue
		}
		patterns = append(patterns, keywordPattern{re: re, keyword: keyword})
	}
	return patterns
}

// Classify returns LOW, HIGH or UNKNOWN for the given product name and
// category. The HIGH list is tested before the LOW list: a product mentioning
// both a high- and a low-FODMAP term is classified HIGH, the conservative
// default.
func (c *Classifier) Classify(name, category string) model.ClassificationResult {
	text := c.normalize(name + " " + category)

	if keyword, ok := match(text, c.highPatterns); ok {
		return model.ClassificationResult{
			Status:      model.StatusHigh,
			IsFood:      model.Bool(true),
			Explanation: fmt.Sprintf("matched high-FODMAP keyword %q", keyword),
		}
	}

	if keyword, ok := match(text, c.lowPatterns); ok {
		return model.ClassificationResult{
			Status:      model.StatusLow,
			IsFood:      model.Bool(true),
			Explanation: fmt.Sprintf("matched low-FODMAP keyword %q", keyword),
		}
	}

	return model.UnknownResult("no keyword match")
}

// ClassifyBatch classifies every product, keyed by identity hash. Exactly one
// result per input.
func (c *Classifier) ClassifyBatch(products []model.Product) map[string]model.ClassificationResult {
	results := make(map[string]model.ClassificationResult, len(products))
	for _, p := range products {
		results[p.IdentityHash] = c.Classify(p.Name, p.Category)
	}
	return results
}

func match(text string, patterns []keywordPattern) (string, bool) {
	for _, p := range patterns {
		if p.re.MatchString(text) {
			return p.keyword, true
		}
	}
	return "", false
}

// normalize folds the text to plain lowercase ASCII, strips ignore tokens and
// standalone numeric/unit tokens, and collapses whitespace. Keywords and
// product text go through the same normalization so they always compare in
// the same space.
func (c *Classifier) normalize(text string) string {
	lowered := strings.ToLower(text)
	folded, _, err := transform.String(asciiFolder, lowered)
	if err != nil {
		folded = lowered
	}
	folded = latinReplacer.Replace(folded)

	for _, token := range c.ignore {
		folded = strings.ReplaceAll(folded, strings.ToLower(token), "")
	}

	folded = unitTokens.ReplaceAllString(folded, "")

	return strings.TrimSpace(whitespace.ReplaceAllString(folded, " "))
}

// DefaultConfig returns the built-in keyword lists covering common Serbian
// product vocabulary.
func DefaultConfig() Config {
	return Config{
		Low: KeywordSet{
			Keywords: []string{
				"piletina", "ćuretina", "junetina", "riba", "jaja", "pirinač", "krompir",
				"šargarepa", "krastavac", "paradajz", "paprika", "tikvica", "spanać",
				"blitva", "banana", "borovnica", "jagoda", "kivi", "limun", "badem",
				"orah", "bez laktoze", "gauda", "kukuruz",
			},
			Synonyms: map[string]string{
				"riža":     "pirinač",
				"mrkva":    "šargarepa",
				"narandža": "pomorandža",
			},
		},
		High: KeywordSet{
			Keywords: []string{
				"pšenica", "raž", "ječam", "hleb", "testenina", "luk", "beli luk", "crni luk",
				"pasulj", "grašak", "leblebija", "sočivo", "jabuka", "kruška", "mango",
				"med", "fruktozni sirup", "mleko", "jogurt", "sladoled", "inulin",
			},
			Synonyms: map[string]string{
				"pavlaka":      "mleko",
				"slatko mleko": "mleko",
				"kiselo mleko": "jogurt",
			},
		},
	}
}
