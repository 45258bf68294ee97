package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fodmapworks/fodmap-flow/internal/model"
)

const (
	defaultBatchSize    = 20
	defaultWaitAttempts = 5
	defaultWaitDelay    = 5 * time.Second
)

// Classifier classifies products by prompting an external generative-text
// API. Every external call is gated by a shared WindowLimiter; the configured
// RatePolicy decides whether an exhausted budget rejects to UNKNOWN or polls
// for headroom.
type Classifier struct {
	client       Client
	limiter      *WindowLimiter
	logger       *slog.Logger
	sleep        func(context.Context, time.Duration) error
	configErr    string
	policy       RatePolicy
	batchSize    int
	waitAttempts int
	waitDelay    time.Duration
	batchDelay   time.Duration
}

// NewClassifier creates an AI classifier. A missing or invalid provider
// configuration does not fail construction: the classifier degrades to
// returning UNKNOWN with an explanatory note, so one misconfigured dependency
// never blocks the pipeline.
func NewClassifier(cfg Config, limiter *WindowLimiter, logger *slog.Logger) *Classifier {
	c := &Classifier{
		limiter:      limiter,
		logger:       logger,
		policy:       cfg.RatePolicy,
		batchSize:    cfg.BatchSize,
		waitAttempts: cfg.RateWaitAttempts,
		waitDelay:    cfg.RateWaitDelay,
		batchDelay:   cfg.BatchDelay,
	}
	if c.policy == "" {
		c.policy = RatePolicyReject
	}
	if c.batchSize <= 0 {
		c.batchSize = defaultBatchSize
	}
	if c.waitAttempts <= 0 {
		c.waitAttempts = defaultWaitAttempts
	}
	if c.waitDelay <= 0 {
		c.waitDelay = defaultWaitDelay
	}
	if c.limiter == nil {
		c.limiter = NewWindowLimiter(cfg.RateLimit, cfg.RateWindow)
	}

	client, err := NewClient(cfg)
	if err != nil {
		logger.Warn("AI classifier disabled", "error", err)
		c.configErr = fmt.Sprintf("AI classification unavailable: %v", err)
		return c
	}
	c.client = client
	return c
}

// Classify classifies a single product. Never returns an error: network and
// parse failures degrade to UNKNOWN with the failure in the explanation.
func (c *Classifier) Classify(ctx context.Context, product model.Product) model.ClassificationResult {
	if c.configErr != "" {
		return model.UnknownResult(c.configErr)
	}

	if err := c.acquireBudget(ctx); err != nil {
		c.logger.Warn("rate limit reached, falling back to UNKNOWN",
			"product", product.Name,
			"remaining", c.limiter.Remaining())
		return model.UnknownResult("rate limit reached")
	}

	response, err := c.client.Generate(ctx, buildPrompt(product))
	if err != nil {
		c.logger.Error("classification failed",
			"product", product.Name,
			"error", err)
		return model.UnknownResult(fmt.Sprintf("classification failed: %v", err))
	}

	result := parseSingleResponse(response)
	c.logger.Debug("product classified",
		"product", product.Name,
		"status", result.Status)
	return result
}

// ClassifyBatch classifies products in bounded batches, one external call per
// batch. The returned map contains exactly one result per input product,
// keyed by identity hash. A transport failure of a batch call propagates as
// an error; the caller owns the fallback for those records.
func (c *Classifier) ClassifyBatch(ctx context.Context, products []model.Product) (map[string]model.ClassificationResult, error) {
	if len(products) == 0 {
		return map[string]model.ClassificationResult{}, nil
	}

	if c.configErr != "" {
		results := make(map[string]model.ClassificationResult, len(products))
		for _, p := range products {
			results[p.IdentityHash] = model.UnknownResult(c.configErr)
		}
		return results, nil
	}

	// A batch of one degrades to individual classification.
	if len(products) == 1 {
		return map[string]model.ClassificationResult{
			products[0].IdentityHash: c.Classify(ctx, products[0]),
		}, nil
	}

	results := make(map[string]model.ClassificationResult, len(products))

	for start := 0; start < len(products); start += c.batchSize {
		end := min(start+c.batchSize, len(products))
		chunk := products[start:end]

		// Smooth the call rate between successive external calls.
		if start > 0 && c.batchDelay > 0 {
			if err := c.sleepFor(ctx, c.batchDelay); err != nil {
				return nil, err
			}
		}

		if err := c.acquireBudget(ctx); err != nil {
			c.logger.Warn("rate limit reached for batch, falling back to UNKNOWN",
				"batch_size", len(chunk))
			for _, p := range chunk {
				results[p.IdentityHash] = model.UnknownResult("rate limit reached")
			}
			continue
		}

		response, err := c.client.Generate(ctx, buildBatchPrompt(chunk))
		if err != nil {
			return nil, fmt.Errorf("batch classification failed: %w", err)
		}

		for hash, result := range parseBatchResponse(response, chunk, c.logger) {
			results[hash] = result
		}
	}

	return results, nil
}

// acquireBudget consumes one rate-limit slot according to the configured
// policy. An error means no slot could be obtained; it is never surfaced to
// callers as a classification error.
func (c *Classifier) acquireBudget(ctx context.Context) error {
	if c.policy == RatePolicyWait {
		return c.limiter.Wait(ctx, c.waitAttempts, c.waitDelay, c.sleep)
	}
	if !c.limiter.Allow() {
		return fmt.Errorf("call budget exhausted")
	}
	return nil
}

func (c *Classifier) sleepFor(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// buildPrompt creates the single-product classification prompt. Product names
// come from Serbian-language retail catalogs, so the prompt front-loads a
// translation dictionary.
func buildPrompt(product model.Product) string {
	return fmt.Sprintf(`You are a FODMAP classification expert. Classify the following product based on FODMAP content.

CRITICAL: Product names are in Serbian/Bosnian/Croatian/Montenegrin language. Translate and understand them first.

Translation hints:
- "hleb/hljeb/kruh" = bread (HIGH if wheat, LOW if gluten-free)
- "mlijeko/mleko" = milk (HIGH FODMAP due to lactose), "jogurt" = yogurt (HIGH)
- "luk" = onion (HIGH), "beli luk" = garlic (HIGH)
- "pasulj" = beans (HIGH), "sočivo" = lentils (HIGH)
- "jabuka" = apple (HIGH), "kruška" = pear (HIGH)
- "pirinač/riža" = rice (LOW), "krompir/krumpir" = potato (LOW)
- "bezglutenski" = gluten-free (usually LOW)

Product Name: %s
Category: %s

Classification rules:
- LOW: safe for people with IBS (below FODMAP thresholds)
- MODERATE: tolerable in small portions only
- HIGH: significant FODMAP content (fructans, lactose, fructose, polyols)
- NA: non-food products (cosmetics, cleaning products, household items)
- UNKNOWN: food whose FODMAP level cannot be determined with confidence

Respond with a JSON object only:
{"status": "low|moderate|high|na|unknown", "is_food": true|false, "explanation": "one short sentence"}`,
		product.Name,
		product.Category)
}

// buildBatchPrompt creates the batch classification prompt with a stable
// 1-based enumeration of products.
func buildBatchPrompt(products []model.Product) string {
	var list strings.Builder
	for i, p := range products {
		fmt.Fprintf(&list, "%d. Name: %s\n   Category: %s\n", i+1, p.Name, p.Category)
	}

	return fmt.Sprintf(`You are a FODMAP classification expert. Classify each product based on FODMAP content.

CONTEXT: These are real products sold on a delivery app in Serbia. Product names are in Serbian/Bosnian/Croatian/Montenegrin languages. Use the category field to help understand the product type.

Key Serbian food terms:
- "pšenica/pšenična" = wheat (HIGH), "ječam" = barley (HIGH)
- "mlijeko/mleko" = milk (HIGH), "jogurt" = yogurt (HIGH)
- "luk" = onion (HIGH), "beli luk/češnjak" = garlic (HIGH)
- "pasulj" = beans (HIGH), "sočivo" = lentils (HIGH)
- "pirinač/riža" = rice (LOW), "krompir" = potato (LOW)
- "meso" = meat (LOW), "riba" = fish (LOW)
- "bezglutenski/gluten free" = gluten-free (usually LOW)

Products to classify:
%s
Classification rules:
- LOW: safe for IBS (rice, potatoes, meat, fish, eggs, most vegetables, gluten-free products)
- MODERATE: tolerable in small portions only
- HIGH: significant FODMAPs (wheat products, dairy, onion, garlic, legumes, apples, pears)
- NA: non-food items (cosmetics, cleaning products, toiletries, household items)
- UNKNOWN: food with unclear ingredients or complex formulations

Respond ONLY with a JSON array, one object per product, using the listed index:
[{"index": 1, "status": "low", "is_food": true, "explanation": "one short sentence"}]

Be decisive based on category context and main ingredients.`, list.String())
}
