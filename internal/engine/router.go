package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fodmapworks/fodmap-flow/internal/llm"
	"github.com/fodmapworks/fodmap-flow/internal/model"
	"github.com/fodmapworks/fodmap-flow/internal/rules"
)

// Mode selects the active classification strategy.
type Mode string

// Supported classifier modes.
const (
	ModeRules    Mode = "rules"
	ModeAI       Mode = "ai"
	ModeCachedAI Mode = "cached-ai"
)

// ParseMode validates a configured mode string.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeRules:
		return ModeRules, nil
	case ModeAI:
		return ModeAI, nil
	case ModeCachedAI, "":
		return ModeCachedAI, nil
	default:
		return "", fmt.Errorf("unsupported classifier mode: %q", raw)
	}
}

// RouterConfig carries everything needed to build any strategy.
type RouterConfig struct {
	Rules rules.Config
	LLM   llm.Config
	Mode  string
}

// ClassifierRouter selects one classification strategy at composition time
// and delegates all classification calls to it. It holds no state beyond the
// chosen strategy.
type ClassifierRouter struct {
	active Classifier
	cached *llm.CachedClassifier
	mode   Mode
}

// NewRouter builds the configured strategy. The mode is validated once, here;
// there is no re-binding mid-run.
func NewRouter(cfg RouterConfig, logger *slog.Logger) (*ClassifierRouter, error) {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	router := &ClassifierRouter{mode: mode}
	switch mode {
	case ModeRules:
		router.active = &ruleStrategy{rules: rules.New(cfg.Rules, logger)}
	case ModeAI:
		router.active = llm.NewClassifier(cfg.LLM, nil, logger)
	case ModeCachedAI:
		ai := llm.NewClassifier(cfg.LLM, nil, logger)
		router.cached = llm.NewCachedClassifier(ai, cfg.LLM.CacheTTL, logger)
		router.active = router.cached
	}

	logger.Info("classifier strategy selected", "mode", mode)
	return router, nil
}

// Mode returns the strategy selected at construction.
func (r *ClassifierRouter) Mode() Mode {
	return r.mode
}

// Classify delegates to the active strategy.
func (r *ClassifierRouter) Classify(ctx context.Context, product model.Product) model.ClassificationResult {
	return r.active.Classify(ctx, product)
}

// ClassifyBatch delegates to the active strategy.
func (r *ClassifierRouter) ClassifyBatch(ctx context.Context, products []model.Product) (map[string]model.ClassificationResult, error) {
	return r.active.ClassifyBatch(ctx, products)
}

// InvalidateCache drops all cached results. A no-op for uncached strategies.
func (r *ClassifierRouter) InvalidateCache() {
	if r.cached != nil {
		r.cached.InvalidateAll()
	}
}

// Close releases strategy resources.
func (r *ClassifierRouter) Close() {
	if r.cached != nil {
		r.cached.Close()
	}
}

// ruleStrategy adapts the keyword classifier to the Classifier interface.
// Rule evaluation makes no I/O calls and never fails.
type ruleStrategy struct {
	rules *rules.Classifier
}

func (s *ruleStrategy) Classify(_ context.Context, product model.Product) model.ClassificationResult {
	return s.rules.Classify(product.Name, product.Category)
}

func (s *ruleStrategy) ClassifyBatch(_ context.Context, products []model.Product) (map[string]model.ClassificationResult, error) {
	return s.rules.ClassifyBatch(products), nil
}
