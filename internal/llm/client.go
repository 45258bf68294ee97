package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Client is the opaque contract with an external generative-text endpoint:
// prompt in, free-text or JSON string out. Treated as unreliable, rate-limited
// and latency-variable.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RatePolicy selects how a classifier behaves when the call budget is spent.
type RatePolicy string

const (
	// RatePolicyReject fails fast to UNKNOWN. Used on latency-sensitive
	// request paths.
	RatePolicyReject RatePolicy = "reject"
	// RatePolicyWait polls for budget with a bounded number of attempts.
	// Used by the background job, where stalling a worker is acceptable.
	RatePolicyWait RatePolicy = "wait"
)

// Config holds configuration for the AI classifier and its provider client.
type Config struct {
	Provider         string
	APIKey           string
	Model            string
	Temperature      float64
	MaxTokens        int
	BatchSize        int
	RateLimit        int
	RateWindow       time.Duration
	RatePolicy       RatePolicy
	RateWaitAttempts int
	RateWaitDelay    time.Duration
	BatchDelay       time.Duration
	CacheTTL         time.Duration
}

// NewClient creates a provider client based on the provided configuration.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		return newGeminiClient(cfg)
	case "openai":
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
