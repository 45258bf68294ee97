// Package model defines the core domain models used throughout the application.
package model

import (
	"strings"
	"time"
)

// FodmapStatus is the classification state of a product.
type FodmapStatus string

// Classification status constants.
const (
	StatusPending  FodmapStatus = "PENDING"
	StatusLow      FodmapStatus = "LOW"
	StatusModerate FodmapStatus = "MODERATE"
	StatusHigh     FodmapStatus = "HIGH"
	StatusNA       FodmapStatus = "NA"
	StatusUnknown  FodmapStatus = "UNKNOWN"
)

// IsTerminal reports whether the status represents a completed classification.
func (s FodmapStatus) IsTerminal() bool {
	switch s {
	case StatusLow, StatusModerate, StatusHigh, StatusNA, StatusUnknown:
		return true
	default:
		return false
	}
}

// ParseStatus maps a raw model response token to a FodmapStatus.
// Matching is deliberately permissive: any token containing "low" maps to LOW
// and so on, which tolerates verbose model output. Unrecognized input maps to
// UNKNOWN.
func ParseStatus(raw string) FodmapStatus {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(normalized, "moderate"):
		return StatusModerate
	case strings.Contains(normalized, "low"):
		return StatusLow
	case strings.Contains(normalized, "high"):
		return StatusHigh
	case strings.Contains(normalized, "na"):
		return StatusNA
	default:
		return StatusUnknown
	}
}

// Product is the unit of work and the persisted artifact.
type Product struct {
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ProcessedAt  *time.Time
	IsFood       *bool
	IdentityHash string
	Name         string
	Category     string
	Explanation  string
	Status       FodmapStatus
}

// NewPending builds a product awaiting classification, deriving its identity
// hash from the name. An empty category defaults to "Uncategorized".
func NewPending(name, category string) Product {
	if strings.TrimSpace(category) == "" {
		category = "Uncategorized"
	}
	return Product{
		IdentityHash: IdentityHash(name),
		Name:         name,
		Category:     category,
		Status:       StatusPending,
	}
}

// Pending reports whether the product still awaits classification.
func (p *Product) Pending() bool {
	return p.Status == StatusPending && p.ProcessedAt == nil
}

// ClassificationResult is the fully-populated outcome of any classifier
// strategy. IsFood is nil when the classifier could not determine whether the
// product is food at all.
type ClassificationResult struct {
	IsFood      *bool
	Status      FodmapStatus
	Explanation string
}

// UnknownResult builds the fallback result used whenever classification could
// not produce an answer.
func UnknownResult(explanation string) ClassificationResult {
	return ClassificationResult{
		Status:      StatusUnknown,
		Explanation: explanation,
	}
}

// Bool returns a pointer to b, for populating ClassificationResult.IsFood.
func Bool(b bool) *bool {
	return &b
}
