// Package engine orchestrates product classification: submissions, the
// background classification job, the scheduler and strategy selection.
package engine

import (
	"context"
	"time"

	"github.com/fodmapworks/fodmap-flow/internal/model"
)

// Storage is the persistence contract the engine depends on.
type Storage interface {
	InsertPending(ctx context.Context, products []model.Product) (int64, error)
	FindByIdentities(ctx context.Context, hashes []string) ([]model.Product, error)
	FindPendingOrderedByAge(ctx context.Context, limit int) ([]model.Product, error)
	UpdateClassification(ctx context.Context, identityHash string, result model.ClassificationResult) error
	CountPending(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[model.FodmapStatus]int, error)
	StartJobRun(ctx context.Context, id string, startedAt time.Time) error
	FinishJobRun(ctx context.Context, id string, processed, failed int, runErr error) error
}

// Classifier is the strategy contract all classification paths implement.
// ClassifyBatch returns exactly one result per input product, keyed by
// identity hash; only transport-level failures surface as errors.
type Classifier interface {
	Classify(ctx context.Context, product model.Product) model.ClassificationResult
	ClassifyBatch(ctx context.Context, products []model.Product) (map[string]model.ClassificationResult, error)
}
