package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fodmapworks/fodmap-flow/internal/model"
)

// Job executes one fetch-classify-persist cycle over the pending queue.
type Job struct {
	store      Storage
	classifier Classifier
	logger     *slog.Logger
	batchSize  int
}

// NewJob creates a classification job pulling up to batchSize records per run.
func NewJob(store Storage, classifier Classifier, batchSize int, logger *slog.Logger) *Job {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Job{
		store:      store,
		classifier: classifier,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Run processes one batch of pending products, oldest first. Returns how many
// records were persisted and how many of those ended up UNKNOWN. A
// batch-level classification failure marks every fetched record UNKNOWN with
// a processed timestamp before propagating the error, so no record is ever
// left stuck in PENDING after an attempt.
func (j *Job) Run(ctx context.Context) (handled, failed int, err error) {
	batch, err := j.store.FindPendingOrderedByAge(ctx, j.batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch pending products: %w", err)
	}
	if len(batch) == 0 {
		j.logger.Debug("no pending products")
		return 0, 0, nil
	}

	j.logger.Info("classifying batch", "size", len(batch))

	results, err := j.classifier.ClassifyBatch(ctx, batch)
	if err != nil {
		for _, p := range batch {
			fallback := model.UnknownResult(fmt.Sprintf("classification attempt failed: %v", err))
			if updateErr := j.store.UpdateClassification(ctx, p.IdentityHash, fallback); updateErr != nil {
				j.logger.Error("failed to record fallback result",
					"product", p.Name,
					"error", updateErr)
			}
		}
		return 0, len(batch), fmt.Errorf("batch classification failed: %w", err)
	}

	for _, p := range batch {
		result, ok := results[p.IdentityHash]
		if !ok {
			// The batch contract guarantees one result per input, but a
			// stuck record is worse than a defensive UNKNOWN.
			j.logger.Warn("classifier returned no result for product",
				"product", p.Name,
				"identity", p.IdentityHash)
			result = model.UnknownResult("no classification result returned")
		}

		if updateErr := j.store.UpdateClassification(ctx, p.IdentityHash, result); updateErr != nil {
			j.logger.Error("failed to persist classification",
				"product", p.Name,
				"error", updateErr)
			failed++
			continue
		}

		handled++
		if result.Status == model.StatusUnknown {
			failed++
		}
	}

	j.logger.Info("batch complete", "handled", handled, "unknown", failed)
	return handled, failed, nil
}
