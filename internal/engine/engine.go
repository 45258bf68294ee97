package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fodmapworks/fodmap-flow/internal/common"
	"github.com/fodmapworks/fodmap-flow/internal/model"
)

// Config tunes the classification engine.
type Config struct {
	// BatchSize bounds how many pending records one job cycle processes.
	BatchSize int
	// PassDelay is the pause between successive batches within one pass,
	// inserted to smooth the external call rate.
	PassDelay time.Duration
	// LockTTL caps how long one pass may hold the overlap lock.
	LockTTL time.Duration
	// Retry controls the per-attempt backoff of the classification job.
	Retry common.RetryOptions
}

// Engine is the orchestration entry point: submissions, status queries and
// the scheduled classification pass.
type Engine struct {
	store      Storage
	classifier Classifier
	lock       *OverlapLock
	job        *Job
	logger     *slog.Logger
	sleep      func(context.Context, time.Duration) error
	newRunID   func() string
	retry      common.RetryOptions
	passDelay  time.Duration
}

// New wires an engine from its collaborators. The classifier is usually a
// ClassifierRouter but any strategy satisfying the interface works.
func New(store Storage, classifier Classifier, cfg Config, logger *slog.Logger) *Engine {
	if cfg.PassDelay <= 0 {
		cfg.PassDelay = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = common.DefaultRetryOptions()
	}
	return &Engine{
		store:      store,
		classifier: classifier,
		lock:       NewOverlapLock(cfg.LockTTL),
		job:        NewJob(store, classifier, cfg.BatchSize, logger),
		logger:     logger,
		retry:      cfg.Retry,
		passDelay:  cfg.PassDelay,
		newRunID:   uuid.NewString,
	}
}

// Submission is one product offered for classification.
type Submission struct {
	Name     string
	Category string
}

// SubmitReport summarizes a submission call.
type SubmitReport struct {
	Identities []string
	Submitted  int
	Created    int
}

// Submit registers products for classification. Submission is idempotent per
// identity hash: known identities are left untouched, whatever their current
// status. Empty names are rejected at the boundary.
func (e *Engine) Submit(ctx context.Context, submissions []Submission) (*SubmitReport, error) {
	products := make([]model.Product, 0, len(submissions))
	identities := make([]string, 0, len(submissions))
	for _, s := range submissions {
		if strings.TrimSpace(s.Name) == "" {
			return nil, common.NewUserError("product name cannot be empty", nil)
		}
		p := model.NewPending(s.Name, s.Category)
		products = append(products, p)
		identities = append(identities, p.IdentityHash)
	}

	created, err := e.store.InsertPending(ctx, products)
	if err != nil {
		return nil, fmt.Errorf("failed to store submissions: %w", err)
	}

	e.logger.Info("products submitted",
		"submitted", len(products),
		"created", created)

	return &SubmitReport{
		Identities: identities,
		Submitted:  len(products),
		Created:    int(created),
	}, nil
}

// StatusReport answers a status query: one entry per known identity plus an
// explicit list of identities with no record.
type StatusReport struct {
	Found   []model.Product
	Missing []string
}

// FoundCount returns how many queried identities had a record.
func (r *StatusReport) FoundCount() int { return len(r.Found) }

// MissingCount returns how many queried identities had no record.
func (r *StatusReport) MissingCount() int { return len(r.Missing) }

// Status looks up the current classification of each identity.
func (e *Engine) Status(ctx context.Context, identities []string) (*StatusReport, error) {
	found, err := e.store.FindByIdentities(ctx, identities)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	known := make(map[string]bool, len(found))
	for _, p := range found {
		known[p.IdentityHash] = true
	}

	report := &StatusReport{Found: found}
	for _, id := range identities {
		if !known[id] {
			report.Missing = append(report.Missing, id)
		}
	}
	return report, nil
}

// Preview classifies a single product synchronously without persisting
// anything. Used on the request path between scheduled runs.
func (e *Engine) Preview(ctx context.Context, name, category string) model.ClassificationResult {
	return e.classifier.Classify(ctx, model.NewPending(name, category))
}

// PassReport summarizes one classification pass.
type PassReport struct {
	RunID     string
	Batches   int
	Handled   int
	Failed    int
	Remaining int
}

// RunPendingClassificationPass drains the pending queue in batches. At most
// one pass runs at a time; a trigger that finds a pass already active returns
// common.ErrJobOverlap and does nothing. Each batch attempt is retried on
// failure per the configured backoff before the pass gives up. A pass that
// stops shrinking the queue aborts rather than spinning on stuck records.
func (e *Engine) RunPendingClassificationPass(ctx context.Context) (*PassReport, error) {
	if !e.lock.TryAcquire() {
		return nil, common.ErrJobOverlap
	}
	defer e.lock.Release()

	runID := e.newRunID()
	if err := e.store.StartJobRun(ctx, runID, time.Now()); err != nil {
		e.logger.Warn("failed to record job start", "run_id", runID, "error", err)
	}
	e.logger.Info("classification pass started", "run_id", runID)

	report := &PassReport{RunID: runID}
	var passErr error

	for {
		var handled, failed int
		err := common.WithRetry(ctx, func() error {
			h, f, runErr := e.job.Run(ctx)
			handled += h
			report.Failed += f
			failed += f
			return runErr
		}, e.retry)
		report.Handled += handled
		report.Batches++

		if err != nil {
			passErr = err
			break
		}
		if handled == 0 && failed == 0 {
			// Queue was empty.
			break
		}

		remaining, countErr := e.store.CountPending(ctx)
		if countErr != nil {
			passErr = fmt.Errorf("failed to count pending products: %w", countErr)
			break
		}
		report.Remaining = remaining
		if remaining == 0 {
			break
		}
		if handled == 0 {
			// Records were fetched but none left the queue, typically a
			// persistence failure. Looping again would re-spend the
			// classification budget on the same stuck batch.
			passErr = fmt.Errorf("classification pass made no progress, %d records still pending", remaining)
			break
		}

		e.logger.Info("work remains, continuing pass",
			"run_id", runID,
			"remaining", remaining,
			"delay", e.passDelay)
		if sleepErr := e.doSleep(ctx, e.passDelay); sleepErr != nil {
			passErr = sleepErr
			break
		}
	}

	if err := e.store.FinishJobRun(ctx, runID, report.Handled, report.Failed, passErr); err != nil {
		e.logger.Warn("failed to record job finish", "run_id", runID, "error", err)
	}

	e.logger.Info("classification pass finished",
		"run_id", runID,
		"batches", report.Batches,
		"handled", report.Handled,
		"unknown", report.Failed,
		"error", passErr)
	return report, passErr
}

// Overview returns per-status record counts.
func (e *Engine) Overview(ctx context.Context) (map[model.FodmapStatus]int, error) {
	return e.store.CountByStatus(ctx)
}

// InvalidateCache drops every cached classification result. A no-op when the
// active strategy carries no cache.
func (e *Engine) InvalidateCache() {
	if inv, ok := e.classifier.(interface{ InvalidateCache() }); ok {
		inv.InvalidateCache()
	}
}

// Close releases engine resources.
func (e *Engine) Close() {
	if closer, ok := e.classifier.(interface{ Close() }); ok {
		closer.Close()
	}
}

func (e *Engine) doSleep(ctx context.Context, d time.Duration) error {
	if e.sleep != nil {
		return e.sleep(ctx, d)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
