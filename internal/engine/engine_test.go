package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fodmapworks/fodmap-flow/internal/common"
	"github.com/fodmapworks/fodmap-flow/internal/model"
	"github.com/fodmapworks/fodmap-flow/internal/testutil"
)

// newTestEngine wires an engine against an in-memory database with retry
// backoff and inter-batch delays replaced by no-op sleeps.
func newTestEngine(t *testing.T, classifier Classifier, batchSize int) (*Engine, *testutil.TestDB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	e := New(db.Storage, classifier, Config{
		BatchSize: batchSize,
		PassDelay: time.Millisecond,
		Retry: common.RetryOptions{
			MaxAttempts: 3,
			Delays:      []time.Duration{time.Millisecond},
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
	}, slog.Default())
	e.sleep = func(context.Context, time.Duration) error { return nil }
	return e, db
}

func TestSubmitCreatesPending(t *testing.T) {
	e, db := newTestEngine(t, &MockClassifier{}, 50)
	ctx := context.Background()

	report, err := e.Submit(ctx, []Submission{
		{Name: "Pšenični hleb", Category: "Pekara"},
		{Name: "Pirinač"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Submitted)
	assert.Equal(t, 2, report.Created)
	require.Len(t, report.Identities, 2)

	p := db.MustFind(ctx, report.Identities[1])
	assert.Equal(t, model.StatusPending, p.Status)
	assert.Equal(t, "Uncategorized", p.Category, "missing category gets a default")
	assert.True(t, p.Pending())
}

func TestSubmitIdempotentResubmission(t *testing.T) {
	classified := model.ClassificationResult{Status: model.StatusHigh, IsFood: model.Bool(true)}
	e, db := newTestEngine(t, &MockClassifier{Default: &classified}, 50)
	ctx := context.Background()

	first, err := e.Submit(ctx, []Submission{{Name: "Mleko", Category: "Mlečni proizvodi"}})
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)

	_, err = e.RunPendingClassificationPass(ctx)
	require.NoError(t, err)
	before := db.MustFind(ctx, first.Identities[0])
	require.Equal(t, model.StatusHigh, before.Status)

	second, err := e.Submit(ctx, []Submission{{Name: "Mleko", Category: "Mlečni proizvodi"}})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created, "resubmission must not create a duplicate")

	after := db.MustFind(ctx, first.Identities[0])
	assert.Equal(t, model.StatusHigh, after.Status, "resubmission must not reset the classification")
	assert.Equal(t, before.ProcessedAt, after.ProcessedAt)
}

func TestSubmitRejectsEmptyName(t *testing.T) {
	e, _ := newTestEngine(t, &MockClassifier{}, 50)

	_, err := e.Submit(context.Background(), []Submission{{Name: "   "}})
	require.Error(t, err)
	var userErr *common.UserError
	assert.ErrorAs(t, err, &userErr)
}

func TestStatusReportsFoundAndMissing(t *testing.T) {
	e, _ := newTestEngine(t, &MockClassifier{}, 50)
	ctx := context.Background()

	report, err := e.Submit(ctx, []Submission{{Name: "Pirinač", Category: "Osnovne namirnice"}})
	require.NoError(t, err)

	status, err := e.Status(ctx, []string{report.Identities[0], "name_0"})
	require.NoError(t, err)
	assert.Equal(t, 1, status.FoundCount())
	assert.Equal(t, 1, status.MissingCount())
	assert.Equal(t, []string{"name_0"}, status.Missing)
	assert.Equal(t, "Pirinač", status.Found[0].Name)
}

func TestRunPassClassifiesAllPending(t *testing.T) {
	rice := model.NewPending("Pirinač", "Osnovne namirnice")
	milk := model.NewPending("Mleko", "Mlečni proizvodi")
	mock := &MockClassifier{Results: map[string]model.ClassificationResult{
		rice.IdentityHash: {Status: model.StatusLow, IsFood: model.Bool(true), Explanation: "rice"},
		milk.IdentityHash: {Status: model.StatusHigh, IsFood: model.Bool(true), Explanation: "lactose"},
	}}
	e, db := newTestEngine(t, mock, 50)
	ctx := context.Background()

	_, err := e.Submit(ctx, []Submission{
		{Name: rice.Name, Category: rice.Category},
		{Name: milk.Name, Category: milk.Category},
	})
	require.NoError(t, err)

	report, err := e.RunPendingClassificationPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Handled)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, mock.BatchCalls())

	got := db.MustFind(ctx, rice.IdentityHash)
	assert.Equal(t, model.StatusLow, got.Status)
	assert.NotNil(t, got.ProcessedAt)

	remaining, err := db.Storage.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	runs, err := db.Storage.RecentJobRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	assert.Equal(t, 2, runs[0].Processed)
}

func TestRunPassBatchFailureFallsBackToUnknown(t *testing.T) {
	mock := &MockClassifier{Err: errors.New("upstream timeout")}
	e, db := newTestEngine(t, mock, 50)
	ctx := context.Background()

	report, err := e.Submit(ctx, []Submission{
		{Name: "Pirinač"}, {Name: "Mleko"}, {Name: "Hleb"},
	})
	require.NoError(t, err)

	// The failed attempt marks its whole batch UNKNOWN, so the retry finds
	// an empty queue and the pass completes cleanly.
	passReport, passErr := e.RunPendingClassificationPass(ctx)
	require.NoError(t, passErr)
	assert.Equal(t, 1, mock.BatchCalls())
	assert.Equal(t, 0, passReport.Handled)
	assert.Equal(t, 3, passReport.Failed)

	for _, id := range report.Identities {
		p := db.MustFind(ctx, id)
		assert.Equal(t, model.StatusUnknown, p.Status)
		require.NotNil(t, p.ProcessedAt, "failed records must never stay PENDING")
	}

	remaining, err := db.Storage.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestRunPassPartialBatchResponse(t *testing.T) {
	first := model.NewPending("Pirinač", "Uncategorized")
	second := model.NewPending("Mleko", "Uncategorized")
	third := model.NewPending("Jogurt", "Uncategorized")
	mock := &MockClassifier{Results: map[string]model.ClassificationResult{
		first.IdentityHash: {Status: model.StatusLow, IsFood: model.Bool(true)},
		third.IdentityHash: {Status: model.StatusHigh, IsFood: model.Bool(true)},
	}}
	e, db := newTestEngine(t, mock, 50)
	ctx := context.Background()

	_, err := e.Submit(ctx, []Submission{
		{Name: first.Name}, {Name: second.Name}, {Name: third.Name},
	})
	require.NoError(t, err)

	report, err := e.RunPendingClassificationPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Handled)
	assert.Equal(t, 1, report.Failed)

	assert.Equal(t, model.StatusLow, db.MustFind(ctx, first.IdentityHash).Status)
	assert.Equal(t, model.StatusHigh, db.MustFind(ctx, third.IdentityHash).Status)

	missing := db.MustFind(ctx, second.IdentityHash)
	assert.Equal(t, model.StatusUnknown, missing.Status)
	assert.NotNil(t, missing.ProcessedAt)
}

// failingUpdateStorage rejects every classification write while delegating
// everything else to the real store.
type failingUpdateStorage struct {
	Storage
	err error
}

func (s *failingUpdateStorage) UpdateClassification(context.Context, string, model.ClassificationResult) error {
	return s.err
}

func TestRunPassAbortsWhenPersistenceFails(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.NewProduct("Pirinač", "Osnovne namirnice"))
	store := &failingUpdateStorage{Storage: db.Storage, err: errors.New("disk I/O error")}
	low := model.ClassificationResult{Status: model.StatusLow, IsFood: model.Bool(true)}
	mock := &MockClassifier{Default: &low}

	e := New(store, mock, Config{
		BatchSize: 50,
		PassDelay: time.Millisecond,
		Retry: common.RetryOptions{
			MaxAttempts: 3,
			Delays:      []time.Duration{time.Millisecond},
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
	}, slog.Default())
	e.sleep = func(context.Context, time.Duration) error { return nil }

	ctx := context.Background()
	report, err := e.RunPendingClassificationPass(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, report.Batches, "a stuck batch must not be refetched")
	assert.Equal(t, 1, mock.BatchCalls(), "a stuck batch must not be reclassified")
	assert.Equal(t, 0, report.Handled)

	remaining, countErr := db.Storage.CountPending(ctx)
	require.NoError(t, countErr)
	assert.Equal(t, 1, remaining)
}

func TestRunPassContinuesUntilQueueDrains(t *testing.T) {
	low := model.ClassificationResult{Status: model.StatusLow, IsFood: model.Bool(true)}
	mock := &MockClassifier{Default: &low}
	e, _ := newTestEngine(t, mock, 1)
	ctx := context.Background()

	_, err := e.Submit(ctx, []Submission{
		{Name: "Pirinač"}, {Name: "Krompir"}, {Name: "Meso"},
	})
	require.NoError(t, err)

	report, err := e.RunPendingClassificationPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Handled)
	assert.Equal(t, 3, report.Batches)
	assert.Equal(t, 0, report.Remaining)
	assert.Equal(t, 3, mock.BatchCalls())
}

func TestRunPassOverlapIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t, &MockClassifier{}, 50)

	require.True(t, e.lock.TryAcquire())
	defer e.lock.Release()

	_, err := e.RunPendingClassificationPass(context.Background())
	assert.ErrorIs(t, err, common.ErrJobOverlap)
}

func TestPendingInvariantHoldsAcrossRuns(t *testing.T) {
	low := model.ClassificationResult{Status: model.StatusLow, IsFood: model.Bool(true)}
	mock := &MockClassifier{Default: &low}
	e, db := newTestEngine(t, mock, 2)
	ctx := context.Background()

	report, err := e.Submit(ctx, []Submission{
		{Name: "Pirinač"}, {Name: "Krompir"}, {Name: "Meso"}, {Name: "Riba"},
	})
	require.NoError(t, err)

	checkInvariant := func() {
		products, findErr := db.Storage.FindByIdentities(ctx, report.Identities)
		require.NoError(t, findErr)
		for _, p := range products {
			if p.Status == model.StatusPending {
				assert.Nil(t, p.ProcessedAt, "%s: PENDING implies unprocessed", p.Name)
			} else {
				assert.NotNil(t, p.ProcessedAt, "%s: classified implies processed", p.Name)
			}
		}
	}

	checkInvariant()
	_, err = e.RunPendingClassificationPass(ctx)
	require.NoError(t, err)
	checkInvariant()
}

func TestPreviewDoesNotPersist(t *testing.T) {
	low := model.ClassificationResult{Status: model.StatusLow, IsFood: model.Bool(true)}
	e, db := newTestEngine(t, &MockClassifier{Default: &low}, 50)
	ctx := context.Background()

	result := e.Preview(ctx, "Pirinač", "Osnovne namirnice")
	assert.Equal(t, model.StatusLow, result.Status)

	counts, err := db.Storage.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts, "preview must not create records")
}

func TestOverview(t *testing.T) {
	low := model.ClassificationResult{Status: model.StatusLow, IsFood: model.Bool(true)}
	e, _ := newTestEngine(t, &MockClassifier{Default: &low}, 50)
	ctx := context.Background()

	_, err := e.Submit(ctx, []Submission{{Name: "Pirinač"}, {Name: "Krompir"}})
	require.NoError(t, err)
	_, err = e.RunPendingClassificationPass(ctx)
	require.NoError(t, err)
	_, err = e.Submit(ctx, []Submission{{Name: "Mleko"}})
	require.NoError(t, err)

	counts, err := e.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.StatusLow])
	assert.Equal(t, 1, counts[model.StatusPending])
}

func TestInvalidateCacheWithoutCacheIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t, &MockClassifier{}, 50)
	e.InvalidateCache()
	e.Close()
}
