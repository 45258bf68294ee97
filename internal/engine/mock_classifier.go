package engine

import (
	"context"
	"sync"

	"github.com/fodmapworks/fodmap-flow/internal/model"
)

// MockClassifier is a scriptable Classifier for tests.
type MockClassifier struct {
	// Results maps identity hash to the result to return. Products with no
	// entry are omitted from batch responses entirely.
	Results map[string]model.ClassificationResult
	// Default is returned for products without a Results entry when set.
	Default *model.ClassificationResult
	// Err, when set, fails every ClassifyBatch call.
	Err error

	mu         sync.Mutex
	batchCalls int
	seen       [][]string
}

// Classify returns the scripted result for the product.
func (m *MockClassifier) Classify(_ context.Context, product model.Product) model.ClassificationResult {
	if r, ok := m.Results[product.IdentityHash]; ok {
		return r
	}
	if m.Default != nil {
		return *m.Default
	}
	return model.UnknownResult("no scripted result")
}

// ClassifyBatch returns scripted results for the batch, recording the call.
func (m *MockClassifier) ClassifyBatch(_ context.Context, products []model.Product) (map[string]model.ClassificationResult, error) {
	m.mu.Lock()
	m.batchCalls++
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.IdentityHash
	}
	m.seen = append(m.seen, ids)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	results := make(map[string]model.ClassificationResult, len(products))
	for _, p := range products {
		if r, ok := m.Results[p.IdentityHash]; ok {
			results[p.IdentityHash] = r
		} else if m.Default != nil {
			results[p.IdentityHash] = *m.Default
		}
	}
	return results, nil
}

// BatchCalls returns how many times ClassifyBatch ran.
func (m *MockClassifier) BatchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls
}

// SeenBatches returns the identity hashes of every batch received.
func (m *MockClassifier) SeenBatches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen
}
