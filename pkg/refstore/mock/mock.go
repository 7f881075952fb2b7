// Package mock provides a configurable test double for [refstore.Store].
//
// The mock records every method call for assertion in tests and exposes
// exported fields that control what it returns. It is safe for concurrent
// use via an internal [sync.Mutex].
//
// Typical usage:
//
//	store := &mock.Store{Dims: 4}
//	store.QueryResult = []refstore.Match{{Intent: intent.Help, Similarity: 0.9}}
//
//	// inject store into the system under test …
//
//	if got := store.CallCount("Query"); got != 1 {
//	    t.Errorf("expected 1 Query call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/vocalaid/vocalaid/pkg/intent"
	"github.com/vocalaid/vocalaid/pkg/refstore"
)

// Compile-time interface check.
var _ refstore.Store = (*Store)(nil)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Store is a configurable test double for [refstore.Store]. All exported
// *Err fields default to nil (success); all *Result fields default to their
// zero value.
type Store struct {
	mu sync.Mutex

	// calls records every method invocation in order.
	calls []Call

	// Dims is returned by [Store.Dimensions]. Defaults to 0; set it when
	// the system under test validates vector lengths.
	Dims int

	// InsertResult is the ID returned by [Store.Insert]. When empty,
	// Insert returns "mock-id".
	InsertResult string

	// InsertErr is returned by [Store.Insert] when non-nil.
	InsertErr error

	// QueryResult is returned by [Store.Query]. When nil, Query returns an
	// empty non-nil slice.
	QueryResult []refstore.Match

	// QueryErr is returned by [Store.Query] when non-nil.
	QueryErr error

	// CentroidResults maps intents to the centroid returned for them.
	// Absent intents yield (nil, nil), the no-records answer.
	CentroidResults map[intent.Intent][]float32

	// CentroidErr is returned by [Store.Centroid] when non-nil.
	CentroidErr error

	// CountResult is returned by [Store.CountByIntent]. When nil, an empty
	// non-nil map is returned.
	CountResult map[intent.Intent]int

	// CountErr is returned by [Store.CountByIntent] when non-nil.
	CountErr error

	// AllResult is returned by [Store.All].
	AllResult []refstore.Record

	// AllErr is returned by [Store.All] when non-nil.
	AllErr error

	// BulkImportResult is the count returned by [Store.BulkImport]. When 0
	// and BulkImportErr is nil, the length of the argument is returned.
	BulkImportResult int

	// BulkImportErr is returned by [Store.BulkImport] when non-nil.
	BulkImportErr error

	// PruneResult is the count returned by [Store.Prune].
	PruneResult int

	// PruneErr is returned by [Store.Prune] when non-nil.
	PruneErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *Store) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Store) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (m *Store) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Insert implements [refstore.Store].
func (m *Store) Insert(_ context.Context, vector []float32, it intent.Intent, src refstore.Source) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Insert", Args: []any{vector, it, src}})
	if m.InsertErr != nil {
		return "", m.InsertErr
	}
	if m.InsertResult == "" {
		return "mock-id", nil
	}
	return m.InsertResult, nil
}

// Query implements [refstore.Store].
func (m *Store) Query(_ context.Context, vector []float32, k int) ([]refstore.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Query", Args: []any{vector, k}})
	if m.QueryResult == nil {
		return []refstore.Match{}, m.QueryErr
	}
	out := make([]refstore.Match, len(m.QueryResult))
	copy(out, m.QueryResult)
	return out, m.QueryErr
}

// Centroid implements [refstore.Store].
func (m *Store) Centroid(_ context.Context, it intent.Intent) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Centroid", Args: []any{it}})
	if m.CentroidErr != nil {
		return nil, m.CentroidErr
	}
	return m.CentroidResults[it], nil
}

// CountByIntent implements [refstore.Store].
func (m *Store) CountByIntent(_ context.Context) (map[intent.Intent]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "CountByIntent", Args: nil})
	if m.CountResult == nil {
		return map[intent.Intent]int{}, m.CountErr
	}
	out := make(map[intent.Intent]int, len(m.CountResult))
	for k, v := range m.CountResult {
		out[k] = v
	}
	return out, m.CountErr
}

// All implements [refstore.Store].
func (m *Store) All(_ context.Context) ([]refstore.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "All", Args: nil})
	if m.AllResult == nil {
		return []refstore.Record{}, m.AllErr
	}
	out := make([]refstore.Record, len(m.AllResult))
	copy(out, m.AllResult)
	return out, m.AllErr
}

// BulkImport implements [refstore.Store].
func (m *Store) BulkImport(_ context.Context, records []refstore.Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "BulkImport", Args: []any{records}})
	if m.BulkImportErr != nil {
		return m.BulkImportResult, m.BulkImportErr
	}
	if m.BulkImportResult == 0 {
		return len(records), nil
	}
	return m.BulkImportResult, nil
}

// Prune implements [refstore.Store].
func (m *Store) Prune(_ context.Context, src refstore.Source, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Prune", Args: []any{src, before}})
	return m.PruneResult, m.PruneErr
}

// Dimensions implements [refstore.Store].
func (m *Store) Dimensions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Dimensions", Args: nil})
	return m.Dims
}
