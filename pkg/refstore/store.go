// Package refstore holds the labeled reference embeddings the classifier
// learns from. Each record pairs a fixed-dimension acoustic vector with the
// intent it is known to mean, and the store answers cosine-similarity
// queries over them.
//
// The store is append-only: feedback corrections insert new records instead
// of relabeling old ones, so a record is an audit fact, not mutable state.
// The only way data leaves is [Store.Prune], an explicit maintenance
// operation that is never part of the classification or feedback paths.
//
// The interface is public so deployments can choose a backend: the
// in-memory [MemStore] here (exact linear scan, the reference semantics) or
// the pgvector-backed store in the postgres subpackage. Every implementation
// must be safe for concurrent use, with queries running in parallel and
// inserts serialized against each other.
package refstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vocalaid/vocalaid/pkg/intent"
)

// Source records how a reference vector entered the store.
type Source string

const (
	// SourceBootstrap marks records loaded from a curated snapshot at startup.
	SourceBootstrap Source = "bootstrap"

	// SourceSynthetic marks records produced by offline augmentation.
	SourceSynthetic Source = "synthetic"

	// SourceFeedback marks records inserted by the caregiver feedback loop.
	SourceFeedback Source = "feedback"
)

// IsValid reports whether s is a recognised source.
func (s Source) IsValid() bool {
	switch s {
	case SourceBootstrap, SourceSynthetic, SourceFeedback:
		return true
	}
	return false
}

// Record is one labeled reference embedding. The field set doubles as the
// interchange shape: snapshots are sequences of these, one JSON object per
// line.
type Record struct {
	// ID is the unique record identifier (a UUID). Generated on insert when
	// empty.
	ID string `json:"id,omitempty"`

	// Intent is the need this vector is known to express. Always
	// classifiable, never [intent.Unknown].
	Intent intent.Intent `json:"intent"`

	// Vector is the acoustic embedding. Its length must equal the store
	// dimension.
	Vector []float32 `json:"vector"`

	// CreatedAt orders records for similarity tie-breaks: older records are
	// preferred, they have survived more feedback.
	CreatedAt time.Time `json:"created_at"`

	// Source is the record's provenance.
	Source Source `json:"source"`
}

// Match is one similarity-query hit.
type Match struct {
	ID         string
	Intent     intent.Intent
	Similarity float64
}

// DimensionError is returned by Insert, Query and BulkImport when a vector's
// length does not match the store's fixed dimension.
type DimensionError struct {
	Got, Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector has %d components, store dimension is %d", e.Got, e.Want)
}

// ErrZeroVector is returned when a vector with no nonzero component is
// offered for insertion or similarity search. A zero vector has no direction,
// so cosine similarity against it is undefined.
var ErrZeroVector = errors.New("zero vector has no cosine direction")

// ErrIntentNotClassifiable is returned by Insert and BulkImport when the
// label is [intent.Unknown] or outside the vocabulary.
var ErrIntentNotClassifiable = errors.New("intent cannot label reference data")

// Store is the reference-data contract the classifier builds on.
//
// All implementations must be safe for concurrent use: Query, Centroid and
// the other read operations may run in parallel, Insert and Prune are
// exclusive, and a concurrent reader sees the store either before or after a
// mutation, never mid-write.
type Store interface {
	// Insert appends one labeled vector and returns the new record's ID.
	// The vector's length must equal [Store.Dimensions] ([DimensionError]
	// otherwise) and it must not be the zero vector ([ErrZeroVector]).
	// On error the store is unchanged.
	Insert(ctx context.Context, vector []float32, it intent.Intent, src Source) (string, error)

	// Query returns up to k records by descending cosine similarity to
	// vector. Equal similarities rank older records first. An empty store
	// returns an empty result and a nil error; k <= 0 returns no matches.
	// Fails with [DimensionError] or [ErrZeroVector] for invalid vectors.
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)

	// Centroid returns the mean vector of all records labeled it, or
	// (nil, nil) when the intent has no records.
	Centroid(ctx context.Context, it intent.Intent) ([]float32, error)

	// CountByIntent returns the number of records per intent. Intents with
	// no records are absent from the map.
	CountByIntent(ctx context.Context) (map[intent.Intent]int, error)

	// All returns every record, ordered by CreatedAt ascending, for export.
	All(ctx context.Context) ([]Record, error)

	// BulkImport inserts records one at a time, preserving any IDs,
	// timestamps and sources they carry (empty fields are filled in).
	// Returns the number inserted and the first error that aborted the
	// import.
	BulkImport(ctx context.Context, records []Record) (int, error)

	// Prune removes records of the given source older than before and
	// returns how many were removed. Maintenance only; the classification
	// and feedback paths never call it.
	Prune(ctx context.Context, src Source, before time.Time) (int, error)

	// Dimensions returns the fixed vector dimension D of this store.
	Dimensions() int
}

// Validate checks the invariants every backend enforces before an insert:
// a classifiable intent, a vector of exactly dims nonzero components, and a
// recognised source when one is carried. An empty source is allowed here
// because imports fill it in; Insert implementations additionally require a
// concrete source.
func Validate(rec Record, dims int) error {
	if !rec.Intent.Classifiable() {
		return fmt.Errorf("%q: %w", rec.Intent, ErrIntentNotClassifiable)
	}
	if len(rec.Vector) != dims {
		return &DimensionError{Got: len(rec.Vector), Want: dims}
	}
	if IsZeroVector(rec.Vector) {
		return ErrZeroVector
	}
	if rec.Source != "" && !rec.Source.IsValid() {
		return fmt.Errorf("refstore: unrecognised source %q", rec.Source)
	}
	return nil
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. It is a total
// function: mismatched lengths or a zero vector yield 0. Callers that need
// those cases rejected validate before calling (see [Store.Query]).
//
// A vector compared against itself yields exactly 1.0: the denominator is
// computed as sqrt(na·nb), and a correctly-rounded sqrt of the product of
// two equal norms is the norm itself.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / math.Sqrt(na*nb)
	// Guard against rounding drift past the mathematical range.
	return math.Max(-1, math.Min(1, sim))
}

// IsZeroVector reports whether every component of v is zero (including the
// empty vector).
func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
