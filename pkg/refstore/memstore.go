package refstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vocalaid/vocalaid/pkg/intent"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is the in-memory [Store]: an append-only slice of records under a
// read-write mutex, searched by exact linear scan. For the hundreds to low
// thousands of records this system holds per deployment, the scan is both
// the simplest and the reference ranking semantics that other backends must
// preserve.
type MemStore struct {
	dims int

	mu      sync.RWMutex
	records []memRecord
	nextSeq uint64
}

// memRecord carries the insertion sequence so that records created within
// the same clock tick still order deterministically.
type memRecord struct {
	Record
	seq uint64
}

// NewMemStore returns an empty store for vectors of the given dimension.
func NewMemStore(dims int) (*MemStore, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("refstore: dimension must be positive, got %d", dims)
	}
	return &MemStore{dims: dims}, nil
}

// Dimensions implements [Store.Dimensions].
func (s *MemStore) Dimensions() int { return s.dims }

// Insert implements [Store.Insert].
func (s *MemStore) Insert(ctx context.Context, vector []float32, it intent.Intent, src Source) (string, error) {
	if !src.IsValid() {
		return "", fmt.Errorf("refstore: unrecognised source %q", src)
	}
	rec := Record{Intent: it, Vector: vector, Source: src}
	if err := Validate(rec, s.dims); err != nil {
		return "", err
	}
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()
	rec.Vector = slices.Clone(vector)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(rec)
	return rec.ID, nil
}

// Query implements [Store.Query].
func (s *MemStore) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) != s.dims {
		return nil, &DimensionError{Got: len(vector), Want: s.dims}
	}
	if IsZeroVector(vector) {
		return nil, ErrZeroVector
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		rec memRecord
		sim float64
	}
	hits := make([]scored, 0, len(s.records))
	for _, r := range s.records {
		hits = append(hits, scored{rec: r, sim: Cosine(vector, r.Vector)})
	}
	slices.SortFunc(hits, func(a, b scored) int {
		switch {
		case a.sim > b.sim:
			return -1
		case a.sim < b.sim:
			return 1
		case a.rec.CreatedAt.Before(b.rec.CreatedAt):
			return -1
		case b.rec.CreatedAt.Before(a.rec.CreatedAt):
			return 1
		default:
			return int(a.rec.seq) - int(b.rec.seq)
		}
	})
	if k > len(hits) {
		k = len(hits)
	}

	out := make([]Match, 0, k)
	for _, h := range hits[:k] {
		out = append(out, Match{ID: h.rec.ID, Intent: h.rec.Intent, Similarity: h.sim})
	}
	return out, nil
}

// Centroid implements [Store.Centroid].
func (s *MemStore) Centroid(ctx context.Context, it intent.Intent) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := make([]float64, s.dims)
	n := 0
	for _, r := range s.records {
		if r.Intent != it {
			continue
		}
		for i, x := range r.Vector {
			sum[i] += float64(x)
		}
		n++
	}
	if n == 0 {
		return nil, nil
	}
	mean := make([]float32, s.dims)
	for i, x := range sum {
		mean[i] = float32(x / float64(n))
	}
	return mean, nil
}

// CountByIntent implements [Store.CountByIntent].
func (s *MemStore) CountByIntent(ctx context.Context) (map[intent.Intent]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[intent.Intent]int)
	for _, r := range s.records {
		counts[r.Intent]++
	}
	return counts, nil
}

// All implements [Store.All]. Records with the same timestamp, as bulk
// imports produce, keep insertion order via the seq tie-break.
func (s *MemStore) All(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordered := slices.Clone(s.records)
	slices.SortFunc(ordered, func(a, b memRecord) int {
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case b.CreatedAt.Before(a.CreatedAt):
			return 1
		default:
			return int(a.seq) - int(b.seq)
		}
	})

	out := make([]Record, 0, len(ordered))
	for _, r := range ordered {
		rec := r.Record
		rec.Vector = slices.Clone(r.Vector)
		out = append(out, rec)
	}
	return out, nil
}

// BulkImport implements [Store.BulkImport]. Records keep the IDs, timestamps
// and sources they carry; missing fields are filled in. The import is
// sequential and stops at the first invalid record, returning how many were
// inserted before it.
func (s *MemStore) BulkImport(ctx context.Context, records []Record) (int, error) {
	count := 0
	for i, rec := range records {
		if err := Validate(rec, s.dims); err != nil {
			return count, fmt.Errorf("refstore: bulk import at index %d: %w", i, err)
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		if rec.Source == "" {
			rec.Source = SourceBootstrap
		}
		rec.Vector = slices.Clone(rec.Vector)

		s.mu.Lock()
		s.append(rec)
		s.mu.Unlock()
		count++
	}
	return count, nil
}

// Prune implements [Store.Prune].
func (s *MemStore) Prune(ctx context.Context, src Source, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	removed := 0
	for _, r := range s.records {
		if r.Source == src && r.CreatedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// append adds a record under an already-held write lock.
func (s *MemStore) append(rec Record) {
	s.records = append(s.records, memRecord{Record: rec, seq: s.nextSeq})
	s.nextSeq++
}
