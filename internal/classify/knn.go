// Package classify implements the hybrid intent classification engine:
// a weighted nearest-neighbor classifier over acoustic embeddings
// ([Classifier]), score fusion with the phonetic matcher ([Fuser]),
// confidence calibration and routing ([Calibrator]) and the [Engine] that
// runs the full pipeline for one request.
//
// The pipeline stages are independent and individually testable; the
// [Engine] is the only component that touches more than one of them.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/vocalaid/vocalaid/pkg/intent"
	"github.com/vocalaid/vocalaid/pkg/refstore"
)

// ErrNoReferenceData is returned by [Classifier.Scores] when the store
// holds no reference records at all. Expected during cold start; the
// [Engine] absorbs it and classifies on the phonetic signal alone.
var ErrNoReferenceData = errors.New("classify: no reference data in store")

const (
	defaultK     = 8
	defaultAlpha = 0.5
)

// ClassifierOption is a functional option for configuring a [Classifier].
type ClassifierOption func(*Classifier)

// WithK sets how many nearest neighbors vote. Default: 8. Values below 1
// are ignored.
func WithK(k int) ClassifierOption {
	return func(c *Classifier) {
		if k >= 1 {
			c.k = k
		}
	}
}

// WithAlpha sets the blend between neighbor votes and centroid
// similarity: rawScore = alpha·votes + (1-alpha)·centroid. Default: 0.5.
// Values outside [0, 1] are ignored.
func WithAlpha(a float64) ClassifierOption {
	return func(c *Classifier) {
		if a >= 0 && a <= 1 {
			c.alpha = a
		}
	}
}

// Classifier scores intents for a query vector from the k nearest
// reference records blended with per-intent centroid similarity. The
// centroid term keeps scores stable for intents with very few reference
// samples, where a single outlier neighbor would otherwise dominate.
//
// Classifier is read-only after construction and safe for concurrent use.
type Classifier struct {
	store refstore.Store
	k     int
	alpha float64
}

// NewClassifier returns a [Classifier] over store with the supplied
// options applied.
func NewClassifier(store refstore.Store, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		store: store,
		k:     defaultK,
		alpha: defaultAlpha,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// K reports the configured neighbor count.
func (c *Classifier) K() int { return c.k }

// Scores classifies vector against the reference store and returns the
// per-intent score distribution, normalized to sum to 1 over nonzero
// intents.
//
// Each of the k nearest neighbors votes for its intent with weight equal
// to its cosine similarity (negative similarities clamp to zero).
// Separately, every intent present in the store contributes the cosine
// similarity of the query to its centroid, again clamped at zero. The two
// terms blend as alpha·normalizedVotes + (1-alpha)·centroidSimilarity.
//
// An empty store returns [ErrNoReferenceData]. Dimension and zero-vector
// violations surface as the store's [refstore.DimensionError] and
// [refstore.ErrZeroVector].
func (c *Classifier) Scores(ctx context.Context, vector []float32) (intent.Scores, error) {
	matches, err := c.store.Query(ctx, vector, c.k)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNoReferenceData
	}

	// Vote mass per intent from the k neighbors.
	votes := make(map[intent.Intent]float64, len(matches))
	total := 0.0
	for _, m := range matches {
		w := m.Similarity
		if w < 0 {
			w = 0
		}
		votes[m.Intent] += w
		total += w
	}

	// Centroid similarity for every intent with at least one record, not
	// just those among the neighbors.
	scores := make(intent.Scores)
	for _, it := range intent.All() {
		centroid, err := c.store.Centroid(ctx, it)
		if err != nil {
			return nil, fmt.Errorf("classify: centroid for %s: %w", it, err)
		}
		if centroid == nil {
			continue
		}

		sim := refstore.Cosine(vector, centroid)
		if sim < 0 {
			sim = 0
		}

		voteShare := 0.0
		if total > 0 {
			voteShare = votes[it] / total
		}

		if raw := c.alpha*voteShare + (1-c.alpha)*sim; raw > 0 {
			scores[it] = raw
		}
	}
	return scores.Normalize(), nil
}
