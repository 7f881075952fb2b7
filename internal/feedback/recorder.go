// Package feedback turns caregiver verdicts into reference-store growth.
//
// A feedback event says whether a classification was right. A correct
// verdict reinforces the predicted intent with the query vector; an
// incorrect one inserts the vector under the caregiver's corrected intent.
// Either way the store only ever grows: a wrong neighbor is outweighed
// over time, never rewritten.
//
// The original query vector is recovered either inline from the submission
// or through a short-lived cache of recent classifications keyed by
// reference ID (see [Recorder.Remember]). Feedback that resolves to no
// vector at all is still accepted, but the outcome reports it as not
// applied so callers can tell "learned" apart from "acknowledged".
//
// Every event, applied or not, is appended to a JSONL audit trail when one
// is configured.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/vocalaid/vocalaid/internal/observe"
	"github.com/vocalaid/vocalaid/pkg/intent"
	"github.com/vocalaid/vocalaid/pkg/refstore"
)

// ErrMissingCorrection is returned by [Recorder.Record] when a verdict of
// incorrect does not say what the right intent was.
var ErrMissingCorrection = errors.New("feedback: incorrect verdict without correct_intent")

const (
	defaultPendingTTL = 10 * time.Minute
	defaultPendingCap = 512
)

// Option is a functional option for configuring a [Recorder].
type Option func(*Recorder)

// WithPendingTTL sets how long a classification stays referenceable for
// feedback. Default: 10 minutes. Non-positive durations are ignored.
func WithPendingTTL(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.pendingTTL = d
		}
	}
}

// WithPendingCap sets how many pending classifications are kept at most.
// Default: 512. Values below 1 are ignored.
func WithPendingCap(n int) Option {
	return func(r *Recorder) {
		if n >= 1 {
			r.pendingCap = n
		}
	}
}

// WithAuditLog enables the JSONL audit trail at path.
func WithAuditLog(path string) Option {
	return func(r *Recorder) {
		if path != "" {
			r.audit = newAuditLog(path)
		}
	}
}

// pending is what the recorder remembers about a recent classification.
type pending struct {
	vector    []float32
	predicted intent.Intent
}

// Recorder consumes caregiver feedback and applies the learning rules to
// the reference store. It is safe for concurrent use.
type Recorder struct {
	store   refstore.Store
	metrics *observe.Metrics
	audit   *auditLog

	pendingTTL time.Duration
	pendingCap int
	pending    *expirable.LRU[string, pending]
}

// NewRecorder returns a [Recorder] over store with the supplied options
// applied. A nil metrics falls back to [observe.DefaultMetrics].
func NewRecorder(store refstore.Store, metrics *observe.Metrics, opts ...Option) *Recorder {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	r := &Recorder{
		store:      store,
		metrics:    metrics,
		pendingTTL: defaultPendingTTL,
		pendingCap: defaultPendingCap,
	}
	for _, o := range opts {
		o(r)
	}
	r.pending = expirable.NewLRU[string, pending](r.pendingCap, nil, r.pendingTTL)
	return r
}

// Remember caches the query vector and prediction of a classification so
// that a later feedback submission can point at it by ID instead of
// resending the vector. Entries expire after the pending TTL.
func (r *Recorder) Remember(id string, vector []float32, predicted intent.Intent) {
	if id == "" {
		return
	}
	r.pending.Add(id, pending{
		vector:    slices.Clone(vector),
		predicted: predicted,
	})
}

// Record consumes one feedback event. vector is the inline query vector
// from the submission, if it carried one; otherwise the event's reference
// ID is resolved against the pending cache.
//
// An incorrect verdict without a correction fails with
// [ErrMissingCorrection]. An event that resolves to no vector, or that
// confirms an UNKNOWN prediction, is accepted with Applied false and a
// Reason. A successful apply is exactly one append to the store; on store
// failure nothing was inserted and the error is returned.
func (r *Recorder) Record(ctx context.Context, ev intent.FeedbackEvent, vector []float32) (intent.FeedbackOutcome, error) {
	out, err := r.apply(ctx, ev, vector)
	r.writeAudit(ev, out, err)
	if err == nil {
		r.metrics.RecordFeedback(ctx, out.Applied)
	}
	return out, err
}

func (r *Recorder) apply(ctx context.Context, ev intent.FeedbackEvent, vector []float32) (intent.FeedbackOutcome, error) {
	// Fill the gaps from what the pending cache still knows about this
	// classification.
	vec := vector
	if ev.ReferenceID != "" {
		if p, ok := r.pending.Get(ev.ReferenceID); ok {
			if len(vec) == 0 {
				vec = p.vector
			}
			if ev.PredictedIntent == "" {
				ev.PredictedIntent = p.predicted
			}
		}
	}

	if !ev.PredictedIntent.IsValid() {
		return intent.FeedbackOutcome{}, fmt.Errorf("feedback: predicted intent %q: %w", ev.PredictedIntent, intent.ErrUnknownIntent)
	}

	target := ev.PredictedIntent
	if !ev.IsCorrect {
		if ev.CorrectIntent == "" {
			return intent.FeedbackOutcome{}, ErrMissingCorrection
		}
		if !ev.CorrectIntent.Classifiable() {
			return intent.FeedbackOutcome{}, fmt.Errorf("feedback: correct intent %q: %w", ev.CorrectIntent, refstore.ErrIntentNotClassifiable)
		}
		target = ev.CorrectIntent
	}

	if !target.Classifiable() {
		return intent.FeedbackOutcome{Reason: "nothing to learn from an UNKNOWN prediction"}, nil
	}
	if len(vec) == 0 {
		return intent.FeedbackOutcome{Reason: "no query vector available"}, nil
	}

	id, err := r.store.Insert(ctx, vec, target, refstore.SourceFeedback)
	if err != nil {
		return intent.FeedbackOutcome{}, fmt.Errorf("feedback: apply: %w", err)
	}

	// One mutation per classification: a double-submit on the same
	// reference must not learn twice.
	r.pending.Remove(ev.ReferenceID)
	r.metrics.ReferenceRecords.Add(ctx, 1)

	return intent.FeedbackOutcome{Applied: true, RecordID: id}, nil
}

func (r *Recorder) writeAudit(ev intent.FeedbackEvent, out intent.FeedbackOutcome, err error) {
	if r.audit == nil {
		return
	}
	e := auditEntry{Timestamp: time.Now().UTC(), Event: ev, Outcome: out}
	if err != nil {
		e.Error = err.Error()
	}
	if aerr := r.audit.append(e); aerr != nil {
		slog.Warn("feedback audit append failed", "err", aerr)
	}
}
