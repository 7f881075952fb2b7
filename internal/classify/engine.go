package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vocalaid/vocalaid/internal/observe"
	"github.com/vocalaid/vocalaid/internal/phonetic"
	"github.com/vocalaid/vocalaid/pkg/intent"
	"github.com/vocalaid/vocalaid/pkg/refstore"
)

// ErrNoInput is returned by [Engine.Classify] when a request carries
// neither an embedding vector nor a transcription. A transcription of only
// whitespace counts as absent.
var ErrNoInput = errors.New("classify: no vector and no transcription")

// Request is one classification input. Either field may be absent, but not
// both.
type Request struct {
	// Vector is the acoustic embedding of the utterance, length D.
	Vector []float32 `json:"vector,omitempty"`

	// Transcription is the (possibly garbled) speech-to-text output.
	Transcription string `json:"transcription,omitempty"`
}

// Tunables collects every pipeline parameter that can change at runtime.
// [Engine.Apply] swaps a complete set atomically, so build one from
// [DefaultTunables] or from validated config rather than from a zero value.
type Tunables struct {
	// K and Alpha configure the embedding classifier (see [WithK],
	// [WithAlpha]).
	K     int
	Alpha float64

	// EmbeddingWeight and PhoneticWeight configure fusion (see
	// [WithWeights]).
	EmbeddingWeight float64
	PhoneticWeight  float64

	// MarginScale through EmergencyThreshold configure calibration (see
	// the corresponding Calibrator options).
	MarginScale        float64
	MinSupport         int
	ConfirmThreshold   float64
	UncertainThreshold float64
	EmergencyThreshold float64

	// MaxCodeDistance and ExtraVariants configure the phonetic matcher
	// (see [phonetic.WithMaxCodeDistance], [phonetic.WithVariants]).
	MaxCodeDistance int
	ExtraVariants   map[intent.Intent][]string
}

// DefaultTunables returns the parameter set the engine ships with.
func DefaultTunables() Tunables {
	return Tunables{
		K:                  defaultK,
		Alpha:              defaultAlpha,
		EmbeddingWeight:    defaultEmbeddingWeight,
		PhoneticWeight:     defaultPhoneticWeight,
		MarginScale:        defaultMarginScale,
		MinSupport:         defaultMinSupport,
		ConfirmThreshold:   defaultConfirmThreshold,
		UncertainThreshold: defaultUncertainThreshold,
		EmergencyThreshold: defaultEmergencyThreshold,
		MaxCodeDistance:    2,
	}
}

// pipeline is one immutable compilation of the tunables. Classify loads a
// pipeline once per request, so a concurrent [Engine.Apply] never mixes old
// and new parameters within a single classification.
type pipeline struct {
	matcher    *phonetic.Matcher
	classifier *Classifier
	fuser      *Fuser
	calibrator *Calibrator
}

// Engine runs the full classification pipeline: boundary validation,
// concurrent phonetic and embedding scoring, fusion, calibration, and
// telemetry. It is safe for concurrent use; [Engine.Apply] may be called
// at any time to swap tunables without pausing requests.
type Engine struct {
	store   refstore.Store
	metrics *observe.Metrics
	pipe    atomic.Pointer[pipeline]
}

// NewEngine returns an [Engine] over store with the given tunables. A nil
// metrics falls back to [observe.DefaultMetrics].
func NewEngine(store refstore.Store, metrics *observe.Metrics, t Tunables) *Engine {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	e := &Engine{store: store, metrics: metrics}
	e.Apply(t)
	return e
}

// Apply atomically replaces the engine's tunables. Requests already in
// flight finish on the parameters they started with.
func (e *Engine) Apply(t Tunables) {
	e.pipe.Store(&pipeline{
		matcher: phonetic.New(
			phonetic.WithMaxCodeDistance(t.MaxCodeDistance),
			phonetic.WithVariants(t.ExtraVariants),
		),
		classifier: NewClassifier(e.store,
			WithK(t.K),
			WithAlpha(t.Alpha),
		),
		fuser: NewFuser(
			WithWeights(t.EmbeddingWeight, t.PhoneticWeight),
		),
		calibrator: NewCalibrator(
			WithMarginScale(t.MarginScale),
			WithMinSupport(t.MinSupport),
			WithConfirmThreshold(t.ConfirmThreshold),
			WithUncertainThreshold(t.UncertainThreshold),
			WithEmergencyThreshold(t.EmergencyThreshold),
		),
	})
}

// Classify runs one request through the pipeline and returns the calibrated
// result.
//
// Requests with neither input fail with [ErrNoInput]; a malformed vector
// fails with [refstore.DimensionError] or [refstore.ErrZeroVector] before
// any scoring work. An empty reference store is not an error: the request
// downgrades to whatever signal remains, and with no signal at all the
// result is UNKNOWN with status uncertain.
func (e *Engine) Classify(ctx context.Context, req Request) (intent.Result, error) {
	start := time.Now()

	transcription := strings.TrimSpace(req.Transcription)
	hasVector := len(req.Vector) > 0
	if !hasVector && transcription == "" {
		return intent.Result{}, ErrNoInput
	}
	if hasVector {
		if got, want := len(req.Vector), e.store.Dimensions(); got != want {
			return intent.Result{}, &refstore.DimensionError{Got: got, Want: want}
		}
		if refstore.IsZeroVector(req.Vector) {
			return intent.Result{}, refstore.ErrZeroVector
		}
	}

	p := e.pipe.Load()

	var (
		embedding intent.Scores
		phonScore intent.Scores
		support   map[intent.Intent]int
	)

	eg, egCtx := errgroup.WithContext(ctx)

	// Embedding pathway. A store with no reference data downgrades the
	// request to phonetic-only instead of failing it.
	if hasVector {
		eg.Go(func() error {
			s, err := p.classifier.Scores(egCtx, req.Vector)
			if err != nil {
				if errors.Is(err, ErrNoReferenceData) {
					return nil
				}
				return err
			}
			embedding = s
			return nil
		})
	}

	// Phonetic pathway, pure compute.
	if transcription != "" {
		eg.Go(func() error {
			phonScore = p.matcher.Scores(transcription)
			return nil
		})
	}

	// Reference support counts feed the cold-start confidence factor.
	eg.Go(func() error {
		var err error
		support, err = e.store.CountByIntent(egCtx)
		if err != nil {
			return fmt.Errorf("classify: support counts: %w", err)
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return intent.Result{}, err
	}

	fused, model := p.fuser.Fuse(embedding, phonScore)
	res := p.calibrator.Calibrate(fused, support, model)

	elapsed := time.Since(start)
	e.metrics.RecordClassification(ctx, string(res.Intent), string(res.Status), string(res.ModelUsed), elapsed)
	log := observe.Logger(ctx)
	if res.Status == intent.StatusAutoTriggered {
		e.metrics.RecordEmergencyAlert(ctx)
		log.Warn("emergency override fired",
			"confidence", res.Confidence,
			"fused_score", res.Scores[intent.Emergency],
		)
	}
	log.Debug("intent classified",
		"intent", res.Intent,
		"status", res.Status,
		"confidence", res.Confidence,
		"model", res.ModelUsed,
		"duration", elapsed,
	)
	return res, nil
}
