package classify

import (
	"github.com/vocalaid/vocalaid/pkg/intent"
)

const (
	defaultMarginScale        = 0.25
	defaultMinSupport         = 5
	defaultConfirmThreshold   = 0.75
	defaultUncertainThreshold = 0.4
	defaultEmergencyThreshold = 0.6

	// maxAlternatives caps how many runner-up intents a result carries.
	maxAlternatives = 2
)

// CalibratorOption is a functional option for configuring a [Calibrator].
type CalibratorOption func(*Calibrator)

// WithMarginScale sets the margin at which the lead over the runner-up
// stops increasing confidence. Default: 0.25. Non-positive values are
// ignored.
func WithMarginScale(s float64) CalibratorOption {
	return func(c *Calibrator) {
		if s > 0 {
			c.marginScale = s
		}
	}
}

// WithMinSupport sets how many reference records the winning intent needs
// before the cold-start penalty fully lifts. Default: 5. Zero disables
// the penalty; negative values are ignored.
func WithMinSupport(n int) CalibratorOption {
	return func(c *Calibrator) {
		if n >= 0 {
			c.minSupport = n
		}
	}
}

// WithConfirmThreshold sets the confidence at or above which a result is
// confirmed. Default: 0.75. Values outside (0, 1] are ignored.
func WithConfirmThreshold(t float64) CalibratorOption {
	return func(c *Calibrator) {
		if t > 0 && t <= 1 {
			c.confirm = t
		}
	}
}

// WithUncertainThreshold sets the confidence below which a result is
// uncertain. Default: 0.4. Values outside (0, 1] are ignored.
func WithUncertainThreshold(t float64) CalibratorOption {
	return func(c *Calibrator) {
		if t > 0 && t <= 1 {
			c.uncertain = t
		}
	}
}

// WithEmergencyThreshold sets the fused EMERGENCY score above which the
// safety override fires. Default: 0.6. Values outside (0, 1] are ignored.
func WithEmergencyThreshold(t float64) CalibratorOption {
	return func(c *Calibrator) {
		if t > 0 && t <= 1 {
			c.emergency = t
		}
	}
}

// Calibrator turns a fused score distribution into a confidence value and
// a routing decision.
//
// Confidence is the product of three factors, each in [0, 1]: the top
// fused score, the margin over the runner-up scaled by marginScale and a
// cold-start factor that discounts intents backed by few reference
// records. A high top score with a slim margin, or strong agreement on an
// intent the store has barely seen, both calibrate down instead of
// presenting as certainty.
//
// Calibrator is read-only after construction and safe for concurrent use.
type Calibrator struct {
	marginScale float64
	minSupport  int
	confirm     float64
	uncertain   float64
	emergency   float64
}

// NewCalibrator returns a [Calibrator] with the supplied options applied.
func NewCalibrator(opts ...CalibratorOption) *Calibrator {
	c := &Calibrator{
		marginScale: defaultMarginScale,
		minSupport:  defaultMinSupport,
		confirm:     defaultConfirmThreshold,
		uncertain:   defaultUncertainThreshold,
		emergency:   defaultEmergencyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Calibrate produces the final [intent.Result] for a fused distribution.
// support maps each intent to its reference-record count at query time;
// model identifies which signals contributed and is carried through
// unchanged.
//
// An empty distribution resolves to UNKNOWN with zero confidence and
// status uncertain. The EMERGENCY safety override is evaluated after the
// normal confidence tiers and replaces them when the winning intent is
// EMERGENCY with a fused score strictly above the emergency threshold.
// No other intent can reach [intent.StatusAutoTriggered].
func (c *Calibrator) Calibrate(fused intent.Scores, support map[intent.Intent]int, model intent.ModelUsed) intent.Result {
	ranked := fused.Ranked()
	if len(ranked) == 0 {
		return intent.Result{
			Intent:     intent.Unknown,
			Confidence: 0,
			Status:     intent.StatusUncertain,
			Scores:     intent.Scores{},
			ModelUsed:  model,
		}
	}

	top := ranked[0]
	second := 0.0
	if len(ranked) > 1 {
		second = ranked[1].Score
	}
	margin := top.Score - second

	confidence := top.Score * clamp01(margin/c.marginScale) * c.coldStart(support[top.Intent])

	alternatives := ranked[1:]
	if len(alternatives) > maxAlternatives {
		alternatives = alternatives[:maxAlternatives]
	}

	status := c.route(confidence)
	if top.Intent == intent.Emergency && top.Score > c.emergency {
		status = intent.StatusAutoTriggered
	}

	return intent.Result{
		Intent:       top.Intent,
		Confidence:   confidence,
		Status:       status,
		Scores:       fused,
		Alternatives: alternatives,
		ModelUsed:    model,
	}
}

// route maps a calibrated confidence to its tier. Boundaries are
// inclusive at the lower edge of each tier: 0.75 confirms, 0.4 asks for
// confirmation.
func (c *Calibrator) route(confidence float64) intent.Status {
	switch {
	case confidence >= c.confirm:
		return intent.StatusConfirmed
	case confidence >= c.uncertain:
		return intent.StatusNeedsConfirmation
	default:
		return intent.StatusUncertain
	}
}

// coldStart returns the confidence discount for an intent backed by
// support reference records: 0.5 at zero support, rising linearly to 1 at
// minSupport records and flat beyond.
func (c *Calibrator) coldStart(support int) float64 {
	if c.minSupport <= 0 {
		return 1
	}
	frac := float64(support) / float64(c.minSupport)
	if frac > 1 {
		frac = 1
	}
	return 0.5 + 0.5*frac
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
