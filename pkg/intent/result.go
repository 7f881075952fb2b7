package intent

import (
	"slices"
	"strings"
)

// Status routes a classification to the appropriate care flow.
type Status string

const (
	// StatusConfirmed means confidence cleared the auto-confirm tier and
	// the action can proceed without asking again.
	StatusConfirmed Status = "confirmed"

	// StatusNeedsConfirmation means the winner is plausible but the
	// caregiver should be shown alternatives to disambiguate.
	StatusNeedsConfirmation Status = "needs_confirmation"

	// StatusUncertain means the winner is reported for context only and the
	// patient should be prompted to repeat.
	StatusUncertain Status = "uncertain"

	// StatusAutoTriggered is the emergency override: the alert fires
	// immediately without waiting for confirmation. Only [Emergency] can
	// reach it.
	StatusAutoTriggered Status = "auto_triggered"
)

// IsValid reports whether s is a recognised status.
func (s Status) IsValid() bool {
	switch s {
	case StatusConfirmed, StatusNeedsConfirmation, StatusUncertain, StatusAutoTriggered:
		return true
	}
	return false
}

// ModelUsed identifies which signal(s) contributed to a classification.
type ModelUsed string

const (
	ModelEmbedding ModelUsed = "embedding"
	ModelPhonetic  ModelUsed = "phonetic"
	ModelHybrid    ModelUsed = "hybrid"
	ModelNone      ModelUsed = "none"
)

// Scores maps each considered intent to its share of the total signal.
// A normalized Scores sums to 1 over its positive entries.
type Scores map[Intent]float64

// IsZero reports whether no intent carries a positive score, i.e. the
// signal is absent.
func (s Scores) IsZero() bool {
	for _, v := range s {
		if v > 0 {
			return false
		}
	}
	return true
}

// Normalize scales the positive entries of s in place so they sum to 1 and
// drops entries that are zero or negative. An all-zero map is left empty
// rather than divided by zero. Returns s for chaining.
//
// The sum accumulates in canonical intent order, so equal inputs normalize
// to bit-identical outputs regardless of map iteration order.
func (s Scores) Normalize() Scores {
	keys := make([]Intent, 0, len(s))
	for it, v := range s {
		if v <= 0 {
			delete(s, it)
			continue
		}
		keys = append(keys, it)
	}
	slices.SortFunc(keys, compareIntents)
	var sum float64
	for _, it := range keys {
		sum += s[it]
	}
	if sum == 0 {
		return s
	}
	for it, v := range s {
		s[it] = v / sum
	}
	return s
}

// compareIntents orders intents canonically, with anything outside the
// vocabulary after the known intents by name.
func compareIntents(a, b Intent) int {
	ra, aKnown := rank[a]
	rb, bKnown := rank[b]
	switch {
	case aKnown && bKnown:
		return ra - rb
	case aKnown:
		return -1
	case bKnown:
		return 1
	default:
		return strings.Compare(string(a), string(b))
	}
}

// Ranked returns the positive-scoring intents ordered by descending score,
// equal scores by canonical intent order. The ordering is deterministic for
// any map iteration order.
func (s Scores) Ranked() []Alternative {
	out := make([]Alternative, 0, len(s))
	for it, v := range s {
		if v > 0 {
			out = append(out, Alternative{Intent: it, Score: v})
		}
	}
	slices.SortFunc(out, func(a, b Alternative) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return compareIntents(a.Intent, b.Intent)
		}
	})
	return out
}

// Alternative pairs an intent with its fused score, used both for ranking
// and for the runner-up list shown to caregivers.
type Alternative struct {
	Intent Intent  `json:"intent"`
	Score  float64 `json:"score"`
}

// Result is the outcome of one classification request. It is immutable
// once produced and never persisted by the engine itself.
type Result struct {
	// Intent is the winning intent, or [Unknown] when no signal existed.
	Intent Intent `json:"intent"`

	// Confidence is the calibrated confidence in [0,1]. It is not the raw
	// winning score: margin and reference support both shape it.
	Confidence float64 `json:"confidence"`

	// Status is the routing decision derived from Confidence.
	Status Status `json:"status"`

	// Scores is the fused, normalized distribution over considered intents.
	Scores Scores `json:"scores"`

	// Alternatives lists up to two runner-up intents by descending score.
	Alternatives []Alternative `json:"alternatives"`

	// ModelUsed records which signal(s) produced the distribution.
	ModelUsed ModelUsed `json:"model_used"`
}
