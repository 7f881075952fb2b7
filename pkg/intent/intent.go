// Package intent defines the closed vocabulary of patient needs the
// classifier resolves to, together with the score, result and feedback
// shapes shared by every layer of the pipeline.
//
// The intent set is fixed at compile time: impaired-speech classification
// depends on a small, well-rehearsed set of needs with curated reference
// data per intent. Adding an intent is a config-and-data change plus a new
// constant here, never a runtime mutation.
//
// [Unknown] is a sentinel, not a label: it is what a classification resolves
// to when no signal exists, and it never tags a reference record.
package intent

import (
	"errors"
	"fmt"
	"strings"
)

// Intent is one discrete patient need.
type Intent string

const (
	Help      Intent = "HELP"
	Water     Intent = "WATER"
	Yes       Intent = "YES"
	No        Intent = "NO"
	Pain      Intent = "PAIN"
	Emergency Intent = "EMERGENCY"
	Bathroom  Intent = "BATHROOM"
	Tired     Intent = "TIRED"
	Cold      Intent = "COLD"
	Hot       Intent = "HOT"

	// Unknown is the sentinel result when classification has no usable
	// signal. It is not classifiable and cannot label reference data.
	Unknown Intent = "UNKNOWN"
)

// all holds the classifiable intents in canonical order. The order is the
// deterministic tie-break everywhere two intents score equally.
var all = []Intent{Help, Water, Yes, No, Pain, Emergency, Bathroom, Tired, Cold, Hot}

// rank maps each intent to its canonical position; Unknown sorts last.
var rank = func() map[Intent]int {
	m := make(map[Intent]int, len(all)+1)
	for i, it := range all {
		m[it] = i
	}
	m[Unknown] = len(all)
	return m
}()

// ErrUnknownIntent is returned by [Parse] for strings outside the vocabulary.
var ErrUnknownIntent = errors.New("not a recognised intent")

// All returns the classifiable intents in canonical order. The returned
// slice is a copy and may be reordered freely by the caller.
func All() []Intent {
	out := make([]Intent, len(all))
	copy(out, all)
	return out
}

// Parse converts a wire string into an [Intent]. Matching is
// case-insensitive and ignores surrounding whitespace. "UNKNOWN" parses to
// [Unknown]; anything else outside the vocabulary fails with
// [ErrUnknownIntent].
func Parse(s string) (Intent, error) {
	it := Intent(strings.ToUpper(strings.TrimSpace(s)))
	if !it.IsValid() {
		return Unknown, fmt.Errorf("%q: %w", s, ErrUnknownIntent)
	}
	return it, nil
}

// IsValid reports whether i is a recognised value, including [Unknown].
func (i Intent) IsValid() bool {
	_, ok := rank[i]
	return ok
}

// Classifiable reports whether i can label a reference record or a feedback
// correction. Unknown and unrecognised values are not classifiable.
func (i Intent) Classifiable() bool {
	return i != Unknown && i.IsValid()
}
