// Package phonetic scores transcribed text against the known phrase
// variants of each care intent using Double Metaphone phonetic encoding
// combined with Jaro-Winkler string similarity.
//
// The algorithm proceeds in three stages:
//
//  1. Normalization: input text is uppercased, punctuation and other
//     non-letter characters are stripped and whitespace is collapsed.
//     Lexicon variants go through the identical transformation at
//     construction time, so comparison always operates on the same
//     ground.
//
//  2. Banded scoring: for every variant, each same-length token window of
//     the input is compared against it. Identical normalized text scores
//     1.0 and an identical phonetic code scores 0.9; otherwise the
//     Levenshtein distance between the Double Metaphone codes selects a
//     band that decays with distance, refined within the band by the
//     Jaro-Winkler similarity of the strings. Distances beyond the
//     configured maximum score 0. Bands never overlap, so a closer
//     phonetic match always outranks a farther one.
//
//  3. Distribution: each intent keeps its maximum score over all variant
//     and window pairs; the nonzero intent scores are then normalized to
//     sum to 1 so the output shape matches the embedding classifier's.
//
// Windows are encoded as the concatenation of their tokens, which makes
// the matcher tolerant of slurred boundary merging: "cantbreathe" and
// "cant breathe" produce the same code.
//
// An empty or whitespace-only input yields an empty score map and no
// error. Absent transcription is an expected condition, resolved by the
// fusion stage downstream.
package phonetic

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/vocalaid/vocalaid/pkg/intent"
)

const (
	defaultMaxCodeDistance = 2

	// literalScore is awarded when the normalized input window equals the
	// variant text outright; codeScore when only the phonetic codes agree.
	// The gap between the two resolves code collisions across intents in
	// favor of the intent that documents the exact form.
	literalScore = 1.0
	codeScore    = 0.9
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithMaxCodeDistance sets the maximum Levenshtein distance between
// phonetic codes that still produces a nonzero score. Default: 2.
// Values are clamped to [0, 9]; above 9 the distance bands would start to
// overlap and the monotonic-decay guarantee would be lost.
func WithMaxCodeDistance(d int) Option {
	return func(m *Matcher) {
		if d < 0 {
			d = 0
		}
		if d > 9 {
			d = 9
		}
		m.maxDist = d
	}
}

// WithVariants adds phrase variants on top of the built-in lexicon.
// Variants for non-classifiable intents are ignored, as are entries that
// normalize to the empty string or duplicate an existing variant of the
// same intent.
func WithVariants(extra map[intent.Intent][]string) Option {
	return func(m *Matcher) {
		for it, vs := range extra {
			m.extra[it] = append(m.extra[it], vs...)
		}
	}
}

// variant is a precompiled lexicon entry. concat is the normalized text
// with spaces removed, the basis for both phonetic encoding and string
// similarity.
type variant struct {
	concat    string
	tokens    int
	primary   string
	secondary string
}

// window is one token window of the input, encoded once and compared
// against every variant of the same token count.
type window struct {
	concat    string
	primary   string
	secondary string
}

// Matcher scores text against the per-intent phrase lexicon. All methods
// are safe for concurrent use — the Matcher is read-only after
// construction.
type Matcher struct {
	maxDist int
	extra   map[intent.Intent][]string
	lexicon map[intent.Intent][]variant
	count   int
}

// New returns a [Matcher] over the built-in lexicon plus any variants
// supplied via [WithVariants]. All variants are normalized and
// phonetically encoded once, here.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		maxDist: defaultMaxCodeDistance,
		extra:   make(map[intent.Intent][]string),
	}
	for _, o := range opts {
		o(m)
	}
	m.compile()
	return m
}

// VariantCount reports how many distinct variants the compiled lexicon
// holds across all intents.
func (m *Matcher) VariantCount() int { return m.count }

// Scores matches text against the lexicon and returns the per-intent
// score distribution, normalized to sum to 1 over nonzero intents.
// Empty or whitespace-only text returns an empty map: no signal, not an
// error.
func (m *Matcher) Scores(text string) intent.Scores {
	norm := Normalize(text)
	if norm == "" {
		return intent.Scores{}
	}
	tokens := strings.Split(norm, " ")

	// Windows are shared across variants of the same token count, so each
	// window is encoded exactly once per request.
	windows := make(map[int][]window)
	windowsOf := func(n int) []window {
		if w, ok := windows[n]; ok {
			return w
		}
		var out []window
		for i := 0; i+n <= len(tokens); i++ {
			concat := strings.Join(tokens[i:i+n], "")
			p, s := matchr.DoubleMetaphone(concat)
			out = append(out, window{concat: concat, primary: p, secondary: s})
		}
		windows[n] = out
		return out
	}

	scores := make(intent.Scores)
	for it, variants := range m.lexicon {
		var top float64
		for _, v := range variants {
			for _, w := range windowsOf(v.tokens) {
				if s := m.score(w, v); s > top {
					top = s
				}
			}
		}
		if top > 0 {
			scores[it] = top
		}
	}
	return scores.Normalize()
}

// score rates a single window against a single variant.
func (m *Matcher) score(w window, v variant) float64 {
	if w.concat == v.concat {
		return literalScore
	}
	d := codeDistance(w, v)
	switch {
	case d == 0:
		return codeScore
	case d < 0 || d > m.maxDist:
		return 0
	}
	band := codeScore * (1 - float64(d)/float64(m.maxDist+1))
	jw := matchr.JaroWinkler(w.concat, v.concat, false)
	return band * (0.9 + 0.1*jw)
}

// codeDistance returns the minimum Levenshtein distance between any
// nonempty code of the window and any nonempty code of the variant, or -1
// when either side has no code at all.
func codeDistance(w window, v variant) int {
	best := -1
	for _, wc := range [2]string{w.primary, w.secondary} {
		if wc == "" {
			continue
		}
		for _, vc := range [2]string{v.primary, v.secondary} {
			if vc == "" {
				continue
			}
			d := matchr.Levenshtein(wc, vc)
			if best < 0 || d < best {
				best = d
			}
		}
	}
	return best
}

// compile builds the precomputed lexicon from the built-in defaults plus
// configured extras. Later duplicates of an already-registered variant
// are dropped, so built-in entries win over configured ones.
func (m *Matcher) compile() {
	m.lexicon = make(map[intent.Intent][]variant)
	seen := make(map[intent.Intent]map[string]struct{})

	add := func(it intent.Intent, phrase string) {
		if !it.Classifiable() {
			return
		}
		norm := Normalize(phrase)
		if norm == "" {
			return
		}
		if seen[it] == nil {
			seen[it] = make(map[string]struct{})
		}
		if _, dup := seen[it][norm]; dup {
			return
		}
		seen[it][norm] = struct{}{}

		concat := strings.ReplaceAll(norm, " ", "")
		p, s := matchr.DoubleMetaphone(concat)
		m.lexicon[it] = append(m.lexicon[it], variant{
			concat:    concat,
			tokens:    1 + strings.Count(norm, " "),
			primary:   p,
			secondary: s,
		})
		m.count++
	}

	for it, phrases := range defaultLexicon() {
		for _, p := range phrases {
			add(it, p)
		}
	}
	for it, phrases := range m.extra {
		for _, p := range phrases {
			add(it, p)
		}
	}
}

// Normalize uppercases s, strips every non-letter rune and collapses
// whitespace runs to single spaces. The identical transformation is
// applied to input text and to lexicon variants, so matching is
// insensitive to case, punctuation and spacing.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
