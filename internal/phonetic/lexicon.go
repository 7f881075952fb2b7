package phonetic

import "github.com/vocalaid/vocalaid/pkg/intent"

// defaultLexicon maps every classifiable intent to its known phrase
// variants: the canonical word, documented garbled renditions produced by
// impaired speech (clipped endings, vowel substitutions, merged syllables)
// and related words a patient uses for the same need. Variants are
// normalized with [Normalize] before matching, so case, punctuation and
// spacing here are cosmetic.
//
// A variant must appear under exactly one intent; duplicated entries would
// make the documented forms tie instead of resolving.
func defaultLexicon() map[intent.Intent][]string {
	return map[intent.Intent][]string{
		intent.Help: {
			"help", "halp", "elp", "hel",
			"alpe", "ulpe", "elpe", "alp", "ulp",
			"nurse", "doctor", "please", "assist", "care",
		},
		intent.Water: {
			"water", "wata", "wate", "wat", "wawa",
			"thirsty", "thirst", "thirs",
			"drink", "juice", "tea", "coffee",
		},
		intent.Yes: {
			"yes", "yeah", "yep", "yup", "ya",
		},
		intent.No: {
			"no", "nope", "nah", "not",
		},
		intent.Pain: {
			"pain", "pane", "pai",
			"hurt", "hurts", "hort",
			"ache", "sore",
		},
		intent.Emergency: {
			"emergency", "emergenc", "emergen",
			"urgent", "danger",
			"fall", "fell", "fel",
			"chest", "cant breathe", "breathe",
			"dying", "severe",
		},
		intent.Bathroom: {
			"bathroom", "bathrum", "barum",
			"toilet", "toylet", "toilt",
			"potty", "pee", "loo", "restroom",
		},
		intent.Tired: {
			"tired", "tird", "tire",
			"sleepy", "slepy", "sleep", "slep",
			"rest", "nap",
		},
		intent.Cold: {
			"cold", "kold", "col",
			"freezing", "freezin", "chilly", "chily",
			"blanket", "blanke",
		},
		intent.Hot: {
			"hot", "haat", "ot",
			"warm", "warem",
			"sweating", "sweaty", "burning", "burnin",
		},
	}
}
