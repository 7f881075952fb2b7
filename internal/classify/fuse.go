package classify

import (
	"maps"

	"github.com/vocalaid/vocalaid/pkg/intent"
)

const (
	defaultEmbeddingWeight = 0.6
	defaultPhoneticWeight  = 0.4
)

// FuserOption is a functional option for configuring a [Fuser].
type FuserOption func(*Fuser)

// WithWeights sets the relative weights of the embedding and phonetic
// signals. Defaults: 0.6 and 0.4. Only the ratio matters, since the fused
// distribution is renormalized. A zero weight silences that signal in
// hybrid fusion; negative weights or an all-zero pair are ignored.
func WithWeights(embedding, phonetic float64) FuserOption {
	return func(f *Fuser) {
		if embedding >= 0 && phonetic >= 0 && embedding+phonetic > 0 {
			f.we = embedding
			f.wp = phonetic
		}
	}
}

// Fuser merges the embedding classifier's and the phonetic matcher's
// score distributions into one. When a signal is entirely absent (an
// all-zero map: no transcription, or no reference data) the other signal
// carries full weight instead of the total silently shrinking.
//
// Fuser is read-only after construction and safe for concurrent use.
type Fuser struct {
	we, wp float64
}

// NewFuser returns a [Fuser] with the supplied options applied.
func NewFuser(opts ...FuserOption) *Fuser {
	f := &Fuser{we: defaultEmbeddingWeight, wp: defaultPhoneticWeight}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fuse combines the two signals and reports which of them contributed.
// The result is normalized to sum to 1 over nonzero intents; both inputs
// are left unmodified. When both signals are absent the fused map is
// empty and the model is [intent.ModelNone].
func (f *Fuser) Fuse(embedding, phonetic intent.Scores) (intent.Scores, intent.ModelUsed) {
	eAbsent := embedding.IsZero()
	pAbsent := phonetic.IsZero()

	switch {
	case eAbsent && pAbsent:
		return intent.Scores{}, intent.ModelNone
	case pAbsent:
		return maps.Clone(embedding).Normalize(), intent.ModelEmbedding
	case eAbsent:
		return maps.Clone(phonetic).Normalize(), intent.ModelPhonetic
	}

	fused := make(intent.Scores, len(embedding)+len(phonetic))
	for it, s := range embedding {
		fused[it] += f.we * s
	}
	for it, s := range phonetic {
		fused[it] += f.wp * s
	}
	return fused.Normalize(), intent.ModelHybrid
}
