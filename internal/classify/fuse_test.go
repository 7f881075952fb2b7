package classify

import (
	"testing"

	"github.com/vocalaid/vocalaid/pkg/intent"
)

func TestFuser_Fuse(t *testing.T) {
	t.Parallel()

	t.Run("hybrid weighting", func(t *testing.T) {
		t.Parallel()
		f := NewFuser()
		embedding := intent.Scores{intent.Help: 0.7, intent.Water: 0.3}
		phonetic := intent.Scores{intent.Help: 0.5, intent.Pain: 0.5}

		fused, model := f.Fuse(embedding, phonetic)
		if model != intent.ModelHybrid {
			t.Errorf("model = %q, want %q", model, intent.ModelHybrid)
		}
		// 0.6·0.7+0.4·0.5, 0.6·0.3, 0.4·0.5; the weighted parts already
		// sum to one.
		if !approx(fused[intent.Help], 0.62) {
			t.Errorf("HELP = %v, want 0.62", fused[intent.Help])
		}
		if !approx(fused[intent.Water], 0.18) {
			t.Errorf("WATER = %v, want 0.18", fused[intent.Water])
		}
		if !approx(fused[intent.Pain], 0.2) {
			t.Errorf("PAIN = %v, want 0.2", fused[intent.Pain])
		}
	})

	t.Run("absent phonetic signal leaves embedding at full weight", func(t *testing.T) {
		t.Parallel()
		f := NewFuser()
		embedding := intent.Scores{intent.Help: 2, intent.Water: 2}

		fused, model := f.Fuse(embedding, nil)
		if model != intent.ModelEmbedding {
			t.Errorf("model = %q, want %q", model, intent.ModelEmbedding)
		}
		if !approx(fused[intent.Help], 0.5) || !approx(fused[intent.Water], 0.5) {
			t.Errorf("fused = %v, want 0.5 each", fused)
		}
		// The caller's map must not have been normalized in place.
		if embedding[intent.Help] != 2 {
			t.Errorf("input mutated: HELP = %v, want 2", embedding[intent.Help])
		}
	})

	t.Run("absent embedding signal leaves phonetic at full weight", func(t *testing.T) {
		t.Parallel()
		f := NewFuser()
		phonetic := intent.Scores{intent.Emergency: 1}

		fused, model := f.Fuse(intent.Scores{}, phonetic)
		if model != intent.ModelPhonetic {
			t.Errorf("model = %q, want %q", model, intent.ModelPhonetic)
		}
		if !approx(fused[intent.Emergency], 1) {
			t.Errorf("EMERGENCY = %v, want 1", fused[intent.Emergency])
		}
	})

	t.Run("all-zero counts as absent", func(t *testing.T) {
		t.Parallel()
		f := NewFuser()
		fused, model := f.Fuse(intent.Scores{intent.Help: 0}, intent.Scores{intent.Help: 1})
		if model != intent.ModelPhonetic {
			t.Errorf("model = %q, want %q", model, intent.ModelPhonetic)
		}
		if !approx(fused[intent.Help], 1) {
			t.Errorf("HELP = %v, want 1", fused[intent.Help])
		}
	})

	t.Run("both signals absent", func(t *testing.T) {
		t.Parallel()
		f := NewFuser()
		fused, model := f.Fuse(nil, nil)
		if model != intent.ModelNone {
			t.Errorf("model = %q, want %q", model, intent.ModelNone)
		}
		if len(fused) != 0 {
			t.Errorf("fused = %v, want empty", fused)
		}
	})

	t.Run("only the weight ratio matters", func(t *testing.T) {
		t.Parallel()
		embedding := intent.Scores{intent.Help: 0.8, intent.Water: 0.2}
		phonetic := intent.Scores{intent.Water: 1}

		a, _ := NewFuser().Fuse(embedding, phonetic)
		b, _ := NewFuser(WithWeights(3, 2)).Fuse(embedding, phonetic)
		for it, v := range a {
			if !approx(b[it], v) {
				t.Errorf("%s: scaled weights give %v, want %v", it, b[it], v)
			}
		}
	})

	t.Run("invalid weights are ignored", func(t *testing.T) {
		t.Parallel()
		for _, f := range []*Fuser{
			NewFuser(WithWeights(0, -1)),
			NewFuser(WithWeights(-1, 1)),
			NewFuser(WithWeights(0, 0)),
		} {
			if f.we != 0.6 || f.wp != 0.4 {
				t.Errorf("weights = %v/%v, want defaults 0.6/0.4", f.we, f.wp)
			}
		}
	})

	t.Run("zero weight silences a signal", func(t *testing.T) {
		t.Parallel()
		embedding := intent.Scores{intent.Help: 1}
		phonetic := intent.Scores{intent.Water: 1}

		fused, model := NewFuser(WithWeights(0, 1)).Fuse(embedding, phonetic)
		if model != intent.ModelHybrid {
			t.Errorf("model = %q, want %q", model, intent.ModelHybrid)
		}
		if !approx(fused[intent.Water], 1) || fused[intent.Help] != 0 {
			t.Errorf("fused = %v, want WATER only", fused)
		}
	})
}
