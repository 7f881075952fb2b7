package intent_test

import (
	"errors"
	"math"
	"testing"

	"github.com/vocalaid/vocalaid/pkg/intent"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    intent.Intent
		wantErr bool
	}{
		{"HELP", intent.Help, false},
		{"water", intent.Water, false},
		{"  Emergency ", intent.Emergency, false},
		{"UNKNOWN", intent.Unknown, false},
		{"SANDWICH", intent.Unknown, true},
		{"", intent.Unknown, true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := intent.Parse(tc.in)
			if tc.wantErr {
				if !errors.Is(err, intent.ErrUnknownIntent) {
					t.Fatalf("Parse(%q): expected ErrUnknownIntent, got %v", tc.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): unexpected error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("Parse(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestClassifiable(t *testing.T) {
	t.Parallel()

	for _, it := range intent.All() {
		if !it.Classifiable() {
			t.Errorf("%s: expected classifiable", it)
		}
	}
	if intent.Unknown.Classifiable() {
		t.Error("Unknown: expected not classifiable")
	}
	if intent.Intent("LUNCH").Classifiable() {
		t.Error("unrecognised value: expected not classifiable")
	}
}

func TestAllIsACopy(t *testing.T) {
	t.Parallel()

	a := intent.All()
	a[0] = intent.Unknown
	if intent.All()[0] != intent.Help {
		t.Fatal("mutating All() result leaked into the canonical order")
	}
}

func TestScoresNormalize(t *testing.T) {
	t.Parallel()

	t.Run("sums to one", func(t *testing.T) {
		t.Parallel()
		s := intent.Scores{intent.Help: 3, intent.Water: 1}
		s.Normalize()
		if got := s[intent.Help]; math.Abs(got-0.75) > 1e-9 {
			t.Fatalf("Help = %v, want 0.75", got)
		}
		if got := s[intent.Water]; math.Abs(got-0.25) > 1e-9 {
			t.Fatalf("Water = %v, want 0.25", got)
		}
	})

	t.Run("drops non-positive entries", func(t *testing.T) {
		t.Parallel()
		s := intent.Scores{intent.Help: 1, intent.Cold: 0, intent.Hot: -0.5}
		s.Normalize()
		if _, ok := s[intent.Cold]; ok {
			t.Error("zero entry survived normalization")
		}
		if _, ok := s[intent.Hot]; ok {
			t.Error("negative entry survived normalization")
		}
	})

	t.Run("all-zero map stays empty", func(t *testing.T) {
		t.Parallel()
		s := intent.Scores{intent.Help: 0}
		s.Normalize()
		if len(s) != 0 {
			t.Fatalf("expected empty map, got %v", s)
		}
		if !s.IsZero() {
			t.Fatal("expected IsZero after normalizing an all-zero map")
		}
	})
}

func TestScoresRanked(t *testing.T) {
	t.Parallel()

	t.Run("orders by descending score", func(t *testing.T) {
		t.Parallel()
		s := intent.Scores{intent.Water: 0.2, intent.Help: 0.5, intent.Pain: 0.3}
		got := s.Ranked()
		want := []intent.Intent{intent.Help, intent.Pain, intent.Water}
		if len(got) != len(want) {
			t.Fatalf("Ranked returned %d entries, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i].Intent != want[i] {
				t.Fatalf("Ranked[%d] = %s, want %s", i, got[i].Intent, want[i])
			}
		}
	})

	t.Run("ties break by canonical order", func(t *testing.T) {
		t.Parallel()
		s := intent.Scores{intent.No: 0.5, intent.Yes: 0.5}
		got := s.Ranked()
		if got[0].Intent != intent.Yes || got[1].Intent != intent.No {
			t.Fatalf("tie order = [%s %s], want [YES NO]", got[0].Intent, got[1].Intent)
		}
	})

	t.Run("excludes zero scores", func(t *testing.T) {
		t.Parallel()
		s := intent.Scores{intent.Help: 0.9, intent.Tired: 0}
		if got := s.Ranked(); len(got) != 1 {
			t.Fatalf("expected 1 ranked entry, got %d", len(got))
		}
	})
}
