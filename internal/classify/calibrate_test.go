package classify

import (
	"testing"

	"github.com/vocalaid/vocalaid/pkg/intent"
)

func TestCalibrator_Route(t *testing.T) {
	t.Parallel()
	c := NewCalibrator()

	cases := []struct {
		confidence float64
		want       intent.Status
	}{
		{1.0, intent.StatusConfirmed},
		{0.76, intent.StatusConfirmed},
		{0.75, intent.StatusConfirmed}, // boundary is inclusive
		{0.7499999, intent.StatusNeedsConfirmation},
		{0.5, intent.StatusNeedsConfirmation},
		{0.4, intent.StatusNeedsConfirmation}, // boundary is inclusive
		{0.3999999, intent.StatusUncertain},
		{0.1, intent.StatusUncertain},
		{0, intent.StatusUncertain},
	}
	for _, tc := range cases {
		if got := c.route(tc.confidence); got != tc.want {
			t.Errorf("route(%v) = %q, want %q", tc.confidence, got, tc.want)
		}
	}
}

func TestCalibrator_ColdStart(t *testing.T) {
	t.Parallel()

	t.Run("rises linearly to full trust", func(t *testing.T) {
		t.Parallel()
		c := NewCalibrator(WithMinSupport(5))
		cases := []struct {
			support int
			want    float64
		}{
			{0, 0.5},
			{2, 0.7},
			{5, 1},
			{50, 1},
		}
		for _, tc := range cases {
			if got := c.coldStart(tc.support); !approx(got, tc.want) {
				t.Errorf("coldStart(%d) = %v, want %v", tc.support, got, tc.want)
			}
		}
	})

	t.Run("zero min support disables the discount", func(t *testing.T) {
		t.Parallel()
		c := NewCalibrator(WithMinSupport(0))
		if got := c.coldStart(0); got != 1 {
			t.Errorf("coldStart(0) = %v, want 1", got)
		}
	})
}

func TestCalibrator_Calibrate(t *testing.T) {
	t.Parallel()
	fullSupport := map[intent.Intent]int{
		intent.Help: 10, intent.Water: 10, intent.Yes: 10, intent.No: 10,
		intent.Pain: 10, intent.Emergency: 10, intent.Bathroom: 10,
	}

	t.Run("clear winner confirms", func(t *testing.T) {
		t.Parallel()
		c := NewCalibrator()
		fused := intent.Scores{intent.Help: 0.8, intent.Water: 0.2}

		res := c.Calibrate(fused, fullSupport, intent.ModelHybrid)
		if res.Intent != intent.Help {
			t.Errorf("intent = %s, want HELP", res.Intent)
		}
		// Margin 0.6 saturates the margin factor and support is full, so
		// confidence equals the top score.
		if !approx(res.Confidence, 0.8) {
			t.Errorf("confidence = %v, want 0.8", res.Confidence)
		}
		if res.Status != intent.StatusConfirmed {
			t.Errorf("status = %q, want confirmed", res.Status)
		}
		if len(res.Alternatives) != 1 || res.Alternatives[0].Intent != intent.Water {
			t.Errorf("alternatives = %v, want [WATER]", res.Alternatives)
		}
		if res.ModelUsed != intent.ModelHybrid {
			t.Errorf("model = %q, want hybrid", res.ModelUsed)
		}
	})

	t.Run("narrow margin calibrates down", func(t *testing.T) {
		t.Parallel()
		c := NewCalibrator()
		fused := intent.Scores{intent.Help: 0.52, intent.Water: 0.48}

		res := c.Calibrate(fused, fullSupport, intent.ModelHybrid)
		// 0.52 · (0.04/0.25) · 1 = 0.0832: a slim lead over the runner-up
		// cannot present as certainty no matter the top score.
		if !approx(res.Confidence, 0.0832) {
			t.Errorf("confidence = %v, want 0.0832", res.Confidence)
		}
		if res.Status != intent.StatusUncertain {
			t.Errorf("status = %q, want uncertain", res.Status)
		}
	})

	t.Run("exact tie keeps both contenders", func(t *testing.T) {
		t.Parallel()
		c := NewCalibrator()
		fused := intent.Scores{intent.Yes: 0.5, intent.No: 0.5}

		res := c.Calibrate(fused, fullSupport, intent.ModelPhonetic)
		if res.Confidence != 0 {
			t.Errorf("confidence = %v, want 0 on a tie", res.Confidence)
		}
		if res.Status != intent.StatusUncertain {
			t.Errorf("status = %q, want uncertain", res.Status)
		}
		// Canonical order breaks the tie for the winner, and the losing
		// twin stays visible as an alternative.
		if res.Intent != intent.Yes {
			t.Errorf("intent = %s, want YES", res.Intent)
		}
		if len(res.Alternatives) != 1 || res.Alternatives[0].Intent != intent.No {
			t.Errorf("alternatives = %v, want [NO]", res.Alternatives)
		}
	})

	t.Run("alternatives cap at two", func(t *testing.T) {
		t.Parallel()
		c := NewCalibrator()
		fused := intent.Scores{
			intent.Help: 0.4, intent.Water: 0.3, intent.Pain: 0.2, intent.Tired: 0.1,
		}

		res := c.Calibrate(fused, fullSupport, intent.ModelHybrid)
		if len(res.Alternatives) != 2 {
			t.Fatalf("alternatives = %v, want exactly 2", res.Alternatives)
		}
		if res.Alternatives[0].Intent != intent.Water || res.Alternatives[1].Intent != intent.Pain {
			t.Errorf("alternatives = %v, want [WATER PAIN]", res.Alternatives)
		}
	})

	t.Run("cold start discounts a barely-seen intent", func(t *testing.T) {
		t.Parallel()
		c := NewCalibrator()
		fused := intent.Scores{intent.Bathroom: 0.9, intent.Water: 0.1}

		res := c.Calibrate(fused, map[intent.Intent]int{intent.Bathroom: 1}, intent.ModelEmbedding)
		// 0.9 · 1 · (0.5 + 0.5·1/5) = 0.54: strong agreement on one
		// reference sample stays below the confirm tier.
		if !approx(res.Confidence, 0.54) {
			t.Errorf("confidence = %v, want 0.54", res.Confidence)
		}
		if res.Status != intent.StatusNeedsConfirmation {
			t.Errorf("status = %q, want needs_confirmation", res.Status)
		}
	})

	t.Run("empty distribution resolves to unknown", func(t *testing.T) {
		t.Parallel()
		c := NewCalibrator()
		res := c.Calibrate(intent.Scores{}, nil, intent.ModelNone)
		if res.Intent != intent.Unknown {
			t.Errorf("intent = %s, want UNKNOWN", res.Intent)
		}
		if res.Confidence != 0 {
			t.Errorf("confidence = %v, want 0", res.Confidence)
		}
		if res.Status != intent.StatusUncertain {
			t.Errorf("status = %q, want uncertain", res.Status)
		}
		if res.ModelUsed != intent.ModelNone {
			t.Errorf("model = %q, want none", res.ModelUsed)
		}
	})

	t.Run("confidence stays in range", func(t *testing.T) {
		t.Parallel()
		c := NewCalibrator()
		distributions := []intent.Scores{
			{intent.Help: 1},
			{intent.Help: 0.5, intent.Water: 0.5},
			{intent.Help: 0.99, intent.Water: 0.01},
			{intent.Emergency: 0.34, intent.Help: 0.33, intent.Water: 0.33},
		}
		supports := []map[intent.Intent]int{nil, {intent.Help: 2}, fullSupport}
		for _, fused := range distributions {
			for _, sup := range supports {
				res := c.Calibrate(fused, sup, intent.ModelHybrid)
				if res.Confidence < 0 || res.Confidence > 1 {
					t.Errorf("Calibrate(%v, %v) confidence = %v, out of [0,1]",
						fused, sup, res.Confidence)
				}
			}
		}
	})
}

func TestCalibrator_EmergencyOverride(t *testing.T) {
	t.Parallel()
	fullSupport := map[intent.Intent]int{intent.Emergency: 10, intent.Help: 10}

	t.Run("fires above the threshold despite low confidence", func(t *testing.T) {
		t.Parallel()
		c := NewCalibrator()
		fused := intent.Scores{intent.Emergency: 0.65, intent.Help: 0.35}

		// Confidence alone (0.65) lands in needs_confirmation territory.
		res := c.Calibrate(fused, map[intent.Intent]int{intent.Emergency: 5}, intent.ModelHybrid)
		if res.Status != intent.StatusAutoTriggered {
			t.Errorf("status = %q, want auto_triggered", res.Status)
		}
		if res.Intent != intent.Emergency {
			t.Errorf("intent = %s, want EMERGENCY", res.Intent)
		}
	})

	t.Run("does not fire at the threshold exactly", func(t *testing.T) {
		t.Parallel()
		c := NewCalibrator()
		fused := intent.Scores{intent.Emergency: 0.6, intent.Help: 0.4}

		res := c.Calibrate(fused, fullSupport, intent.ModelHybrid)
		if res.Status == intent.StatusAutoTriggered {
			t.Errorf("status = auto_triggered at score 0.6, want strict > %v", 0.6)
		}
	})

	t.Run("never fires for another intent", func(t *testing.T) {
		t.Parallel()
		c := NewCalibrator()
		fused := intent.Scores{intent.Help: 0.95, intent.Water: 0.05}

		res := c.Calibrate(fused, fullSupport, intent.ModelHybrid)
		if res.Status != intent.StatusConfirmed {
			t.Errorf("status = %q, want confirmed", res.Status)
		}
	})

	t.Run("does not fire when emergency is not the winner", func(t *testing.T) {
		t.Parallel()
		c := NewCalibrator()
		fused := intent.Scores{intent.Help: 0.7, intent.Emergency: 0.3}

		res := c.Calibrate(fused, fullSupport, intent.ModelHybrid)
		if res.Status == intent.StatusAutoTriggered {
			t.Error("override fired for a runner-up EMERGENCY score")
		}
	})
}

func TestNextAction(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		res  intent.Result
		want string
	}{
		{"auto triggered alerts", intent.Result{Intent: intent.Emergency, Status: intent.StatusAutoTriggered}, ActionTriggerAlert},
		{"confirmed awaits user", intent.Result{Intent: intent.Help, Status: intent.StatusConfirmed}, ActionAwaitUser},
		{"confirmed yes resolves", intent.Result{Intent: intent.Yes, Status: intent.StatusConfirmed}, ActionResolveConfirm},
		{"confirmed no resolves", intent.Result{Intent: intent.No, Status: intent.StatusConfirmed}, ActionResolveConfirm},
		{"needs confirmation shows options", intent.Result{Intent: intent.Water, Status: intent.StatusNeedsConfirmation}, ActionShowOptions},
		{"uncertain asks to repeat", intent.Result{Intent: intent.Unknown, Status: intent.StatusUncertain}, ActionAskRepeat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NextAction(tc.res); got != tc.want {
				t.Errorf("NextAction() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUIOptions(t *testing.T) {
	t.Parallel()
	if got := UIOptions(intent.Emergency); len(got) != 1 || got[0] != "Cancel Emergency" {
		t.Errorf("UIOptions(EMERGENCY) = %v, want [Cancel Emergency]", got)
	}
	if got := UIOptions(intent.Yes); len(got) != 1 || got[0] != "OK" {
		t.Errorf("UIOptions(YES) = %v, want [OK]", got)
	}
	if got := UIOptions(intent.Unknown); len(got) != 2 {
		t.Errorf("UIOptions(UNKNOWN) = %v, want two options", got)
	}
}
