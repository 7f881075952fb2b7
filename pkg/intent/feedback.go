package intent

// FeedbackEvent is a caregiver's verdict on a single classification.
// Each event is consumed exactly once and causes at most one reference
// store mutation.
type FeedbackEvent struct {
	// ReferenceID links back to the classification being judged, when the
	// caller still has it. It lets the learner recover the original query
	// vector for text-only feedback submissions.
	ReferenceID string `json:"reference_id,omitempty"`

	// PredictedIntent is the intent the engine returned.
	PredictedIntent Intent `json:"predicted_intent"`

	// IsCorrect is the caregiver's verdict.
	IsCorrect bool `json:"is_correct"`

	// CorrectIntent is the intent the utterance actually meant. Required
	// when IsCorrect is false, ignored otherwise.
	CorrectIntent Intent `json:"correct_intent,omitempty"`
}

// FeedbackOutcome reports what a feedback event did to the reference store.
// Applied is false when the event was accepted but could not mutate the
// store (no query vector was available); Reason says why, so callers can
// tell "learned" apart from "acknowledged".
type FeedbackOutcome struct {
	Applied  bool   `json:"applied"`
	RecordID string `json:"record_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
