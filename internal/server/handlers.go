package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vocalaid/vocalaid/internal/classify"
	"github.com/vocalaid/vocalaid/internal/feedback"
	"github.com/vocalaid/vocalaid/internal/notify"
	"github.com/vocalaid/vocalaid/internal/observe"
	"github.com/vocalaid/vocalaid/pkg/intent"
	"github.com/vocalaid/vocalaid/pkg/refstore"
)

// classifyResponse decorates the engine result with the care-flow hints the
// front-end renders. The embedded result's shape is preserved untouched.
type classifyResponse struct {
	ID string `json:"id"`
	intent.Result
	UIOptions  []string `json:"ui_options"`
	NextAction string   `json:"next_action"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classify.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "Malformed request body: "+err.Error())
		return
	}

	ctx := r.Context()
	res, err := s.engine.Classify(ctx, req)
	if err != nil {
		var dimErr *refstore.DimensionError
		switch {
		case errors.Is(err, classify.ErrNoInput):
			writeError(w, http.StatusBadRequest, codeNoInput, "Provide a vector, a transcription, or both")
		case errors.As(err, &dimErr):
			writeError(w, http.StatusBadRequest, codeDimensionMismatch, dimErr.Error())
		case errors.Is(err, refstore.ErrZeroVector):
			writeError(w, http.StatusBadRequest, codeInvalidVector, "The embedding vector must not be all zeros")
		default:
			observe.Logger(ctx).Error("classification failed", "err", err)
			writeError(w, http.StatusInternalServerError, codeInternal, "Classification failed")
		}
		return
	}

	id := uuid.NewString()
	s.recorder.Remember(id, req.Vector, res.Intent)

	if res.Status == intent.StatusAutoTriggered {
		alert := notify.Alert{
			ReferenceID: id,
			Intent:      res.Intent,
			Confidence:  res.Confidence,
			FusedScore:  res.Scores[res.Intent],
			At:          time.Now().UTC(),
		}
		if err := s.notifier.Notify(ctx, alert); err != nil {
			// The caller still gets the auto_triggered result; delivery has
			// its own retry story.
			observe.Logger(ctx).Error("emergency notification failed", "err", err, "reference_id", id)
		}
	}

	options := classify.UIOptions(res.Intent)
	if res.Status == intent.StatusUncertain {
		options = classify.UIOptions(intent.Unknown)
	}

	writeJSON(w, http.StatusOK, classifyResponse{
		ID:         id,
		Result:     res,
		UIOptions:  options,
		NextAction: classify.NextAction(res),
	})
}

// feedbackRequest is the wire shape of a caregiver verdict. Vector is
// optional: submissions that still hold the original embedding send it
// inline, otherwise ReferenceID resolves it from the pending cache.
type feedbackRequest struct {
	ReferenceID     string    `json:"reference_id"`
	PredictedIntent string    `json:"predicted_intent"`
	IsCorrect       bool      `json:"is_correct"`
	CorrectIntent   string    `json:"correct_intent"`
	Vector          []float32 `json:"vector"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "Malformed request body: "+err.Error())
		return
	}

	ev := intent.FeedbackEvent{
		ReferenceID: req.ReferenceID,
		IsCorrect:   req.IsCorrect,
	}
	if req.PredictedIntent != "" {
		it, err := intent.Parse(req.PredictedIntent)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidIntent, "Unknown predicted_intent "+req.PredictedIntent)
			return
		}
		ev.PredictedIntent = it
	}
	if req.CorrectIntent != "" {
		it, err := intent.Parse(req.CorrectIntent)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidIntent, "Unknown correct_intent "+req.CorrectIntent)
			return
		}
		ev.CorrectIntent = it
	}

	ctx := r.Context()
	outcome, err := s.recorder.Record(ctx, ev, req.Vector)
	if err != nil {
		var dimErr *refstore.DimensionError
		switch {
		case errors.Is(err, feedback.ErrMissingCorrection):
			writeError(w, http.StatusBadRequest, codeMissingCorrection, "correct_intent is required when is_correct is false")
		case errors.Is(err, intent.ErrUnknownIntent):
			writeError(w, http.StatusBadRequest, codeInvalidIntent, err.Error())
		case errors.Is(err, refstore.ErrIntentNotClassifiable):
			writeError(w, http.StatusBadRequest, codeInvalidIntent, err.Error())
		case errors.As(err, &dimErr):
			writeError(w, http.StatusBadRequest, codeDimensionMismatch, dimErr.Error())
		case errors.Is(err, refstore.ErrZeroVector):
			writeError(w, http.StatusBadRequest, codeInvalidVector, "The feedback vector must not be all zeros")
		default:
			// Distinct from classification failures: the caller can retry
			// the feedback without re-running the classification.
			observe.Logger(ctx).Error("feedback apply failed", "err", err)
			writeError(w, http.StatusInternalServerError, codeInternal, "Feedback was not applied; retry the submission")
		}
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// intentsResponse summarises the reference data backing each intent.
type intentsResponse struct {
	Dimensions int            `json:"dimensions"`
	Total      int            `json:"total"`
	Counts     map[string]int `json:"counts"`
}

func (s *Server) handleIntents(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByIntent(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("intent counts failed", "err", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "Could not read reference counts")
		return
	}

	resp := intentsResponse{
		Dimensions: s.store.Dimensions(),
		Counts:     make(map[string]int, len(intent.All())),
	}
	for _, it := range intent.All() {
		resp.Counts[string(it)] = counts[it]
		resp.Total += counts[it]
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.All(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("reference export failed", "err", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "Could not export reference data")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	if err := refstore.WriteSnapshot(w, records); err != nil {
		// Headers are gone; all we can do is log the broken stream.
		observe.Logger(r.Context()).Error("reference export stream failed", "err", err)
	}
}

type importResponse struct {
	Imported int `json:"imported"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	records, err := refstore.ReadSnapshot(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidSnapshot, err.Error())
		return
	}

	n, err := s.store.BulkImport(r.Context(), records)
	if n > 0 {
		// Even an aborted import has landed n records.
		s.metrics.ReferenceRecords.Add(r.Context(), int64(n))
	}
	if err != nil {
		var dimErr *refstore.DimensionError
		switch {
		case errors.As(err, &dimErr):
			writeError(w, http.StatusBadRequest, codeDimensionMismatch, dimErr.Error())
		case errors.Is(err, refstore.ErrIntentNotClassifiable), errors.Is(err, refstore.ErrZeroVector):
			writeError(w, http.StatusBadRequest, codeInvalidSnapshot, err.Error())
		default:
			observe.Logger(r.Context()).Error("reference import failed", "err", err, "imported", n)
			writeError(w, http.StatusInternalServerError, codeInternal, "Import aborted")
		}
		return
	}

	observe.Logger(r.Context()).Info("reference snapshot imported", "records", n)
	writeJSON(w, http.StatusOK, importResponse{Imported: n})
}

type pruneRequest struct {
	Source string    `json:"source"`
	Before time.Time `json:"before"`
}

type pruneResponse struct {
	Removed int `json:"removed"`
}

func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	var req pruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "Malformed request body: "+err.Error())
		return
	}

	src := refstore.Source(req.Source)
	if !src.IsValid() {
		writeError(w, http.StatusBadRequest, codeInvalidSource, "Unknown source "+req.Source)
		return
	}
	if req.Before.IsZero() {
		writeError(w, http.StatusBadRequest, codeInvalidJSON, "A before cutoff is required")
		return
	}

	removed, err := s.store.Prune(r.Context(), src, req.Before)
	if err != nil {
		observe.Logger(r.Context()).Error("reference prune failed", "err", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "Prune failed")
		return
	}

	s.metrics.ReferenceRecords.Add(r.Context(), int64(-removed))
	observe.Logger(r.Context()).Info("reference records pruned", "source", src, "removed", removed)
	writeJSON(w, http.StatusOK, pruneResponse{Removed: removed})
}
