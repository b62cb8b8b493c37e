package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/recycle-ai/recycle/internal/classifier"
	"github.com/recycle-ai/recycle/internal/guidance"
	"github.com/recycle-ai/recycle/internal/prediction"
	"github.com/recycle-ai/recycle/internal/quiz"
	"github.com/recycle-ai/recycle/internal/recycle"
)

// clientIDHeader scopes stale-result suppression to one caller.
const clientIDHeader = "X-Client-ID"

type topResponse struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	Percent     string  `json:"percent"`
}

type classifyResponse struct {
	Predictions   []prediction.Entry `json:"predictions"`
	Top           topResponse        `json:"top"`
	Guidance      *guidance.Result   `json:"guidance,omitempty"`
	Display       *guidance.Display  `json:"display,omitempty"`
	QuizCategory  string             `json:"quiz_category,omitempty"`
	GuidanceError string             `json:"guidance_error,omitempty"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "Classification is not configured", "model_unavailable")
		return
	}

	release, ok := s.acquire(w)
	if !ok {
		return
	}
	defer release()

	_, data, ok := s.readImage(w, r)
	if !ok {
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "missing image field", "invalid_request_error")
		return
	}

	clientID := strings.TrimSpace(r.Header.Get(clientIDHeader))
	res, err := s.analyzer.Analyze(r.Context(), clientID, data)
	if err != nil && res == nil {
		s.writeClassifyError(w, err)
		return
	}

	resp := classifyResponse{
		Predictions: res.Predictions,
		Top: topResponse{
			Label:       res.Top.Label,
			Probability: res.Top.Probability,
			Percent:     res.Top.Percent(),
		},
	}
	if err != nil {
		// Predictions survive a guidance failure.
		resp.GuidanceError = userMessage(err)
	} else if res.Guidance != nil {
		resp.Guidance = res.Guidance
		d := res.Guidance.Recyclable.Display()
		resp.Display = &d
		if c := quiz.CategoryFromLabel(res.Guidance.Category); s.bank.Has(c) {
			resp.QuizCategory = c
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeClassifyError(w http.ResponseWriter, err error) {
	var loadErr *classifier.LoadError
	var infErr *classifier.InferenceError
	switch {
	case errors.Is(err, recycle.ErrStale):
		writeError(w, http.StatusConflict, "A newer image from this client superseded this one", "stale_result")
	case errors.As(err, &loadErr):
		writeError(w, http.StatusServiceUnavailable, loadErr.UserMessage(), "model_unavailable")
	case errors.As(err, &infErr) && infErr.Op == "decode":
		writeError(w, http.StatusUnprocessableEntity, infErr.UserMessage(), "invalid_image")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "The request was cancelled before classification finished", "cancelled")
	default:
		writeError(w, http.StatusInternalServerError, userMessage(err), "inference_error")
	}
}
