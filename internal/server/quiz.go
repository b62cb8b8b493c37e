package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/recycle-ai/recycle/internal/activation"
	"github.com/recycle-ai/recycle/internal/quiz"
	"github.com/recycle-ai/recycle/internal/redact"
)

type createQuizRequest struct {
	Category string `json:"category"`
}

type quizResponse struct {
	ID string `json:"id"`
	quiz.Snapshot
}

type answerRequest struct {
	Index  int    `json:"index"`
	Option string `json:"option"`
}

type submitResponse struct {
	quizResponse
	Percentage int  `json:"percentage"`
	Recorded   bool `json:"recorded"`
}

func (s *Server) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createQuizRequest
	if !decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}

	category := quiz.CategoryFromLabel(req.Category)
	sess := quiz.NewSession(s.bank, category,
		quiz.WithShuffler(s.shuffler),
		quiz.WithSize(s.cfg.Quiz.QuestionsPerQuiz),
	)
	if sess.State() == quiz.StateInvalidCategory {
		writeErrorDetail(w, http.StatusNotFound, errorDetail{
			Message:    "Invalid category",
			Type:       "invalid_category",
			Categories: s.bank.Categories(),
		})
		return
	}

	id := s.quizzes.Put(sess)
	writeJSON(w, http.StatusCreated, quizResponse{ID: id, Snapshot: sess.Snapshot()})
}

// handleQuiz serves /v1/quizzes/{id}[/answers|/submit].
func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/quizzes/"), "/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	sess, ok := s.quizzes.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "quiz not found or expired", "not_found")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, quizResponse{ID: id, Snapshot: sess.Snapshot()})
	case "answers":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.answerQuiz(w, r, id, sess)
	case "submit":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.submitQuiz(w, r, id, sess)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) answerQuiz(w http.ResponseWriter, r *http.Request, id string, sess *quiz.Session) {
	var req answerRequest
	if !decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}
	if err := sess.SelectAnswer(req.Index, req.Option); err != nil {
		switch {
		case errors.Is(err, quiz.ErrSubmitted):
			writeError(w, http.StatusConflict, "This quiz has already been submitted", "quiz_submitted")
		default:
			writeError(w, http.StatusBadRequest, err.Error(), "invalid_request_error")
		}
		return
	}
	writeJSON(w, http.StatusOK, quizResponse{ID: id, Snapshot: sess.Snapshot()})
}

func (s *Server) submitQuiz(w http.ResponseWriter, r *http.Request, id string, sess *quiz.Session) {
	score, err := sess.Submit()
	if errors.Is(err, quiz.ErrAlreadySubmitted) {
		writeError(w, http.StatusConflict, "This quiz has already been submitted", "quiz_submitted")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_request_error")
		return
	}

	userID, name := s.currentUserID()
	result := quiz.NewResult(userID, name, sess.Category(), score, sess.Total(), time.Now())

	recorded := false
	if userID != "" {
		if err := s.leaderboard.Record(r.Context(), result); err != nil {
			// The score stands even if the leaderboard is unavailable.
			redact.Logf("quiz: record result for %s: %v", sess.Category(), err)
		} else {
			recorded = true
		}
	}

	s.activation.Record(r.Context(), activation.BuildParams{
		Kind:   activation.KindQuizSubmitted,
		UserID: userID,
		Quiz: &activation.QuizPayload{
			Category:   result.Category,
			Score:      result.Score,
			Total:      result.Total,
			Percentage: result.Percentage,
		},
	})

	writeJSON(w, http.StatusOK, submitResponse{
		quizResponse: quizResponse{ID: id, Snapshot: sess.Snapshot()},
		Percentage:   result.Percentage,
		Recorded:     recorded,
	})
}

type leaderboardResponse struct {
	Category string        `json:"category,omitempty"`
	Results  []quiz.Result `json:"results"`
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	category := quiz.CategoryFromLabel(q.Get("category"))
	if category != "" && !s.bank.Has(category) {
		writeErrorDetail(w, http.StatusNotFound, errorDetail{
			Message:    "Invalid category",
			Type:       "invalid_category",
			Categories: s.bank.Categories(),
		})
		return
	}

	limit := s.cfg.Quiz.LeaderboardSize
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", "invalid_request_error")
			return
		}
		limit = n
	}

	results, err := s.leaderboard.Top(r.Context(), category, limit)
	if err != nil {
		redact.Logf("quiz: leaderboard: %v", err)
		writeError(w, http.StatusInternalServerError, "The leaderboard is unavailable", "leaderboard_error")
		return
	}
	if results == nil {
		results = []quiz.Result{}
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Category: category, Results: results})
}
