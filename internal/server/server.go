package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/recycle-ai/recycle/internal/activation"
	"github.com/recycle-ai/recycle/internal/auth"
	"github.com/recycle-ai/recycle/internal/classifier"
	"github.com/recycle-ai/recycle/internal/config"
	"github.com/recycle-ai/recycle/internal/guidance"
	"github.com/recycle-ai/recycle/internal/pickup"
	"github.com/recycle-ai/recycle/internal/quiz"
	"github.com/recycle-ai/recycle/internal/recycle"
	"github.com/recycle-ai/recycle/internal/redact"
	"github.com/recycle-ai/recycle/internal/session"
)

// Model is the classifier as the server sees it: a predictor with a
// one-time load whose progress can be reported.
type Model interface {
	classifier.Predictor
	Status() classifier.Status
	Err() error
}

// AuthService is the subset of auth.Client used by the handlers.
type AuthService interface {
	Login(ctx context.Context, cred auth.Credentials) (*auth.LoginResponse, error)
	Signup(ctx context.Context, reg auth.Registration) error
}

// PickupService submits pickup requests.
type PickupService interface {
	Submit(ctx context.Context, req pickup.Request) (*pickup.Receipt, error)
}

// Deps are the collaborators New wires into the routes. Nil optional
// dependencies disable their routes with 503.
type Deps struct {
	Model       Model
	Guidance    guidance.Fetcher
	Auth        AuthService
	Session     *session.Manager
	Pickup      PickupService
	Bank        quiz.Bank
	Leaderboard quiz.Leaderboard
	Shuffler    quiz.Shuffler
	Activation  *activation.Emitter
}

// Server wraps the HTTP server components for recycle.
type Server struct {
	mux         *http.ServeMux
	cfg         *config.Config
	model       Model
	analyzer    *recycle.Analyzer
	auth        AuthService
	session     *session.Manager
	pickup      PickupService
	bank        quiz.Bank
	leaderboard quiz.Leaderboard
	shuffler    quiz.Shuffler
	activation  *activation.Emitter
	quizzes     *quizStore
	inFlight    chan struct{}
}

// New builds the server and registers its routes.
func New(cfg *config.Config, deps Deps) *Server {
	mux := http.NewServeMux()

	bank := deps.Bank
	if bank == nil {
		bank = quiz.DefaultBank()
	}
	lb := deps.Leaderboard
	if lb == nil {
		lb = quiz.NewMemoryLeaderboard()
	}
	inFlight := cfg.Server.MaxInFlight
	if inFlight <= 0 {
		inFlight = 1
	}

	s := &Server{
		mux:         mux,
		cfg:         cfg,
		model:       deps.Model,
		auth:        deps.Auth,
		session:     deps.Session,
		pickup:      deps.Pickup,
		bank:        bank,
		leaderboard: lb,
		shuffler:    deps.Shuffler,
		activation:  deps.Activation,
		quizzes:     newQuizStore(cfg.Quiz.SessionTTL),
		inFlight:    make(chan struct{}, inFlight),
	}
	if deps.Model != nil && deps.Guidance != nil {
		s.analyzer = recycle.NewAnalyzer(deps.Model, deps.Guidance, deps.Activation)
	}

	// Routes
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/model", s.handleModel)
	mux.HandleFunc("/v1/classify", s.handleClassify)
	mux.HandleFunc("/v1/quizzes", s.handleCreateQuiz)
	mux.HandleFunc("/v1/quizzes/", s.handleQuiz)
	mux.HandleFunc("/v1/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("/v1/auth/login", s.handleLogin)
	mux.HandleFunc("/v1/auth/signup", s.handleSignup)
	mux.HandleFunc("/v1/auth/logout", s.handleLogout)
	mux.HandleFunc("/v1/auth/me", s.handleMe)
	mux.HandleFunc("/v1/pickups", s.handlePickup)

	return s
}

// Handler exposes the route table, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on cfg.Server.Addr until ctx ends, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
		IdleTimeout:       s.cfg.Server.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		redact.Logf("recycle running on %s", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

type modelResponse struct {
	Status classifier.Status `json:"status"`
	Labels []string          `json:"labels,omitempty"`
	Error  string            `json:"error,omitempty"`
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.model == nil {
		writeError(w, http.StatusServiceUnavailable, "Classification is not configured", "model_unavailable")
		return
	}
	resp := modelResponse{Status: s.model.Status(), Labels: s.model.Labels()}
	if err := s.model.Err(); err != nil {
		resp.Error = userMessage(err)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- JSON helpers ---

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	// Extra fields some errors carry, such as a hosted image URL.
	HostedURL  string   `json:"hosted_url,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message, typ string) {
	writeErrorDetail(w, status, errorDetail{Message: message, Type: typ})
}

func writeErrorDetail(w http.ResponseWriter, status int, detail errorDetail) {
	writeJSON(w, status, errorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		redact.Logf("failed to write response: %v", err)
	}
}

// decodeJSON reads a bounded JSON body. It writes the error response itself
// and reports whether the handler should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", "invalid_request_error")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body", "invalid_request_error")
		return false
	}
	return true
}

const maxJSONBodyBytes = 64 << 10

// readImage pulls the "image" part out of a bounded multipart body.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) (name string, data []byte, ok bool) {
	if r.ContentLength > s.cfg.Server.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Image too large", "invalid_request_error")
		return "", nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.Server.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image too large", "invalid_request_error")
			return "", nil, false
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form with an image field", "invalid_request_error")
		return "", nil, false
	}
	f, hdr, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && r.FormValue("image_url") != "" {
			return "", nil, true
		}
		writeError(w, http.StatusBadRequest, "missing image field", "invalid_request_error")
		return "", nil, false
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image", "invalid_request_error")
		return "", nil, false
	}
	return hdr.Filename, data, true
}

// acquire takes an in-flight slot or answers 429.
func (s *Server) acquire(w http.ResponseWriter) (release func(), ok bool) {
	select {
	case s.inFlight <- struct{}{}:
		return func() { <-s.inFlight }, true
	default:
		writeError(w, http.StatusTooManyRequests, "Too many requests in flight, try again shortly", "rate_limit_error")
		return nil, false
	}
}

type userMessager interface {
	UserMessage() string
}

// userMessage picks the user-facing text for err.
func userMessage(err error) string {
	var um userMessager
	if errors.As(err, &um) {
		return um.UserMessage()
	}
	return "Something went wrong. Please try again."
}

func (s *Server) currentUserID() (string, string) {
	if s.session == nil {
		return "", ""
	}
	u, ok := s.session.Current()
	if !ok {
		return "", ""
	}
	return string(u.ID), u.DisplayName()
}
