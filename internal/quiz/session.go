package quiz

import (
	"errors"
	"sync"
)

// DefaultQuestionsPerQuiz is how many questions a session draws.
const DefaultQuestionsPerQuiz = 5

var (
	ErrInvalidCategory  = errors.New("quiz: invalid category")
	ErrSubmitted        = errors.New("quiz: answers are locked after submit")
	ErrAlreadySubmitted = errors.New("quiz: already submitted")
	ErrQuestionIndex    = errors.New("quiz: question index out of range")
	ErrUnknownOption    = errors.New("quiz: option is not one of the question's choices")
)

// State is the lifecycle position of a Session.
type State string

const (
	StateInvalidCategory State = "invalid_category"
	StateAnswering       State = "answering"
	StateSubmitted       State = "submitted"
)

// Session is one quiz attempt over a random subset of a category.
// Score is computed once at Submit and never changes afterwards.
type Session struct {
	mu        sync.Mutex
	bank      Bank
	shuffler  Shuffler
	size      int
	category  string
	questions []Question
	answers   map[int]string
	submitted bool
	score     int
}

type Option func(*Session)

// WithShuffler overrides the random source used to draw questions.
func WithShuffler(s Shuffler) Option {
	return func(q *Session) {
		if s != nil {
			q.shuffler = s
		}
	}
}

// WithSize sets the number of questions drawn; non-positive keeps the default.
func WithSize(n int) Option {
	return func(q *Session) {
		if n > 0 {
			q.size = n
		}
	}
}

// NewSession initializes a session for category. An unknown category yields
// a session in StateInvalidCategory.
func NewSession(bank Bank, category string, opts ...Option) *Session {
	s := &Session{
		bank:     bank,
		shuffler: NewRandShuffler(),
		size:     DefaultQuestionsPerQuiz,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Init(category)
	return s
}

// Init starts over for category: fresh questions, no answers, not submitted.
func (s *Session) Init(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.category = category
	s.answers = make(map[int]string)
	s.submitted = false
	s.score = 0
	s.questions = nil

	questions, ok := s.bank[category]
	if !ok {
		return
	}
	s.questions = pick(questions, s.size, s.shuffler)
}

func (s *Session) Category() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.category
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case s.questions == nil:
		return StateInvalidCategory
	case s.submitted:
		return StateSubmitted
	default:
		return StateAnswering
	}
}

// Questions returns a copy of the drawn questions in display order.
func (s *Session) Questions() []Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// SelectAnswer records option for question index, replacing any earlier choice.
func (s *Session) SelectAnswer(index int, option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.stateLocked() {
	case StateInvalidCategory:
		return ErrInvalidCategory
	case StateSubmitted:
		return ErrSubmitted
	}
	if index < 0 || index >= len(s.questions) {
		return ErrQuestionIndex
	}
	if !s.questions[index].HasOption(option) {
		return ErrUnknownOption
	}
	s.answers[index] = option
	return nil
}

// Answers returns a copy of the recorded choices.
func (s *Session) Answers() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// Submit locks the answers and scores them. Unanswered questions count as wrong.
func (s *Session) Submit() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.stateLocked() {
	case StateInvalidCategory:
		return 0, ErrInvalidCategory
	case StateSubmitted:
		return s.score, ErrAlreadySubmitted
	}
	score := 0
	for i, q := range s.questions {
		if s.answers[i] == q.Answer {
			score++
		}
	}
	s.score = score
	s.submitted = true
	return score, nil
}

// Score returns the final score and whether the session has been submitted.
func (s *Session) Score() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score, s.submitted
}

// Total is the number of drawn questions.
func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions)
}
