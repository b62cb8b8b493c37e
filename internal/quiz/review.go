package quiz

// OptionState is how one choice should be rendered.
type OptionState string

const (
	OptionNeutral  OptionState = "neutral"
	OptionSelected OptionState = "selected"
	OptionCorrect  OptionState = "correct"
	OptionWrong    OptionState = "wrong"
)

type OptionReview struct {
	Text  string      `json:"text"`
	State OptionState `json:"state"`
}

// QuestionReview is the rendered view of one question. Answer is only set
// after submit so a client cannot read it early.
type QuestionReview struct {
	Index    int            `json:"index"`
	Question string         `json:"question"`
	Options  []OptionReview `json:"options"`
	Chosen   string         `json:"chosen,omitempty"`
	Answer   string         `json:"answer,omitempty"`
	Correct  *bool          `json:"correct,omitempty"`
}

// Snapshot is a read-only view of a Session.
type Snapshot struct {
	Category  string           `json:"category"`
	State     State            `json:"state"`
	Questions []QuestionReview `json:"questions"`
	Submitted bool             `json:"submitted"`
	Score     *int             `json:"score,omitempty"`
	Total     int              `json:"total"`
}

// Review renders each drawn question. Before submit the chosen option is
// Selected. After submit the answer is Correct, a wrong choice is Wrong and
// every other option is Neutral.
func (s *Session) Review() []QuestionReview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reviewLocked()
}

func (s *Session) reviewLocked() []QuestionReview {
	out := make([]QuestionReview, 0, len(s.questions))
	for i, q := range s.questions {
		chosen := s.answers[i]
		r := QuestionReview{
			Index:    i,
			Question: q.Question,
			Options:  make([]OptionReview, 0, len(q.Options)),
			Chosen:   chosen,
		}
		for _, opt := range q.Options {
			r.Options = append(r.Options, OptionReview{Text: opt, State: s.optionState(q, chosen, opt)})
		}
		if s.submitted {
			ok := chosen == q.Answer
			r.Answer = q.Answer
			r.Correct = &ok
		}
		out = append(out, r)
	}
	return out
}

func (s *Session) optionState(q Question, chosen, opt string) OptionState {
	if !s.submitted {
		if opt == chosen {
			return OptionSelected
		}
		return OptionNeutral
	}
	switch {
	case opt == q.Answer:
		return OptionCorrect
	case opt == chosen:
		return OptionWrong
	default:
		return OptionNeutral
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Category:  s.category,
		State:     s.stateLocked(),
		Questions: s.reviewLocked(),
		Submitted: s.submitted,
		Total:     len(s.questions),
	}
	if s.submitted {
		score := s.score
		snap.Score = &score
	}
	return snap
}
