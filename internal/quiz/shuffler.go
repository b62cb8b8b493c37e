package quiz

import (
	"math/rand"
	"sync"
	"time"
)

// Shuffler permutes n items by calling swap, Fisher-Yates style.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// RandShuffler is a time-seeded Shuffler safe for concurrent use.
type RandShuffler struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRandShuffler() *RandShuffler {
	return NewSeededShuffler(time.Now().UnixNano())
}

// NewSeededShuffler returns a reproducible Shuffler.
func NewSeededShuffler(seed int64) *RandShuffler {
	return &RandShuffler{r: rand.New(rand.NewSource(seed))}
}

func (s *RandShuffler) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := n - 1; i > 0; i-- {
		j := s.r.Intn(i + 1)
		swap(i, j)
	}
}

// IdentityShuffler keeps bank order. Used by tests and for deterministic runs.
type IdentityShuffler struct{}

func (IdentityShuffler) Shuffle(int, func(i, j int)) {}

// pick returns the first limit questions of a shuffled copy; the bank is untouched.
func pick(questions []Question, limit int, s Shuffler) []Question {
	shuffled := make([]Question, len(questions))
	copy(shuffled, questions)
	s.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if limit <= 0 || limit > len(shuffled) {
		limit = len(shuffled)
	}
	return shuffled[:limit]
}
