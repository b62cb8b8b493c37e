package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/recycle-ai/recycle/internal/quiz"
)

// quizStore holds in-progress quiz sessions. Entries expire ttl after their
// last use.
type quizStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	data map[string]quizEntry
	now  func() time.Time
}

type quizEntry struct {
	session   *quiz.Session
	expiresAt time.Time
}

func newQuizStore(ttl time.Duration) *quizStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &quizStore{
		ttl:  ttl,
		data: make(map[string]quizEntry),
		now:  time.Now,
	}
}

// Put stores sess under a fresh id.
func (s *quizStore) Put(sess *quiz.Session) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	s.data[id] = quizEntry{session: sess, expiresAt: s.now().Add(s.ttl)}
	return id
}

// Get returns the session and extends its lifetime.
func (s *quizStore) Get(id string) (*quiz.Session, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	entry, ok := s.data[id]
	if !ok {
		return nil, false
	}
	entry.expiresAt = s.now().Add(s.ttl)
	s.data[id] = entry
	return entry.session, true
}

func (s *quizStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	return len(s.data)
}

func (s *quizStore) cleanupLocked() {
	now := s.now()
	for k, v := range s.data {
		if now.After(v.expiresAt) {
			delete(s.data, k)
		}
	}
}
