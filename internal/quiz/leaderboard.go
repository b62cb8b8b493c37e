package quiz

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Result is one submitted attempt, as recorded on the leaderboard.
type Result struct {
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	Percentage int       `json:"percentage"`
	Date       time.Time `json:"date"`
}

// NewResult fills in Percentage and Date.
func NewResult(userID, name, category string, score, total int, now time.Time) Result {
	pct := 0
	if total > 0 {
		pct = score * 100 / total
	}
	return Result{
		UserID:     userID,
		Name:       name,
		Category:   category,
		Score:      score,
		Total:      total,
		Percentage: pct,
		Date:       now.UTC(),
	}
}

// Better reports whether r beats other: higher percentage, then higher score.
func (r Result) Better(other Result) bool {
	if r.Percentage == other.Percentage {
		return r.Score > other.Score
	}
	return r.Percentage > other.Percentage
}

// Leaderboard keeps the best result per user and category.
type Leaderboard interface {
	Record(ctx context.Context, r Result) error
	Top(ctx context.Context, category string, limit int) ([]Result, error)
}

// MemoryLeaderboard is the in-process Leaderboard; contents are lost on restart.
type MemoryLeaderboard struct {
	mu      sync.RWMutex
	entries []Result
}

func NewMemoryLeaderboard() *MemoryLeaderboard {
	return &MemoryLeaderboard{}
}

func (m *MemoryLeaderboard) Record(_ context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.UserID == r.UserID && e.Category == r.Category {
			if r.Better(e) {
				m.entries[i] = r
			}
			return nil
		}
	}
	m.entries = append(m.entries, r)
	return nil
}

// Top returns up to limit results, best first. An empty category means all.
func (m *MemoryLeaderboard) Top(_ context.Context, category string, limit int) ([]Result, error) {
	m.mu.RLock()
	sorted := make([]Result, 0, len(m.entries))
	for _, e := range m.entries {
		if category == "" || e.Category == category {
			sorted = append(sorted, e)
		}
	}
	m.mu.RUnlock()

	SortResults(sorted)
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// SortResults orders best first; earlier attempts win ties.
func SortResults(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Better(rs[j]) {
			return true
		}
		if rs[j].Better(rs[i]) {
			return false
		}
		return rs[i].Date.Before(rs[j].Date)
	})
}
