// Package prediction holds classifier output types and the top-1 reduction.
package prediction

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidInput is returned when there is nothing to resolve.
var ErrInvalidInput = errors.New("prediction: empty prediction set")

// Entry is one label of the model vocabulary with its probability.
type Entry struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Percent formats the probability the way the result list shows it, e.g. "87.25".
func (e Entry) Percent() string {
	return fmt.Sprintf("%.2f", e.Probability*100)
}

// ResolveTop returns the entry with the strictly greatest probability.
// Ties keep the earliest entry in input order.
func ResolveTop(entries []Entry) (Entry, error) {
	if len(entries) == 0 {
		return Entry{}, ErrInvalidInput
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.Probability > best.Probability {
			best = e
		}
	}
	return best, nil
}

// SortByProbability returns a copy ordered from most to least likely.
// Equal probabilities keep their input order.
func SortByProbability(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	return out
}
