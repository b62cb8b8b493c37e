// Package recycle runs the classify-then-advise flow: predict labels for a
// photo, pick the top one and fetch disposal guidance for it.
package recycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/recycle-ai/recycle/internal/activation"
	"github.com/recycle-ai/recycle/internal/classifier"
	"github.com/recycle-ai/recycle/internal/guidance"
	"github.com/recycle-ai/recycle/internal/prediction"
)

// ErrStale is returned to a request that was superseded by a newer request
// from the same client before it finished.
var ErrStale = errors.New("recycle: superseded by a newer request")

// Result is one analysis. Guidance is nil when the guidance fetch failed;
// the predictions are still valid in that case.
type Result struct {
	Predictions []prediction.Entry `json:"predictions"`
	Top         prediction.Entry   `json:"top"`
	Guidance    *guidance.Result   `json:"guidance,omitempty"`
}

// Analyzer is safe for concurrent use. Requests carrying the same client id
// are ordered by a monotonically increasing token and only the newest one
// may deliver a result.
type Analyzer struct {
	predictor classifier.Predictor
	guidance  guidance.Fetcher
	emitter   *activation.Emitter

	seq    atomic.Uint64
	mu     sync.Mutex
	latest map[string]uint64
}

func NewAnalyzer(p classifier.Predictor, g guidance.Fetcher, em *activation.Emitter) *Analyzer {
	return &Analyzer{
		predictor: p,
		guidance:  g,
		emitter:   em,
		latest:    make(map[string]uint64),
	}
}

// Analyze classifies image and fetches guidance for the top label. An empty
// clientID opts out of stale-result suppression.
//
// When guidance fails the partial Result is returned together with the
// *guidance.FetchError.
func (a *Analyzer) Analyze(ctx context.Context, clientID string, image []byte) (*Result, error) {
	token := a.begin(clientID)
	defer a.finish(clientID, token)

	start := time.Now()
	params := activation.BuildParams{
		Kind:           activation.KindClassification,
		ClientID:       clientID,
		Classification: &activation.ClassificationPayload{ImageBytes: len(image)},
	}
	defer func() {
		params.Total = time.Since(start)
		a.emitter.Record(context.WithoutCancel(ctx), params)
	}()

	entries, err := a.predictor.Predict(ctx, image)
	params.Predict = time.Since(start)
	if err != nil {
		params.Err = err
		return nil, err
	}
	if !a.current(clientID, token) {
		params.Stale = true
		return nil, ErrStale
	}

	top, err := prediction.ResolveTop(entries)
	if err != nil {
		params.Err = err
		return nil, err
	}
	params.Classification.TopLabel = top.Label
	params.Classification.TopProbability = top.Probability
	params.Classification.Predictions = entries

	res := &Result{Predictions: entries, Top: top}

	guidanceStart := time.Now()
	g, err := a.guidance.Fetch(ctx, top.Label)
	params.Guidance = time.Since(guidanceStart)
	if !a.current(clientID, token) {
		params.Stale = true
		return nil, ErrStale
	}
	if err != nil {
		params.Err = err
		return res, err
	}
	res.Guidance = g
	params.Classification.Category = g.Category
	params.Classification.Recyclable = g.Recyclable.String()
	return res, nil
}

func (a *Analyzer) begin(clientID string) uint64 {
	token := a.seq.Add(1)
	if clientID == "" {
		return token
	}
	a.mu.Lock()
	a.latest[clientID] = token
	a.mu.Unlock()
	return token
}

func (a *Analyzer) current(clientID string, token uint64) bool {
	if clientID == "" {
		return true
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest[clientID] == token
}

// finish forgets the client once its newest request is done so the map
// does not grow with every client ever seen.
func (a *Analyzer) finish(clientID string, token uint64) {
	if clientID == "" {
		return
	}
	a.mu.Lock()
	if a.latest[clientID] == token {
		delete(a.latest, clientID)
	}
	a.mu.Unlock()
}
