package classifier

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/recycle-ai/recycle/internal/prediction"
	"github.com/recycle-ai/recycle/internal/redact"
)

// Predictor maps an encoded image to a probability per label.
type Predictor interface {
	Predict(ctx context.Context, image []byte) ([]prediction.Entry, error)
	Labels() []string
}

// Status is the load state reported by a Loader.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// LoadFunc builds the underlying Predictor. It runs exactly once.
type LoadFunc func() (Predictor, error)

// Loader loads a Predictor in the background. Predict calls made while the
// load is in flight wait for it; after a failed load every call returns the
// same *LoadError.
type Loader struct {
	dir  string
	done chan struct{}

	mu     sync.RWMutex
	status Status
	p      Predictor
	err    error
}

// NewLoader starts load in a new goroutine. dir is only used in errors.
func NewLoader(dir string, load LoadFunc) *Loader {
	l := &Loader{
		dir:    dir,
		done:   make(chan struct{}),
		status: StatusLoading,
	}
	go l.run(load)
	return l
}

// NewModelLoader loads an ONNX model from dir in the background.
func NewModelLoader(dir string, opts Options) *Loader {
	return NewLoader(dir, func() (Predictor, error) {
		m, err := LoadModel(dir, opts)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
}

func (l *Loader) run(load LoadFunc) {
	defer close(l.done)

	p, err := safeLoad(load)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		var le *LoadError
		if !errors.As(err, &le) {
			le = &LoadError{Dir: l.dir, Err: err}
		}
		l.status = StatusFailed
		l.err = le
		redact.Logf("classifier: %v", le)
		return
	}
	l.status = StatusReady
	l.p = p
}

func safeLoad(load LoadFunc) (p Predictor, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, errors.New("model load panicked")
			redact.Logf("classifier: load panic: %v", r)
		}
	}()
	p, err = load()
	if err == nil && p == nil {
		err = errors.New("loader returned no predictor")
	}
	return p, err
}

func (l *Loader) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// Err returns the load error once the load has failed.
func (l *Loader) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.err
}

// Done is closed when the load finishes, successfully or not.
func (l *Loader) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the predictor is ready, the load fails, or ctx ends.
func (l *Loader) Wait(ctx context.Context) (Predictor, error) {
	select {
	case <-l.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.err != nil {
		return nil, l.err
	}
	return l.p, nil
}

func (l *Loader) Predict(ctx context.Context, image []byte) ([]prediction.Entry, error) {
	p, err := l.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return p.Predict(ctx, image)
}

// Labels is empty until the load succeeds.
func (l *Loader) Labels() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.p == nil {
		return nil
	}
	return l.p.Labels()
}

// Close waits for the load and releases the predictor if it holds resources.
func (l *Loader) Close() error {
	<-l.done
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
