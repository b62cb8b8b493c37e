package pickup

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLocationDenied  = errors.New("location permission denied")
	ErrLocationTimeout = errors.New("location request timed out")
)

// Position is a WGS84 coordinate.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locator resolves the caller's position once. It either returns a
// position or fails with ErrLocationDenied or ErrLocationTimeout.
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Position, error)

func (f LocatorFunc) Locate(ctx context.Context) (Position, error) { return f(ctx) }

// StaticLocator answers with a fixed position, or denies when Denied is set.
type StaticLocator struct {
	Position Position
	Denied   bool
}

func (s StaticLocator) Locate(ctx context.Context) (Position, error) {
	if s.Denied {
		return Position{}, ErrLocationDenied
	}
	if err := ctx.Err(); err != nil {
		return Position{}, ErrLocationTimeout
	}
	return s.Position, nil
}

// WithTimeout bounds l. A locator that does not answer within d fails with
// ErrLocationTimeout even if it ignores its context.
func WithTimeout(l Locator, d time.Duration) Locator {
	if d <= 0 {
		return l
	}
	return LocatorFunc(func(ctx context.Context) (Position, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		type result struct {
			pos Position
			err error
		}
		ch := make(chan result, 1)
		go func() {
			pos, err := l.Locate(ctx)
			ch <- result{pos, err}
		}()

		select {
		case r := <-ch:
			if errors.Is(r.err, context.DeadlineExceeded) {
				return Position{}, ErrLocationTimeout
			}
			return r.pos, r.err
		case <-ctx.Done():
			return Position{}, ErrLocationTimeout
		}
	})
}
