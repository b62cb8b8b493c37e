package activation

import (
	"context"
	"sync"
	"time"

	"github.com/recycle-ai/recycle/internal/redact"
)

// Sink consumes activation events (log, file, webhook).
type Sink interface {
	Name() string
	Deliver(context.Context, *Event) error
	Close(context.Context) error
}

// KindFilter is implemented by sinks that only want some kinds of event.
type KindFilter interface {
	Accepts(Kind) bool
}

// Metrics counts what happened to events. Per-kind counters let a caller
// tell, for example, dropped pickups from dropped classifications.
type Metrics struct {
	enqueued map[Kind]uint64
	dropped  map[Kind]uint64

	sinkSuccess map[string]uint64
	sinkFailure map[string]uint64
	sinkSkipped map[string]uint64
}

func newMetrics() *Metrics {
	return &Metrics{
		enqueued:    make(map[Kind]uint64),
		dropped:     make(map[Kind]uint64),
		sinkSuccess: make(map[string]uint64),
		sinkFailure: make(map[string]uint64),
		sinkSkipped: make(map[string]uint64),
	}
}

func (m *Metrics) clone() Metrics {
	out := *newMetrics()
	for _, pair := range []struct{ dst, src map[Kind]uint64 }{
		{out.enqueued, m.enqueued},
		{out.dropped, m.dropped},
	} {
		for k, v := range pair.src {
			pair.dst[k] = v
		}
	}
	for _, pair := range []struct{ dst, src map[string]uint64 }{
		{out.sinkSuccess, m.sinkSuccess},
		{out.sinkFailure, m.sinkFailure},
		{out.sinkSkipped, m.sinkSkipped},
	} {
		for k, v := range pair.src {
			pair.dst[k] = v
		}
	}
	return out
}

func sum(m map[Kind]uint64) uint64 {
	var n uint64
	for _, v := range m {
		n += v
	}
	return n
}

func (m Metrics) Enqueued() uint64               { return sum(m.enqueued) }
func (m Metrics) Dropped() uint64                { return sum(m.dropped) }
func (m Metrics) EnqueuedKind(k Kind) uint64     { return m.enqueued[k] }
func (m Metrics) DroppedKind(k Kind) uint64      { return m.dropped[k] }
func (m Metrics) SinkSuccess(name string) uint64 { return m.sinkSuccess[name] }
func (m Metrics) SinkFailure(name string) uint64 { return m.sinkFailure[name] }
func (m Metrics) SinkSkipped(name string) uint64 { return m.sinkSkipped[name] }

// EmitterConfig controls queue sizing and delivery deadlines.
type EmitterConfig struct {
	QueueSize       int
	Workers         int
	ShutdownTimeout time.Duration
	// DeliveryTimeout bounds one Deliver call on one sink.
	DeliveryTimeout time.Duration
}

// Emitter queues events off the request path and fans them out to sinks.
// A full queue drops the event rather than blocking the caller.
type Emitter struct {
	queue           chan *Event
	sinks           []Sink
	shutdownTimeout time.Duration
	deliveryTimeout time.Duration

	stateMu sync.RWMutex
	closed  bool
	wg      sync.WaitGroup

	metricsMu sync.Mutex
	metrics   *Metrics
}

// NewEmitter starts cfg.Workers delivery goroutines.
func NewEmitter(cfg EmitterConfig, sinks []Sink) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 5 * time.Second
	}

	em := &Emitter{
		queue:           make(chan *Event, cfg.QueueSize),
		sinks:           sinks,
		shutdownTimeout: cfg.ShutdownTimeout,
		deliveryTimeout: cfg.DeliveryTimeout,
		metrics:         newMetrics(),
	}
	for _, s := range sinks {
		em.metrics.sinkSuccess[s.Name()] = 0
		em.metrics.sinkFailure[s.Name()] = 0
	}

	em.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go func() {
			defer em.wg.Done()
			for ev := range em.queue {
				em.deliver(ev)
			}
		}()
	}
	return em
}

// Emit enqueues ev without blocking. Events emitted after Close are dropped.
func (e *Emitter) Emit(_ context.Context, ev *Event) {
	if e == nil || ev == nil {
		return
	}

	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	queued := false
	if !e.closed {
		select {
		case e.queue <- ev:
			queued = true
		default:
		}
	}
	e.count(func(m *Metrics) {
		if queued {
			m.enqueued[ev.Kind]++
		} else {
			m.dropped[ev.Kind]++
		}
	})
}

// Close stops intake, gives the workers up to the shutdown timeout to drain
// the queue, then closes every sink.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.stateMu.Lock()
	if e.closed {
		e.stateMu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, e.shutdownTimeout)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		redact.Logf("activation: shutdown timed out with %d events queued", len(e.queue))
	}

	for _, s := range e.sinks {
		if err := s.Close(ctx); err != nil {
			redact.Logf("activation: close sink %s: %v", s.Name(), err)
		}
	}
}

// MetricsSnapshot returns a copy of the counters.
func (e *Emitter) MetricsSnapshot() Metrics {
	if e == nil {
		return *newMetrics()
	}
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()
	return e.metrics.clone()
}

func (e *Emitter) count(f func(*Metrics)) {
	e.metricsMu.Lock()
	f(e.metrics)
	e.metricsMu.Unlock()
}

func (e *Emitter) deliver(ev *Event) {
	for _, s := range e.sinks {
		name := s.Name()
		if f, ok := s.(KindFilter); ok && !f.Accepts(ev.Kind) {
			e.count(func(m *Metrics) { m.sinkSkipped[name]++ })
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), e.deliveryTimeout)
		err := s.Deliver(ctx, ev)
		cancel()

		if err != nil {
			redact.Logf("activation: sink %s failed for %s event %s: %v", name, ev.Kind, ev.EventID, err)
			e.count(func(m *Metrics) { m.sinkFailure[name]++ })
			continue
		}
		e.count(func(m *Metrics) { m.sinkSuccess[name]++ })
	}
}

// filteredSink limits a sink to a set of kinds.
type filteredSink struct {
	Sink
	kinds map[Kind]bool
}

func (f filteredSink) Accepts(k Kind) bool { return f.kinds[k] }

// OnlyKinds wraps s so it receives only the listed kinds. No kinds means all.
func OnlyKinds(s Sink, kinds ...Kind) Sink {
	if len(kinds) == 0 {
		return s
	}
	set := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return filteredSink{Sink: s, kinds: set}
}
