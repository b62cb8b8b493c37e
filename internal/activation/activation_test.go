package activation

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func pickupEvent(id string) *Event {
	return &Event{Version: eventVersion, Timestamp: time.Now(), EventID: id, Kind: KindPickupRequested, Outcome: OutcomeOK}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestFileSinkAppendsOwnerOnlyJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	sink, err := NewFileSink(path, 0)
	if err != nil {
		t.Fatalf("file sink: %v", err)
	}
	for _, id := range []string{"p-1", "p-2"} {
		if err := sink.Deliver(context.Background(), pickupEvent(id)); err != nil {
			t.Fatalf("deliver %s: %v", id, err)
		}
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sink.Deliver(context.Background(), pickupEvent("late")); err == nil {
		t.Fatalf("deliver after close should fail")
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if first.EventID != "p-1" || first.Kind != KindPickupRequested {
		t.Fatalf("unexpected first event %+v", first)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}
}

func TestFileSinkRotatesPastMaxBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, err := NewFileSink(path, 1)
	if err != nil {
		t.Fatalf("file sink: %v", err)
	}
	defer sink.Close(context.Background())

	for _, id := range []string{"p-1", "p-2"} {
		if err := sink.Deliver(context.Background(), pickupEvent(id)); err != nil {
			t.Fatalf("deliver %s: %v", id, err)
		}
	}

	rotated := readLines(t, path+".1")
	current := readLines(t, path)
	if len(rotated) != 1 || !strings.Contains(rotated[0], `"p-1"`) {
		t.Fatalf("rotated file should hold p-1, got %v", rotated)
	}
	if len(current) != 1 || !strings.Contains(current[0], `"p-2"`) {
		t.Fatalf("current file should hold p-2, got %v", current)
	}
}

func TestWebhookSinkDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("no"))
	}))

	sink, err := NewWebhookSink(srv.URL, nil, time.Second)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	err = sink.Deliver(context.Background(), pickupEvent("p-1"))
	if err == nil || !strings.Contains(err.Error(), "status 418") {
		t.Fatalf("expected status error, got %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", got)
	}
}

func TestWebhookSinkRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	sink, err := NewWebhookSink(srv.URL, nil, time.Second)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	if err := sink.Deliver(context.Background(), pickupEvent("p-1")); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestEmitterCountsDropsPerKind(t *testing.T) {
	wait := make(chan struct{})
	sink := &blockingSink{wait: wait}
	em := NewEmitter(EmitterConfig{QueueSize: 1, Workers: 1, ShutdownTimeout: time.Second}, []Sink{sink})

	for i := 0; i < 3; i++ {
		em.Emit(context.Background(), pickupEvent("p"))
	}

	m := em.MetricsSnapshot()
	if m.DroppedKind(KindPickupRequested) == 0 {
		t.Fatalf("expected dropped pickups when the queue is full")
	}
	if m.DroppedKind(KindClassification) != 0 {
		t.Fatalf("no classification was emitted")
	}
	if m.Enqueued()+m.Dropped() != 3 {
		t.Fatalf("every emit must be counted, got %d+%d", m.Enqueued(), m.Dropped())
	}

	close(wait)
	em.Close(context.Background())
}

func TestEmitterSkipsFilteredKinds(t *testing.T) {
	sink := &recordingSink{}
	em := NewEmitter(EmitterConfig{QueueSize: 8, Workers: 1, ShutdownTimeout: time.Second},
		[]Sink{OnlyKinds(sink, KindPickupRequested)})

	em.Record(context.Background(), BuildParams{Kind: KindLogin, UserID: "1"})
	em.Record(context.Background(), BuildParams{Kind: KindPickupRequested, Pickup: &PickupPayload{Hosted: true}})
	em.Close(context.Background())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 1 || sink.events[0].Kind != KindPickupRequested {
		t.Fatalf("expected only the pickup event, got %d events", len(sink.events))
	}
	m := em.MetricsSnapshot()
	if m.SinkSkipped("recording") != 1 || m.SinkSuccess("recording") != 1 {
		t.Fatalf("unexpected counters skipped=%d success=%d", m.SinkSkipped("recording"), m.SinkSuccess("recording"))
	}
}

func TestEmitterWebhookDeliveryHeaders(t *testing.T) {
	type delivery struct {
		key, kind string
		ev        Event
	}
	var (
		mu       sync.Mutex
		received []delivery
	)
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil {
			mu.Lock()
			received = append(received, delivery{r.Header.Get("Idempotency-Key"), r.Header.Get("X-Recycle-Event"), ev})
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))

	sink, err := NewWebhookSink(srv.URL, map[string]string{"Authorization": "Bearer t"}, time.Second)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	em := NewEmitter(EmitterConfig{QueueSize: 8, Workers: 2, ShutdownTimeout: 2 * time.Second}, []Sink{sink})
	for i := 0; i < 4; i++ {
		em.Record(context.Background(), BuildParams{Kind: KindQuizSubmitted, Quiz: &QuizPayload{Category: "dry waste", Score: i, Total: 5}})
	}
	em.Close(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 4 {
		t.Fatalf("expected 4 deliveries, got %d", len(received))
	}
	for _, d := range received {
		if d.key != d.ev.EventID || d.key == "" {
			t.Fatalf("idempotency key %q should match event id %q", d.key, d.ev.EventID)
		}
		if d.kind != string(KindQuizSubmitted) {
			t.Fatalf("unexpected event header %q", d.kind)
		}
	}
	if got := em.MetricsSnapshot().SinkSuccess(sink.Name()); got != 4 {
		t.Fatalf("expected 4 successes, got %d", got)
	}
}

type blockingSink struct {
	wait chan struct{}
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Deliver(context.Context, *Event) error {
	<-s.wait
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }

func newTestServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping: cannot open listener: %v", err)
	}
	srv := httptest.NewUnstartedServer(h)
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}
