package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/recycle-ai/recycle/internal/activation"
)

const maxEventBytes = 1 << 20

func main() {
	addr := flag.String("addr", ":8099", "listen address for activation receiver")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/activation", handleActivation)
	mux.HandleFunc("/", handleActivation)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("activation receiver listening on %s (POST JSON to /activation)...", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("receiver error: %v", err)
	}
}

func handleActivation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	_ = r.Body.Close()
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	var ev activation.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Printf("received unparseable activation event: path=%s len=%d err=%v", r.URL.Path, len(body), err)
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}

	log.Printf("received activation event: %s", summarize(&ev))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, `{"status":"ok"}`)
}

func summarize(ev *activation.Event) string {
	s := fmt.Sprintf("id=%s kind=%s outcome=%s total_ms=%.1f", ev.EventID, ev.Kind, ev.Outcome, ev.TimingMs.Total)
	if ev.UserID != "" {
		s += " user=" + ev.UserID
	}
	switch {
	case ev.Classification != nil:
		c := ev.Classification
		s += fmt.Sprintf(" top=%s p=%.3f recyclable=%s", c.TopLabel, c.TopProbability, c.Recyclable)
	case ev.Quiz != nil:
		s += fmt.Sprintf(" quiz=%s score=%d/%d", ev.Quiz.Category, ev.Quiz.Score, ev.Quiz.Total)
	case ev.Pickup != nil:
		s += fmt.Sprintf(" stage=%s lat=%.2f lon=%.2f", ev.Pickup.Stage, ev.Pickup.Latitude, ev.Pickup.Longitude)
	}
	if ev.Error != "" {
		s += " error=" + ev.Error
	}
	return s
}
