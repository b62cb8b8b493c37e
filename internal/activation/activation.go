// Package activation records what the service did (classifications, quiz
// submissions, pickups, sign-ins) and ships the events to configured sinks.
package activation

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/recycle-ai/recycle/internal/prediction"
	"github.com/recycle-ai/recycle/internal/redact"
)

const eventVersion = "1"

// Kind is the type of activity an event describes.
type Kind string

const (
	KindClassification  Kind = "classification"
	KindQuizSubmitted   Kind = "quiz_submitted"
	KindPickupRequested Kind = "pickup_requested"
	KindLogin           Kind = "login"
	KindLogout          Kind = "logout"
)

// Outcome summarizes how the activity ended.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
	OutcomeStale Outcome = "stale"
)

type ClassificationPayload struct {
	TopLabel       string             `json:"top_label,omitempty"`
	TopProbability float64            `json:"top_probability,omitempty"`
	Predictions    []prediction.Entry `json:"predictions,omitempty"`
	Category       string             `json:"category,omitempty"`
	Recyclable     string             `json:"recyclable,omitempty"`
	ImageBytes     int                `json:"image_bytes"`
}

type QuizPayload struct {
	Category   string `json:"category"`
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// PickupPayload carries a coarse location only.
type PickupPayload struct {
	Stage     string  `json:"stage,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Hosted    bool    `json:"hosted"`
}

type TimingMs struct {
	Predict  float64 `json:"predict,omitempty"`
	Guidance float64 `json:"guidance,omitempty"`
	Total    float64 `json:"total"`
}

// Event is the canonical activation payload.
type Event struct {
	Version        string                 `json:"version"`
	Timestamp      time.Time              `json:"timestamp"`
	EventID        string                 `json:"event_id"`
	Kind           Kind                   `json:"kind"`
	Outcome        Outcome                `json:"outcome"`
	ClientID       string                 `json:"client_id,omitempty"`
	UserID         string                 `json:"user_id,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Classification *ClassificationPayload `json:"classification,omitempty"`
	Quiz           *QuizPayload           `json:"quiz,omitempty"`
	Pickup         *PickupPayload         `json:"pickup,omitempty"`
	TimingMs       TimingMs               `json:"timing_ms"`
}

// BuildParams collects the inputs for an event. Only the payload matching
// Kind needs to be set.
type BuildParams struct {
	Kind     Kind
	ClientID string
	UserID   string
	Err      error
	Stale    bool

	Classification *ClassificationPayload
	Quiz           *QuizPayload
	Pickup         *PickupPayload

	Predict  time.Duration
	Guidance time.Duration
	Total    time.Duration
}

// BuildEvent assembles an event. Error text is redacted and pickup
// coordinates are rounded to two decimals.
func BuildEvent(params BuildParams) *Event {
	outcome := OutcomeOK
	switch {
	case params.Stale:
		outcome = OutcomeStale
	case params.Err != nil:
		outcome = OutcomeError
	}

	ev := &Event{
		Version:        eventVersion,
		Timestamp:      time.Now().UTC(),
		EventID:        uuid.NewString(),
		Kind:           params.Kind,
		Outcome:        outcome,
		ClientID:       params.ClientID,
		UserID:         params.UserID,
		Classification: params.Classification,
		Quiz:           params.Quiz,
		TimingMs: TimingMs{
			Predict:  durationMillis(params.Predict),
			Guidance: durationMillis(params.Guidance),
			Total:    durationMillis(params.Total),
		},
	}
	if params.Err != nil {
		ev.Error = redact.String(params.Err.Error())
	}
	if params.Pickup != nil {
		p := *params.Pickup
		p.Latitude = coarse(p.Latitude)
		p.Longitude = coarse(p.Longitude)
		ev.Pickup = &p
	}
	return ev
}

// LogEvent prints a redacted JSON representation of the event.
func LogEvent(ev *Event) {
	if ev == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		redact.Logf("activation: failed to marshal event: %v", err)
		return
	}
	redact.Logf("activation: %s", string(data))
}

// Record is a nil-safe shorthand for building and enqueueing an event.
func (e *Emitter) Record(ctx context.Context, params BuildParams) {
	if e == nil {
		return
	}
	e.Emit(ctx, BuildEvent(params))
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func coarse(v float64) float64 {
	return math.Round(v*100) / 100
}
