package activation

import (
	"context"
	"fmt"
	"strings"

	"github.com/recycle-ai/recycle/internal/config"
)

var knownKinds = map[Kind]bool{
	KindClassification:  true,
	KindQuizSubmitted:   true,
	KindPickupRequested: true,
	KindLogin:           true,
	KindLogout:          true,
}

// ParseKinds converts configured kind names, rejecting unknown ones.
func ParseKinds(names []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(names))
	for _, n := range names {
		k := Kind(strings.ToLower(strings.TrimSpace(n)))
		if !knownKinds[k] {
			return nil, fmt.Errorf("unknown event kind %q", n)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// NewFromConfig builds the sinks named in cfg and starts an emitter. It
// returns nil when no sink is configured.
func NewFromConfig(cfg config.ActivationConfig) (*Emitter, error) {
	var sinks []Sink
	if cfg.Stdout {
		sinks = append(sinks, NewStdoutSink())
	}
	for i, sc := range cfg.Sinks {
		s, err := buildSink(sc)
		if err != nil {
			closeSinks(sinks)
			return nil, fmt.Errorf("activation sink %d: %w", i, err)
		}
		sinks = append(sinks, s)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return NewEmitter(EmitterConfig{
		QueueSize:       cfg.QueueSize,
		Workers:         cfg.Workers,
		ShutdownTimeout: cfg.ShutdownTimeout,
		DeliveryTimeout: cfg.DeliveryTimeout,
	}, sinks), nil
}

func buildSink(sc config.ActivationSinkConfig) (Sink, error) {
	kinds, err := ParseKinds(sc.Kinds)
	if err != nil {
		return nil, err
	}
	var s Sink
	switch strings.ToLower(strings.TrimSpace(sc.Type)) {
	case "file_jsonl":
		s, err = NewFileSink(sc.Path, sc.MaxBytes)
	case "webhook":
		s, err = NewWebhookSink(sc.URL, sc.Headers, sc.Timeout)
	default:
		return nil, fmt.Errorf("unknown type %q", sc.Type)
	}
	if err != nil {
		return nil, err
	}
	return OnlyKinds(s, kinds...), nil
}

func closeSinks(sinks []Sink) {
	for _, s := range sinks {
		_ = s.Close(context.Background())
	}
}
