package activation

import "context"

// StdoutSink writes each event to the process log.
type StdoutSink struct{}

func NewStdoutSink() *StdoutSink { return &StdoutSink{} }

func (s *StdoutSink) Name() string { return "stdout" }

func (s *StdoutSink) Deliver(_ context.Context, ev *Event) error {
	LogEvent(ev)
	return nil
}

func (s *StdoutSink) Close(context.Context) error { return nil }
