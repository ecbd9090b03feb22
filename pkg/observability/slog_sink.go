package observability

import (
	"log/slog"
)

// SlogSink writes every trace event as a structured log line.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Emit(event Event) {
	attrs := make([]any, 0, 2+2*len(event.Attrs))
	attrs = append(attrs, "session_id", event.SessionID)
	for k, v := range event.Attrs {
		attrs = append(attrs, k, v)
	}
	s.logger.Info(string(event.Type), attrs...)
}

var _ Sink = (*SlogSink)(nil)
