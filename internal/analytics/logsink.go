package analytics

import "casaspese/internal/log"

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{logger: logger.WithComponent(log.ComponentAnalytics)}
}

func (s *LogSink) Write(e Event) {
	args := []any{
		log.FieldInstanceID, e.InstanceID,
		log.FieldSeq, e.Seq,
		log.FieldEvent, string(e.Name),
	}
	for k, v := range e.Payload {
		args = append(args, "payload."+k, v)
	}
	s.logger.Info("analytics event", args...)
}
