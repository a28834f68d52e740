package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/progress"
)

// LogSink emits structured logs for the progress stream. Useful during
// development or audits where metrics alone are not enough.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.logger.Info("progress event",
			zap.String("cycle_id", evt.CycleUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("source", evt.Source),
			zap.String("query", evt.Query),
			zap.String("strategy", evt.Strategy),
			zap.Int64("task_id", evt.TaskID),
			zap.Int64("items", evt.Items),
			zap.Int64("skipped", evt.Skipped),
			zap.Int64("attempts", evt.Attempts),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
