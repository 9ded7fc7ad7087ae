package pipeline

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/tracing"
)

// stage runs fn as a child span of ctx and records its duration and
// failure in the stage metrics.
func (s *Session) stage(ctx context.Context, name string, fn func(ctx context.Context, span *tracing.Span) error) error {
	ctx, span := tracing.StartChildSpan(ctx, name)
	start := time.Now()
	err := fn(ctx, span)
	span.End()
	s.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.Fail(err)
		s.metrics.StageErrorsTotal.WithLabelValues(name).Inc()
	}
	return err
}
