package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "speakerkit"

// Metrics holds all SpeakerKit metric instruments.
type Metrics struct {
	TurnsStarted   metric.Int64Counter
	TurnsCompleted metric.Int64Counter
	TurnsDegraded  metric.Int64Counter
	SessionsOpened metric.Int64Counter
	TurnDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TurnsStarted, err = meter.Int64Counter("speakerkit.turns.started",
		metric.WithDescription("Number of chat turns submitted to the agent"))
	if err != nil {
		return nil, err
	}

	m.TurnsCompleted, err = meter.Int64Counter("speakerkit.turns.completed",
		metric.WithDescription("Number of chat turns answered by the agent"))
	if err != nil {
		return nil, err
	}

	m.TurnsDegraded, err = meter.Int64Counter("speakerkit.turns.degraded",
		metric.WithDescription("Number of chat turns answered with the fallback message"))
	if err != nil {
		return nil, err
	}

	m.SessionsOpened, err = meter.Int64Counter("speakerkit.sessions.opened",
		metric.WithDescription("Number of remote agent sessions initialized"))
	if err != nil {
		return nil, err
	}

	m.TurnDuration, err = meter.Float64Histogram("speakerkit.turn.duration_seconds",
		metric.WithDescription("End-to-end turn duration including agent polling"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
