// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TournamentMetrics tracks round progress, voting health and adapter
// failures over a run.
type TournamentMetrics struct {
	// roundCounter tracks completed rounds
	roundCounter metric.Int64Counter

	// eliminationCounter tracks eliminated agents by round
	eliminationCounter metric.Int64Counter

	// abstentionCounter tracks ballots that degraded to abstentions
	abstentionCounter metric.Int64Counter

	// adapterFailureCounter tracks backend call failures by error code
	adapterFailureCounter metric.Int64Counter

	// populationGauge tracks the live agent count
	populationGauge metric.Int64Gauge

	// roundDuration tracks wall time per round in seconds
	roundDuration metric.Float64Histogram
}

// NewTournamentMetrics creates a tournament metrics tracker with OTEL meters.
func NewTournamentMetrics() (*TournamentMetrics, error) {
	meter := otel.Meter("arena/tournament")

	roundCounter, err := meter.Int64Counter(
		"arena.rounds.total",
		metric.WithDescription("Completed tournament rounds"),
	)
	if err != nil {
		return nil, err
	}

	eliminationCounter, err := meter.Int64Counter(
		"arena.eliminations.total",
		metric.WithDescription("Agents eliminated by vote"),
	)
	if err != nil {
		return nil, err
	}

	abstentionCounter, err := meter.Int64Counter(
		"arena.abstentions.total",
		metric.WithDescription("Ballots degraded to abstentions"),
	)
	if err != nil {
		return nil, err
	}

	adapterFailureCounter, err := meter.Int64Counter(
		"arena.adapter.failures.total",
		metric.WithDescription("Backend call failures by error code"),
	)
	if err != nil {
		return nil, err
	}

	populationGauge, err := meter.Int64Gauge(
		"arena.population",
		metric.WithDescription("Live agent count"),
	)
	if err != nil {
		return nil, err
	}

	roundDuration, err := meter.Float64Histogram(
		"arena.round.duration",
		metric.WithDescription("Wall time per round in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &TournamentMetrics{
		roundCounter:          roundCounter,
		eliminationCounter:    eliminationCounter,
		abstentionCounter:     abstentionCounter,
		adapterFailureCounter: adapterFailureCounter,
		populationGauge:       populationGauge,
		roundDuration:         roundDuration,
	}, nil
}

// RecordRound records a completed round and its duration.
func (tm *TournamentMetrics) RecordRound(ctx context.Context, seconds float64) {
	if tm == nil {
		return
	}
	tm.roundCounter.Add(ctx, 1)
	tm.roundDuration.Record(ctx, seconds)
}

// RecordElimination records an eliminated agent.
func (tm *TournamentMetrics) RecordElimination(ctx context.Context, round int) {
	if tm == nil {
		return
	}
	tm.eliminationCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.Int("round", round)),
	)
}

// RecordAbstentions records voters whose ballots degraded to abstentions.
func (tm *TournamentMetrics) RecordAbstentions(ctx context.Context, n int64) {
	if tm == nil || n == 0 {
		return
	}
	tm.abstentionCounter.Add(ctx, n)
}

// RecordAdapterFailure records a backend call failure by error code.
func (tm *TournamentMetrics) RecordAdapterFailure(ctx context.Context, code string) {
	if tm == nil {
		return
	}
	tm.adapterFailureCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("error.code", code)),
	)
}

// RecordPopulation records the live agent count.
func (tm *TournamentMetrics) RecordPopulation(ctx context.Context, n int64) {
	if tm == nil {
		return
	}
	tm.populationGauge.Record(ctx, n)
}
