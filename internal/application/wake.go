package application

import (
	"context"
	"fmt"

	"buddy/internal/domain"
)

// WakeScorer returns a confidence in [0, 1] for every wake label it knows.
type WakeScorer interface {
	Score(ctx context.Context, samples []float32) (map[string]float64, error)
}

// WakeGate decides whether a candidate buffer should start a turn.
type WakeGate interface {
	ShouldActivate(ctx context.Context, utt domain.Utterance) (bool, error)
}

const DefaultWakeThreshold = 0.5

// NewWakeGate accepts every candidate unless a wake trigger is required and
// a scorer is available.
func NewWakeGate(required bool, scorer WakeScorer, threshold float64) WakeGate {
	if !required || scorer == nil {
		return AlwaysAccept{}
	}
	return &ScoredGate{scorer: scorer, threshold: threshold}
}

type AlwaysAccept struct{}

func (AlwaysAccept) ShouldActivate(_ context.Context, _ domain.Utterance) (bool, error) {
	return true, nil
}

// ScoredGate activates when any label scores strictly above the threshold.
type ScoredGate struct {
	scorer    WakeScorer
	threshold float64
}

func (g *ScoredGate) ShouldActivate(ctx context.Context, utt domain.Utterance) (bool, error) {
	scores, err := g.scorer.Score(ctx, utt.Float32())
	if err != nil {
		return false, fmt.Errorf("scoring wake trigger: %w", err)
	}

	for _, confidence := range scores {
		if confidence > g.threshold {
			return true, nil
		}
	}
	return false, nil
}
