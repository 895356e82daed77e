package analytics

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/ashita-ai/quire/internal/model"
	"github.com/ashita-ai/quire/internal/stats"
)

func (s *Service) transitionMatrix(ctx context.Context, orgID uuid.UUID, src stats.Source) (model.TransitionMatrix, error) {
	events, err := s.store.ManuscriptStatusHistory(ctx, orgID)
	if err != nil {
		return model.TransitionMatrix{}, fmt.Errorf("analytics: status history: %w", err)
	}

	states, matrix := fitTransitions(events)
	if len(states) == 0 {
		s.logger.Info("markov analysis skipped: no status history", "org_id", orgID)
		return model.TransitionMatrix{
			States:               []string{},
			Matrix:               [][]float64{},
			SteadyState:          []float64{},
			ExpectedHittingTimes: map[string]float64{},
		}, nil
	}

	target := slices.Index(states, TargetStatus)
	if target < 0 {
		target = len(states) - 1
	}

	steady := stats.SteadyState(matrix, stats.SteadyStateMaxIterations, stats.SteadyStateTolerance)
	times, err := stats.HittingTimes(ctx, src, matrix, target, stats.HittingTimeOptions{Workers: s.cfg.Workers})
	if err != nil {
		return model.TransitionMatrix{}, fmt.Errorf("analytics: hitting times: %w", err)
	}

	hitting := make(map[string]float64, len(states))
	for i, st := range states {
		hitting[st] = times[i]
	}

	s.logger.Info("markov analysis complete",
		"org_id", orgID, "states", len(states), "events", len(events), "target", states[target])

	return model.TransitionMatrix{
		States:               states,
		Matrix:               matrix,
		SteadyState:          steady,
		ExpectedHittingTimes: hitting,
		TargetState:          states[target],
	}, nil
}

// fitTransitions discovers the state space and the row-stochastic
// transition matrix from status events. States are ordered by first
// appearance once events are sorted by time. Consecutive events of the same
// manuscript form one observed transition. A state never observed leaving
// becomes an absorbing self-loop.
func fitTransitions(events []model.StatusEvent) ([]string, [][]float64) {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b model.StatusEvent) int {
		return a.ChangedAt.Compare(b.ChangedAt)
	})

	index := make(map[string]int)
	var states []string
	for _, e := range sorted {
		if _, ok := index[e.Status]; !ok {
			index[e.Status] = len(states)
			states = append(states, e.Status)
		}
	}
	n := len(states)

	counts := make([][]float64, n)
	for i := range counts {
		counts[i] = make([]float64, n)
	}

	last := make(map[uuid.UUID]int)
	for _, e := range sorted {
		cur := index[e.Status]
		if prev, ok := last[e.ManuscriptID]; ok {
			counts[prev][cur]++
		}
		last[e.ManuscriptID] = cur
	}

	for i, row := range counts {
		var total float64
		for _, c := range row {
			total += c
		}
		if total == 0 {
			row[i] = 1
			continue
		}
		for j := range row {
			row[j] /= total
		}
	}
	return states, counts
}
