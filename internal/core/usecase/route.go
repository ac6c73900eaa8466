package usecase

import (
	"context"
	"sort"

	"github.com/telarian/switchboard/internal/core/domain"
)

// relevanceThreshold is the minimum score a selected agent needs to survive
// the manual-mode filter.
const relevanceThreshold = 0.5

// RoutingUseCase resolves which agents should handle a query for a given
// dashboard context. Resolution is a pure, deterministic computation over
// the request and the configured matrix: identical inputs always produce
// identical decisions.
type RoutingUseCase struct {
	matrix *RelevanceMatrix
}

func NewRoutingUseCase(matrix *RelevanceMatrix) *RoutingUseCase {
	if matrix == nil {
		matrix = DefaultRelevanceMatrix()
	}
	return &RoutingUseCase{matrix: matrix}
}

func (uc *RoutingUseCase) Resolve(_ context.Context, req domain.RouteRequest) (*domain.RoutingDecision, error) {
	prefs := req.Preferences
	permitted := permittedSet(req.PermittedAgents)
	selected := filterPermitted(prefs.SelectedAgents, permitted)

	decision := &domain.RoutingDecision{
		Mode:           prefs.RoutingMode,
		ContextApplied: prefs.ContextAware,
	}

	if !prefs.ContextAware {
		// No scoring without context-awareness: the stored selection
		// order governs directly.
		decision.Suggested = append([]domain.Agent(nil), selected...)
	} else {
		candidates := filterPermitted(uc.matrix.Candidates(req.Context), permitted)
		sort.SliceStable(candidates, func(i, j int) bool {
			si := uc.matrix.Score(req.Context, candidates[i])
			sj := uc.matrix.Score(req.Context, candidates[j])
			if si != sj {
				return si > sj
			}
			return candidates[i].Rank() < candidates[j].Rank()
		})

		if prefs.RoutingMode == domain.RoutingModeManual {
			relevant := make([]domain.Agent, 0, len(selected))
			for _, agent := range selected {
				if uc.matrix.Score(req.Context, agent) >= relevanceThreshold {
					relevant = append(relevant, agent)
				}
			}
			if len(relevant) == 0 && len(selected) > 0 {
				// Manual mode must never return zero candidates while the
				// user has a selection: waive the threshold and keep the
				// stored order.
				relevant = append(relevant, selected...)
				decision.FallbackApplied = true
			}
			decision.Suggested = relevant
		} else {
			decision.Suggested = candidates
		}
	}

	if len(decision.Suggested) == 0 {
		decision.Suggested = filterPermitted(domain.AllAgents, permitted)
	}

	decision.Preferred = preferredAgent(decision.Suggested, selected)
	return decision, nil
}

func preferredAgent(suggested, selected []domain.Agent) domain.Agent {
	for _, agent := range suggested {
		for _, chosen := range selected {
			if agent == chosen {
				return agent
			}
		}
	}
	if len(selected) > 0 {
		return selected[0]
	}
	return domain.DefaultAgent
}

func permittedSet(agents []domain.Agent) map[domain.Agent]struct{} {
	if len(agents) == 0 {
		return nil
	}
	out := make(map[domain.Agent]struct{}, len(agents))
	for _, agent := range agents {
		out[agent] = struct{}{}
	}
	return out
}

func filterPermitted(agents []domain.Agent, permitted map[domain.Agent]struct{}) []domain.Agent {
	if permitted == nil {
		return append([]domain.Agent(nil), agents...)
	}
	out := make([]domain.Agent, 0, len(agents))
	for _, agent := range agents {
		if _, ok := permitted[agent]; ok {
			out = append(out, agent)
		}
	}
	return out
}
