package usecase

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/telarian/switchboard/internal/core/domain"
)

// RelevanceMatrix is the static (context, agent) -> [0,1] scoring table.
// It is fixed at configuration time and never mutated afterwards; unknown
// pairs score 0.
type RelevanceMatrix struct {
	weights map[domain.DashboardContext]map[domain.Agent]float64
}

// DefaultRelevanceMatrix returns the built-in scoring table.
func DefaultRelevanceMatrix() *RelevanceMatrix {
	return &RelevanceMatrix{
		weights: map[domain.DashboardContext]map[domain.Agent]float64{
			domain.ContextHome: {
				domain.AgentSales:     0.8,
				domain.AgentAnalytics: 0.6,
				domain.AgentTalent:    0.5,
			},
			domain.ContextPreCallBrief: {
				domain.AgentSales:     0.9,
				domain.AgentAnalytics: 0.7,
				domain.AgentTalent:    0.3,
			},
			domain.ContextCaseStudy: {
				domain.AgentSales:     0.7,
				domain.AgentAnalytics: 0.9,
				domain.AgentTalent:    0.2,
			},
			domain.ContextTalentDiscovery: {
				domain.AgentSales:     0.2,
				domain.AgentAnalytics: 0.5,
				domain.AgentTalent:    0.95,
			},
			domain.ContextBidProposal: {
				domain.AgentSales:     0.85,
				domain.AgentAnalytics: 0.75,
				domain.AgentTalent:    0.4,
			},
		},
	}
}

type relevanceFile struct {
	Contexts map[string]map[string]float64 `yaml:"contexts"`
}

// LoadRelevanceMatrix reads a YAML override file. A missing or invalid file
// never fails the caller: the built-in defaults apply and the condition is
// logged.
func LoadRelevanceMatrix(path string, logger *slog.Logger) *RelevanceMatrix {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return DefaultRelevanceMatrix()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("relevance_matrix_fallback", "path", path, "error", err)
		return DefaultRelevanceMatrix()
	}

	var file relevanceFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		logger.Warn("relevance_matrix_fallback", "path", path, "error", err)
		return DefaultRelevanceMatrix()
	}

	matrix, err := buildRelevanceMatrix(file)
	if err != nil {
		logger.Warn("relevance_matrix_fallback", "path", path, "error", err)
		return DefaultRelevanceMatrix()
	}
	return matrix
}

func buildRelevanceMatrix(file relevanceFile) (*RelevanceMatrix, error) {
	if len(file.Contexts) == 0 {
		return nil, fmt.Errorf("no contexts configured")
	}

	weights := make(map[domain.DashboardContext]map[domain.Agent]float64, len(file.Contexts))
	for rawContext, agents := range file.Contexts {
		context, err := domain.ParseDashboardContext(rawContext)
		if err != nil {
			return nil, err
		}
		row := make(map[domain.Agent]float64, len(agents))
		for rawAgent, weight := range agents {
			agent, err := domain.ParseAgent(rawAgent)
			if err != nil {
				return nil, err
			}
			if weight < 0 || weight > 1 {
				return nil, fmt.Errorf("weight %v for %s/%s outside [0,1]", weight, rawContext, rawAgent)
			}
			row[agent] = weight
		}
		weights[context] = row
	}
	return &RelevanceMatrix{weights: weights}, nil
}

// Score is a pure lookup; unknown (context, agent) pairs return 0.
func (m *RelevanceMatrix) Score(context domain.DashboardContext, agent domain.Agent) float64 {
	row, ok := m.weights[context]
	if !ok {
		return 0
	}
	return row[agent]
}

// Candidates returns the agents configured for the context with nonzero
// relevance, in canonical declaration order.
func (m *RelevanceMatrix) Candidates(context domain.DashboardContext) []domain.Agent {
	row, ok := m.weights[context]
	if !ok {
		return nil
	}
	out := make([]domain.Agent, 0, len(row))
	for _, agent := range domain.AllAgents {
		if row[agent] > 0 {
			out = append(out, agent)
		}
	}
	return out
}
