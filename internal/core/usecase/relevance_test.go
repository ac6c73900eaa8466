package usecase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telarian/switchboard/internal/core/domain"
)

func TestDefaultRelevanceMatrixScores(t *testing.T) {
	matrix := DefaultRelevanceMatrix()

	require.InDelta(t, 0.3, matrix.Score(domain.ContextPreCallBrief, domain.AgentTalent), 1e-9)
	require.InDelta(t, 0.95, matrix.Score(domain.ContextTalentDiscovery, domain.AgentTalent), 1e-9)
	require.Zero(t, matrix.Score(domain.DashboardContext("nope"), domain.AgentSales))
	require.Zero(t, matrix.Score(domain.ContextHome, domain.Agent("nope")))
}

func TestCandidatesKeepDeclarationOrder(t *testing.T) {
	matrix := DefaultRelevanceMatrix()
	require.Equal(t, domain.AllAgents, matrix.Candidates(domain.ContextHome))
	require.Empty(t, matrix.Candidates(domain.DashboardContext("nope")))
}

func TestLoadRelevanceMatrixFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relevance.yaml")
	content := []byte(`contexts:
  home:
    sales: 0.2
    talent: 0.9
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	matrix := LoadRelevanceMatrix(path, nil)
	require.InDelta(t, 0.2, matrix.Score(domain.ContextHome, domain.AgentSales), 1e-9)
	require.InDelta(t, 0.9, matrix.Score(domain.ContextHome, domain.AgentTalent), 1e-9)
	require.Zero(t, matrix.Score(domain.ContextHome, domain.AgentAnalytics))
	require.Zero(t, matrix.Score(domain.ContextCaseStudy, domain.AgentSales))
}

func TestLoadRelevanceMatrixFallsBackOnMissingFile(t *testing.T) {
	matrix := LoadRelevanceMatrix(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.InDelta(t, 0.9, matrix.Score(domain.ContextPreCallBrief, domain.AgentSales), 1e-9)
}

func TestLoadRelevanceMatrixFallsBackOnInvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relevance.yaml")

	for name, content := range map[string]string{
		"bad yaml":       "contexts: [",
		"unknown agent":  "contexts:\n  home:\n    wizard: 0.5\n",
		"out of range":   "contexts:\n  home:\n    sales: 1.5\n",
		"empty contexts": "contexts: {}\n",
	} {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600), name)
		matrix := LoadRelevanceMatrix(path, nil)
		require.InDelta(t, 0.8, matrix.Score(domain.ContextHome, domain.AgentSales), 1e-9, name)
	}
}
