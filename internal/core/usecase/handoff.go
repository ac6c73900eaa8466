package usecase

import (
	"github.com/google/uuid"

	"github.com/telarian/switchboard/internal/core/domain"
)

// nextHandoff returns the handoff event an attribution implies, or nil when
// the attributed agent already holds the thread. The first agent in a thread
// produces an event with an absent FromAgent.
func nextHandoff(thread *domain.ConversationThread, req domain.AttributionRequest) *domain.AgentHandoff {
	active := thread.UsageStats.LastAgentUsed
	if active == req.Agent {
		return nil
	}

	handoff := &domain.AgentHandoff{
		ID:                  uuid.NewString(),
		FromAgent:           active,
		ToAgent:             req.Agent,
		Timestamp:           req.Timestamp,
		Reason:              req.HandoffReason,
		TriggeringMessageID: req.MessageID,
	}
	if req.Context != "" && req.Context != thread.Context {
		handoff.ContextShift = req.Context
	}
	return handoff
}

// foldUsage applies one attribution to a copy of the stats. Averages use the
// incremental mean so memory stays bounded regardless of thread length.
func foldUsage(stats domain.AgentUsageStats, req domain.AttributionRequest) domain.AgentUsageStats {
	out := stats
	out.PerAgent = make(map[domain.Agent]domain.AgentStat, len(stats.PerAgent)+1)
	for agent, stat := range stats.PerAgent {
		out.PerAgent[agent] = stat
	}

	stat, seen := out.PerAgent[req.Agent]
	if !seen {
		stat.FirstSeen = req.Timestamp
	}
	stat.MessageCount++
	count := float64(stat.MessageCount)
	stat.AvgProcessingMS += (float64(req.ProcessingMS) - stat.AvgProcessingMS) / count
	stat.AvgConfidence += (req.Confidence - stat.AvgConfidence) / count
	out.PerAgent[req.Agent] = stat

	out.TotalMessages++
	out.LastAgentUsed = req.Agent
	return out
}

// deriveParticipants returns the union of attributed agents ordered by first
// appearance, canonical order breaking exact timestamp ties.
func deriveParticipants(stats domain.AgentUsageStats) []domain.Agent {
	out := make([]domain.Agent, 0, len(stats.PerAgent))
	for _, agent := range domain.AllAgents {
		if _, ok := stats.PerAgent[agent]; ok {
			out = append(out, agent)
		}
	}
	sortByFirstSeen(out, stats)
	return out
}

// derivePrimary picks the agent with the largest message count; ties go to
// the earliest first appearance.
func derivePrimary(stats domain.AgentUsageStats) domain.Agent {
	var primary domain.Agent
	var best domain.AgentStat
	for _, agent := range deriveParticipants(stats) {
		stat := stats.PerAgent[agent]
		if primary == "" || stat.MessageCount > best.MessageCount {
			primary = agent
			best = stat
		}
	}
	return primary
}

func sortByFirstSeen(agents []domain.Agent, stats domain.AgentUsageStats) {
	for i := 1; i < len(agents); i++ {
		for j := i; j > 0; j-- {
			prev := stats.PerAgent[agents[j-1]]
			cur := stats.PerAgent[agents[j]]
			if cur.FirstSeen.Before(prev.FirstSeen) {
				agents[j-1], agents[j] = agents[j], agents[j-1]
				continue
			}
			break
		}
	}
}

// ReplayUsage rebuilds stats and the handoff log from an ordered attribution
// sequence. It is the reference semantics for Attribute: folding the same
// sequence twice yields identical results.
func ReplayUsage(seq []domain.AttributionRequest) (domain.AgentUsageStats, []domain.AgentHandoff) {
	var stats domain.AgentUsageStats
	var handoffs []domain.AgentHandoff
	scratch := &domain.ConversationThread{}
	for _, req := range seq {
		if scratch.UsageStats.TotalMessages == 0 {
			// Thread creation establishes the context; the first message
			// never records a context shift.
			scratch.Context = req.Context
		}
		if event := nextHandoff(scratch, req); event != nil {
			handoffs = append(handoffs, *event)
		}
		stats = foldUsage(stats, req)
		scratch.UsageStats = stats
		if req.Context != "" {
			scratch.Context = req.Context
		}
	}
	return stats, handoffs
}
