package domain

import (
	"math"
	"time"
)

// AgentHandoff is one recorded transition of the active agent inside a
// thread. Events are append-only and never mutated after creation.
type AgentHandoff struct {
	ID                  string           `json:"id"`
	FromAgent           Agent            `json:"from_agent,omitempty"`
	ToAgent             Agent            `json:"to_agent"`
	Timestamp           time.Time        `json:"timestamp"`
	Reason              string           `json:"reason,omitempty"`
	TriggeringMessageID string           `json:"triggering_message_id"`
	ContextShift        DashboardContext `json:"context_shift,omitempty"`
}

// AgentStat is the rolled-up contribution of one agent inside a thread.
// Averages are incremental means; raw samples are never kept.
type AgentStat struct {
	MessageCount    int       `json:"message_count"`
	AvgProcessingMS float64   `json:"avg_processing_ms"`
	AvgConfidence   float64   `json:"avg_confidence"`
	FirstSeen       time.Time `json:"first_seen"`
}

type AgentUsageStats struct {
	TotalMessages int                 `json:"total_messages"`
	PerAgent      map[Agent]AgentStat `json:"per_agent,omitempty"`
	LastAgentUsed Agent               `json:"last_agent_used,omitempty"`
}

// SharePercent returns the agent's share of attributed messages as a
// display-ready 0-100 rounded integer.
func (s AgentUsageStats) SharePercent(agent Agent) int {
	if s.TotalMessages == 0 {
		return 0
	}
	stat, ok := s.PerAgent[agent]
	if !ok {
		return 0
	}
	return int(math.Round(float64(stat.MessageCount) / float64(s.TotalMessages) * 100))
}

// ConversationThread is the aggregate root for one conversation's
// participation record: handoff log, usage stats and user-facing state.
type ConversationThread struct {
	ID                  string           `json:"id"`
	UserID              string           `json:"user_id"`
	Title               string           `json:"title"`
	Context             DashboardContext `json:"context"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	MessageCount        int              `json:"message_count"`
	ParticipatingAgents []Agent          `json:"participating_agents,omitempty"`
	PrimaryAgent        Agent            `json:"primary_agent,omitempty"`
	Handoffs            []AgentHandoff   `json:"handoffs,omitempty"`
	UsageStats          AgentUsageStats  `json:"usage_stats"`
	Tags                []string         `json:"tags,omitempty"`
	Rating              int              `json:"rating,omitempty"`
	Pinned              bool             `json:"pinned"`
	Archived            bool             `json:"archived"`
}

func (t *ConversationThread) DistinctAgentCount() int {
	return len(t.ParticipatingAgents)
}

func (t *ConversationThread) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can hand threads across goroutines
// without sharing mutable slices or maps.
func (t *ConversationThread) Clone() *ConversationThread {
	if t == nil {
		return nil
	}
	out := *t
	out.ParticipatingAgents = append([]Agent(nil), t.ParticipatingAgents...)
	out.Handoffs = append([]AgentHandoff(nil), t.Handoffs...)
	out.Tags = append([]string(nil), t.Tags...)
	if t.UsageStats.PerAgent != nil {
		out.UsageStats.PerAgent = make(map[Agent]AgentStat, len(t.UsageStats.PerAgent))
		for agent, stat := range t.UsageStats.PerAgent {
			out.UsageStats.PerAgent[agent] = stat
		}
	}
	return &out
}
