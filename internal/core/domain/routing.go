package domain

import "time"

// UserContext is the identity the auth collaborator resolved for a request.
// This core never authenticates; it only reads the permitted surface.
type UserContext struct {
	UserID      string   `json:"user_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

const agentPermissionPrefix = "agent:"

// PermittedAgents extracts the agents this identity may route to. No
// agent-scoped permissions means unrestricted.
func (u UserContext) PermittedAgents() []Agent {
	var out []Agent
	for _, perm := range u.Permissions {
		if len(perm) <= len(agentPermissionPrefix) || perm[:len(agentPermissionPrefix)] != agentPermissionPrefix {
			continue
		}
		agent := Agent(perm[len(agentPermissionPrefix):])
		if agent.Valid() {
			out = append(out, agent)
		}
	}
	return out
}

// RouteRequest carries everything Resolve needs; there is no hidden
// process-wide preference state.
type RouteRequest struct {
	Context         DashboardContext `json:"context"`
	Preferences     AgentPreferences `json:"preferences"`
	PermittedAgents []Agent          `json:"permitted_agents,omitempty"`
}

// RoutingDecision is the resolver output plus enough metadata for the UI to
// explain why an agent was chosen.
type RoutingDecision struct {
	Suggested []Agent     `json:"suggested"`
	Preferred Agent       `json:"preferred"`
	Mode      RoutingMode `json:"mode"`
	// ContextApplied is false when context-awareness was disabled and the
	// stored selection order was used directly.
	ContextApplied bool `json:"context_applied"`
	// FallbackApplied is true when manual mode waived the relevance
	// threshold because it would have produced an empty candidate set.
	FallbackApplied bool `json:"fallback_applied"`
}

// AttributionRequest is one completed agent response, supplied by the
// message pipeline. Callers must deliver each message exactly once; the
// aggregator keeps no deduplication key.
type AttributionRequest struct {
	ThreadID      string           `json:"thread_id"`
	UserID        string           `json:"user_id"`
	Title         string           `json:"title,omitempty"`
	Context       DashboardContext `json:"context,omitempty"`
	Agent         Agent            `json:"agent"`
	MessageID     string           `json:"message_id"`
	ProcessingMS  int64            `json:"processing_ms"`
	Confidence    float64          `json:"confidence"`
	HandoffReason string           `json:"handoff_reason,omitempty"`
	Timestamp     time.Time        `json:"timestamp,omitempty"`
}
