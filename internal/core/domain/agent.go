package domain

import "fmt"

// Agent is a specialized assistant capability. The set is closed: routing,
// attribution and scoring only ever deal with the agents declared here.
type Agent string

const (
	AgentSales     Agent = "sales"
	AgentAnalytics Agent = "analytics"
	AgentTalent    Agent = "talent"
)

// AllAgents lists every known agent in canonical order. Declaration order is
// the deterministic tie-break everywhere scores are equal.
var AllAgents = []Agent{AgentSales, AgentAnalytics, AgentTalent}

// DefaultAgent is the fixed fallback when routing has nothing else to offer.
const DefaultAgent = AgentSales

func (a Agent) Valid() bool {
	for _, known := range AllAgents {
		if a == known {
			return true
		}
	}
	return false
}

// Rank returns the canonical position of the agent, len(AllAgents) for
// unknown values so they always sort last.
func (a Agent) Rank() int {
	for i, known := range AllAgents {
		if a == known {
			return i
		}
	}
	return len(AllAgents)
}

func ParseAgent(raw string) (Agent, error) {
	agent := Agent(raw)
	if !agent.Valid() {
		return "", WrapError(ErrInvalidAgent, "parse agent", fmt.Errorf("unknown agent %q", raw))
	}
	return agent, nil
}

// DashboardContext tags the screen/task situation a query arrives from.
type DashboardContext string

const (
	ContextHome            DashboardContext = "home"
	ContextPreCallBrief    DashboardContext = "pre-call-brief"
	ContextCaseStudy       DashboardContext = "case-study"
	ContextTalentDiscovery DashboardContext = "talent-discovery"
	ContextBidProposal     DashboardContext = "bid-proposal"
)

var AllContexts = []DashboardContext{
	ContextHome,
	ContextPreCallBrief,
	ContextCaseStudy,
	ContextTalentDiscovery,
	ContextBidProposal,
}

func (c DashboardContext) Valid() bool {
	for _, known := range AllContexts {
		if c == known {
			return true
		}
	}
	return false
}

func ParseDashboardContext(raw string) (DashboardContext, error) {
	context := DashboardContext(raw)
	if !context.Valid() {
		return "", WrapError(ErrInvalidInput, "parse context", fmt.Errorf("unknown dashboard context %q", raw))
	}
	return context, nil
}
