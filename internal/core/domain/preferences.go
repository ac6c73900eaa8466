package domain

import "fmt"

type RoutingMode string

const (
	RoutingModeAuto   RoutingMode = "auto"
	RoutingModeManual RoutingMode = "manual"
)

func (m RoutingMode) Valid() bool {
	return m == RoutingModeAuto || m == RoutingModeManual
}

// AgentPreferences is one user's routing configuration. Invariant:
// AutoRouteEnabled is true exactly when RoutingMode is auto; the caller
// maintains it and Update rejects records that break it.
type AgentPreferences struct {
	RoutingMode      RoutingMode `json:"routing_mode"`
	SelectedAgents   []Agent     `json:"selected_agents"`
	AutoRouteEnabled bool        `json:"auto_route_enabled"`
	ContextAware     bool        `json:"context_aware"`
}

func DefaultPreferences() AgentPreferences {
	return AgentPreferences{
		RoutingMode:      RoutingModeAuto,
		SelectedAgents:   append([]Agent(nil), AllAgents...),
		AutoRouteEnabled: true,
		ContextAware:     true,
	}
}

func (p AgentPreferences) Validate() error {
	if !p.RoutingMode.Valid() {
		return WrapError(ErrInvalidInput, "validate preferences", fmt.Errorf("unknown routing mode %q", p.RoutingMode))
	}
	if p.AutoRouteEnabled != (p.RoutingMode == RoutingModeAuto) {
		return WrapError(ErrInvalidInput, "validate preferences",
			fmt.Errorf("auto_route_enabled=%t contradicts routing_mode=%s", p.AutoRouteEnabled, p.RoutingMode))
	}
	if len(p.SelectedAgents) == 0 {
		return WrapError(ErrEmptySelection, "validate preferences", fmt.Errorf("selected_agents must not be empty"))
	}
	seen := make(map[Agent]struct{}, len(p.SelectedAgents))
	for _, agent := range p.SelectedAgents {
		if !agent.Valid() {
			return WrapError(ErrInvalidAgent, "validate preferences", fmt.Errorf("unknown agent %q", agent))
		}
		if _, dup := seen[agent]; dup {
			return WrapError(ErrInvalidInput, "validate preferences", fmt.Errorf("duplicate agent %q in selection", agent))
		}
		seen[agent] = struct{}{}
	}
	return nil
}

// Selected reports whether the agent belongs to the user's selection.
func (p AgentPreferences) Selected(agent Agent) bool {
	for _, selected := range p.SelectedAgents {
		if selected == agent {
			return true
		}
	}
	return false
}
