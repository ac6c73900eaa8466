package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/telarian/switchboard/internal/core/domain"
	"github.com/telarian/switchboard/internal/core/ports"
)

// PreferenceUseCase owns the routing preference lifecycle. Load never fails
// the caller: a missing, malformed or stale record degrades to the defaults
// with a logged warning. Update validates and persists atomically.
type PreferenceUseCase struct {
	repo   ports.PreferenceRepository
	logger *slog.Logger
}

func NewPreferenceUseCase(repo ports.PreferenceRepository, logger *slog.Logger) *PreferenceUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferenceUseCase{repo: repo, logger: logger}
}

// storedPreferences tolerates the legacy field names older clients wrote.
type storedPreferences struct {
	RoutingMode      string   `json:"routing_mode"`
	LegacyMode       string   `json:"mode"`
	SelectedAgents   []string `json:"selected_agents"`
	LegacySelected   []string `json:"selected_agent_ids"`
	AutoRouteEnabled *bool    `json:"auto_route_enabled"`
	LegacyAutoRoute  *bool    `json:"auto_route"`
	ContextAware     *bool    `json:"context_aware"`
}

func (uc *PreferenceUseCase) Load(ctx context.Context, userID string) (domain.AgentPreferences, error) {
	raw, err := uc.repo.Load(ctx, userID)
	if err != nil {
		uc.logger.Warn("preferences_fallback", "user_id", userID, "reason", "load_failed", "error", err)
		return domain.DefaultPreferences(), nil
	}
	if len(raw) == 0 {
		return domain.DefaultPreferences(), nil
	}

	prefs, migrated, err := decodeStoredPreferences(raw)
	if err != nil {
		uc.logger.Warn("preferences_fallback", "user_id", userID, "reason", "malformed_record", "error", err)
		return domain.DefaultPreferences(), nil
	}
	if err := prefs.Validate(); err != nil {
		uc.logger.Warn("preferences_fallback", "user_id", userID, "reason", "invalid_record", "error", err)
		return domain.DefaultPreferences(), nil
	}

	if migrated {
		// One-time migration: rewrite the record under the current field
		// names. Best effort; the loaded value stands either way.
		if encoded, encErr := json.Marshal(prefs); encErr == nil {
			if saveErr := uc.repo.Save(ctx, userID, encoded); saveErr != nil {
				uc.logger.Warn("preferences_migration_save_failed", "user_id", userID, "error", saveErr)
			}
		}
	}
	return prefs, nil
}

func (uc *PreferenceUseCase) Update(ctx context.Context, userID string, prefs domain.AgentPreferences) error {
	if strings.TrimSpace(userID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "update preferences", fmt.Errorf("user_id is required"))
	}
	if err := prefs.Validate(); err != nil {
		return err
	}

	encoded, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := uc.repo.Save(ctx, userID, encoded); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func (uc *PreferenceUseCase) Reset(ctx context.Context, userID string) error {
	if err := uc.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return nil
}

func decodeStoredPreferences(raw []byte) (domain.AgentPreferences, bool, error) {
	var stored storedPreferences
	if err := json.Unmarshal(raw, &stored); err != nil {
		return domain.AgentPreferences{}, false, err
	}

	migrated := false

	mode := stored.RoutingMode
	if mode == "" && stored.LegacyMode != "" {
		mode = stored.LegacyMode
		migrated = true
	}

	selected := stored.SelectedAgents
	if len(selected) == 0 && len(stored.LegacySelected) > 0 {
		selected = stored.LegacySelected
		migrated = true
	}

	autoRoute := stored.AutoRouteEnabled
	if autoRoute == nil && stored.LegacyAutoRoute != nil {
		autoRoute = stored.LegacyAutoRoute
		migrated = true
	}
	if autoRoute == nil {
		enabled := domain.RoutingMode(mode) == domain.RoutingModeAuto
		autoRoute = &enabled
	}

	contextAware := true
	if stored.ContextAware != nil {
		contextAware = *stored.ContextAware
	}

	agents := make([]domain.Agent, 0, len(selected))
	for _, raw := range selected {
		agents = append(agents, domain.Agent(raw))
	}

	return domain.AgentPreferences{
		RoutingMode:      domain.RoutingMode(mode),
		SelectedAgents:   agents,
		AutoRouteEnabled: *autoRoute,
		ContextAware:     contextAware,
	}, migrated, nil
}
