package ports

import (
	"context"
	"io"

	"github.com/telarian/switchboard/internal/core/domain"
)

// QueryRouter is the inbound contract for routing resolution.
type QueryRouter interface {
	Resolve(ctx context.Context, req domain.RouteRequest) (*domain.RoutingDecision, error)
}

// MessageAttributor is the inbound contract for per-message agent
// attribution. Called exactly once per completed agent response.
type MessageAttributor interface {
	Attribute(ctx context.Context, req domain.AttributionRequest) (*domain.ConversationThread, error)
}

// ThreadDirectory is the inbound contract for browsing and curating
// conversation threads.
type ThreadDirectory interface {
	Get(ctx context.Context, userID, threadID string) (*domain.ConversationThread, error)
	Search(ctx context.Context, userID string, params domain.SearchParams) ([]domain.ConversationThread, error)
	SetPinned(ctx context.Context, userID, threadID string, pinned bool) (*domain.ConversationThread, error)
	SetArchived(ctx context.Context, userID, threadID string, archived bool) (*domain.ConversationThread, error)
	Rate(ctx context.Context, userID, threadID string, rating int) (*domain.ConversationThread, error)
	MutateTags(ctx context.Context, userID, threadID string, add, remove []string) (*domain.ConversationThread, error)
	ExportUsage(ctx context.Context, userID string, w io.Writer) error
}

// PreferenceService manages one user's routing preferences.
type PreferenceService interface {
	Load(ctx context.Context, userID string) (domain.AgentPreferences, error)
	Update(ctx context.Context, userID string, prefs domain.AgentPreferences) error
	Reset(ctx context.Context, userID string) error
}
