package ports

import (
	"context"
	"io"

	"github.com/telarian/switchboard/internal/core/domain"
)

// ThreadRepository persists conversation threads. Save replaces the whole
// aggregate atomically; partial writes are never visible.
type ThreadRepository interface {
	Get(ctx context.Context, userID, threadID string) (*domain.ConversationThread, error)
	List(ctx context.Context, userID string) ([]domain.ConversationThread, error)
	Save(ctx context.Context, thread *domain.ConversationThread) error
}

// PreferenceRepository stores the raw preference record per user. The
// record is opaque JSON; interpretation (including legacy-field migration
// and validation fallback) belongs to the preference service.
type PreferenceRepository interface {
	Load(ctx context.Context, userID string) ([]byte, error)
	Save(ctx context.Context, userID string, record []byte) error
	Delete(ctx context.Context, userID string) error
}

// MessageQueue carries attribution events from the message pipeline.
type MessageQueue interface {
	PublishAttribution(ctx context.Context, req domain.AttributionRequest) error
	SubscribeAttributions(ctx context.Context, handler func(context.Context, domain.AttributionRequest) error) error
}

// UsageReportWriter renders a usage-analytics report for download.
type UsageReportWriter interface {
	WriteUsageReport(w io.Writer, threads []domain.ConversationThread) error
}
