package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/telarian/switchboard/internal/core/domain"
	"github.com/telarian/switchboard/internal/core/ports"
)

// AttributionUseCase folds completed agent responses into per-thread usage
// statistics and the append-only handoff log. A thread is created on its
// first attribution. The call is all-or-nothing: on any error the stored
// aggregate is unchanged.
//
// Callers must deliver each message exactly once; there is no deduplication
// key here.
type AttributionUseCase struct {
	threads ports.ThreadRepository
	locks   *ThreadLocks
	now     func() time.Time
}

func NewAttributionUseCase(threads ports.ThreadRepository, locks *ThreadLocks) *AttributionUseCase {
	if locks == nil {
		locks = NewThreadLocks()
	}
	return &AttributionUseCase{
		threads: threads,
		locks:   locks,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (uc *AttributionUseCase) Attribute(ctx context.Context, req domain.AttributionRequest) (*domain.ConversationThread, error) {
	if !req.Agent.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidAgent, "attribute message", fmt.Errorf("unknown agent %q", req.Agent))
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "attribute message", fmt.Errorf("user_id is required"))
	}
	if req.Context != "" && !req.Context.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "attribute message", fmt.Errorf("unknown context %q", req.Context))
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "attribute message", fmt.Errorf("confidence %v outside [0,1]", req.Confidence))
	}
	if req.ProcessingMS < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "attribute message", fmt.Errorf("processing_ms must not be negative"))
	}

	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}
	if req.MessageID == "" {
		req.MessageID = uuid.NewString()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = uc.now()
	}

	unlock := uc.locks.lock(req.ThreadID)
	defer unlock()

	thread, err := uc.threads.Get(ctx, req.UserID, req.ThreadID)
	switch {
	case err == nil:
	case domain.IsKind(err, domain.ErrThreadNotFound):
		thread = newThread(req)
	default:
		return nil, fmt.Errorf("load thread: %w", err)
	}

	// Work on a copy so a failed save leaves nothing half-applied.
	updated := thread.Clone()
	if event := nextHandoff(updated, req); event != nil {
		updated.Handoffs = append(updated.Handoffs, *event)
	}
	updated.UsageStats = foldUsage(updated.UsageStats, req)
	updated.MessageCount = updated.UsageStats.TotalMessages
	updated.ParticipatingAgents = deriveParticipants(updated.UsageStats)
	updated.PrimaryAgent = derivePrimary(updated.UsageStats)
	updated.UpdatedAt = req.Timestamp
	if req.Context != "" {
		updated.Context = req.Context
	}
	if updated.Title == "" && req.Title != "" {
		updated.Title = req.Title
	}

	if err := uc.threads.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("save thread: %w", err)
	}
	return updated, nil
}

func newThread(req domain.AttributionRequest) *domain.ConversationThread {
	title := req.Title
	if title == "" {
		title = "Conversation"
	}
	return &domain.ConversationThread{
		ID:        req.ThreadID,
		UserID:    req.UserID,
		Title:     title,
		Context:   req.Context,
		CreatedAt: req.Timestamp,
		UpdatedAt: req.Timestamp,
	}
}
