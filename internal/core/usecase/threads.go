package usecase

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/telarian/switchboard/internal/core/domain"
	"github.com/telarian/switchboard/internal/core/ports"
)

// ThreadDirectoryUseCase exposes browsing and curation over conversation
// threads: conjunctive search, stable sort, pin/archive, rating and tags.
type ThreadDirectoryUseCase struct {
	threads ports.ThreadRepository
	reports ports.UsageReportWriter
	locks   *ThreadLocks
	now     func() time.Time
}

func NewThreadDirectoryUseCase(threads ports.ThreadRepository, reports ports.UsageReportWriter, locks *ThreadLocks) *ThreadDirectoryUseCase {
	if locks == nil {
		locks = NewThreadLocks()
	}
	return &ThreadDirectoryUseCase{
		threads: threads,
		reports: reports,
		locks:   locks,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ThreadDirectoryUseCase) Get(ctx context.Context, userID, threadID string) (*domain.ConversationThread, error) {
	return uc.threads.Get(ctx, userID, threadID)
}

func (uc *ThreadDirectoryUseCase) Search(ctx context.Context, userID string, params domain.SearchParams) ([]domain.ConversationThread, error) {
	all, err := uc.threads.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	out := make([]domain.ConversationThread, 0, len(all))
	for _, thread := range all {
		if matchesFilters(&thread, params) {
			out = append(out, thread)
		}
	}
	sortThreads(out, params.Sort)
	return out, nil
}

// matchesFilters applies every configured dimension conjunctively. An empty
// dimension constrains nothing.
func matchesFilters(t *domain.ConversationThread, p domain.SearchParams) bool {
	if q := strings.ToLower(strings.TrimSpace(p.Query)); q != "" {
		if !strings.Contains(strings.ToLower(t.Title), q) && !anyTagContains(t.Tags, q) {
			return false
		}
	}
	if len(p.Agents) > 0 && !agentsIntersect(t.ParticipatingAgents, p.Agents) {
		return false
	}
	if len(p.Contexts) > 0 && !contextIn(t.Context, p.Contexts) {
		return false
	}
	if p.UpdatedAfter != nil && t.UpdatedAt.Before(*p.UpdatedAfter) {
		return false
	}
	if p.UpdatedBefore != nil && t.UpdatedAt.After(*p.UpdatedBefore) {
		return false
	}
	if p.HasHandoffs != nil && (len(t.Handoffs) > 0) != *p.HasHandoffs {
		return false
	}
	if p.Pinned != nil && t.Pinned != *p.Pinned {
		return false
	}
	if p.Archived != nil && t.Archived != *p.Archived {
		return false
	}
	if p.MinRating > 0 && t.Rating < p.MinRating {
		return false
	}
	for _, tag := range p.Tags {
		if !t.HasTag(tag) {
			return false
		}
	}
	return true
}

// sortThreads orders threads stably so equal keys preserve their prior
// relative order. Default is updated_at descending.
func sortThreads(threads []domain.ConversationThread, spec domain.SortSpec) {
	field := spec.Field
	if field == "" {
		field = domain.SortByUpdatedAt
		spec.Descending = true
	}

	less := func(a, b *domain.ConversationThread) bool {
		switch field {
		case domain.SortByCreatedAt:
			return a.CreatedAt.Before(b.CreatedAt)
		case domain.SortByMessageCount:
			return a.MessageCount < b.MessageCount
		case domain.SortByAgentCount:
			return a.DistinctAgentCount() < b.DistinctAgentCount()
		case domain.SortByRating:
			return a.Rating < b.Rating
		default:
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
	}

	sort.SliceStable(threads, func(i, j int) bool {
		if spec.Descending {
			return less(&threads[j], &threads[i])
		}
		return less(&threads[i], &threads[j])
	})
}

func (uc *ThreadDirectoryUseCase) SetPinned(ctx context.Context, userID, threadID string, pinned bool) (*domain.ConversationThread, error) {
	return uc.mutate(ctx, userID, threadID, func(t *domain.ConversationThread) error {
		t.Pinned = pinned
		return nil
	})
}

func (uc *ThreadDirectoryUseCase) SetArchived(ctx context.Context, userID, threadID string, archived bool) (*domain.ConversationThread, error) {
	return uc.mutate(ctx, userID, threadID, func(t *domain.ConversationThread) error {
		t.Archived = archived
		return nil
	})
}

// Rate overwrites any prior rating; it is idempotent-settable, not
// cumulative. Values outside 1..5 are rejected and the thread is unchanged.
func (uc *ThreadDirectoryUseCase) Rate(ctx context.Context, userID, threadID string, rating int) (*domain.ConversationThread, error) {
	if rating < 1 || rating > 5 {
		return nil, domain.WrapError(domain.ErrInvalidRating, "rate thread", fmt.Errorf("rating %d outside 1..5", rating))
	}
	return uc.mutate(ctx, userID, threadID, func(t *domain.ConversationThread) error {
		t.Rating = rating
		return nil
	})
}

func (uc *ThreadDirectoryUseCase) MutateTags(ctx context.Context, userID, threadID string, add, remove []string) (*domain.ConversationThread, error) {
	return uc.mutate(ctx, userID, threadID, func(t *domain.ConversationThread) error {
		for _, tag := range add {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				return domain.WrapError(domain.ErrInvalidInput, "mutate tags", fmt.Errorf("empty tag"))
			}
			if !t.HasTag(tag) {
				t.Tags = append(t.Tags, tag)
			}
		}
		for _, tag := range remove {
			for i, existing := range t.Tags {
				if existing == tag {
					t.Tags = append(t.Tags[:i], t.Tags[i+1:]...)
					break
				}
			}
		}
		return nil
	})
}

// ExportUsage renders the usage-analytics workbook for all of the user's
// threads.
func (uc *ThreadDirectoryUseCase) ExportUsage(ctx context.Context, userID string, w io.Writer) error {
	if uc.reports == nil {
		return fmt.Errorf("export usage: no report writer configured")
	}
	threads, err := uc.threads.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}
	sortThreads(threads, domain.SortSpec{Field: domain.SortByUpdatedAt, Descending: true})
	if err := uc.reports.WriteUsageReport(w, threads); err != nil {
		return fmt.Errorf("write usage report: %w", err)
	}
	return nil
}

// mutate loads, mutates and saves under the thread's writer lock so curation
// never interleaves with attribution.
func (uc *ThreadDirectoryUseCase) mutate(ctx context.Context, userID, threadID string, apply func(*domain.ConversationThread) error) (*domain.ConversationThread, error) {
	unlock := uc.locks.lock(threadID)
	defer unlock()

	thread, err := uc.threads.Get(ctx, userID, threadID)
	if err != nil {
		return nil, err
	}

	updated := thread.Clone()
	if err := apply(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = uc.now()

	if err := uc.threads.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("save thread: %w", err)
	}
	return updated, nil
}

func anyTagContains(tags []string, query string) bool {
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

func agentsIntersect(have, want []domain.Agent) bool {
	for _, a := range have {
		for _, b := range want {
			if a == b {
				return true
			}
		}
	}
	return false
}

func contextIn(context domain.DashboardContext, contexts []domain.DashboardContext) bool {
	for _, c := range contexts {
		if c == context {
			return true
		}
	}
	return false
}
