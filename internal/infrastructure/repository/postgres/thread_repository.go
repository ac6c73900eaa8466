package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/telarian/switchboard/internal/core/domain"
)

type ThreadRepository struct {
	db *sql.DB
}

func NewThreadRepository(db *sql.DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

func (r *ThreadRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS conversation_threads (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	context TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	message_count INT NOT NULL DEFAULT 0,
	participating_agents JSONB NOT NULL DEFAULT '[]',
	primary_agent TEXT NOT NULL DEFAULT '',
	handoffs JSONB NOT NULL DEFAULT '[]',
	usage_stats JSONB NOT NULL DEFAULT '{}',
	tags JSONB NOT NULL DEFAULT '[]',
	rating INT NOT NULL DEFAULT 0,
	pinned BOOLEAN NOT NULL DEFAULT FALSE,
	archived BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_conversation_threads_user_updated
	ON conversation_threads (user_id, updated_at DESC);
`)
	if err != nil {
		return fmt.Errorf("ensure threads schema: %w", err)
	}
	return nil
}

const threadColumns = `id, user_id, title, context, created_at, updated_at, message_count,
participating_agents, primary_agent, handoffs, usage_stats, tags, rating, pinned, archived`

func (r *ThreadRepository) Get(ctx context.Context, userID, threadID string) (*domain.ConversationThread, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+threadColumns+`
FROM conversation_threads
WHERE user_id = $1 AND id = $2
`, userID, threadID)

	thread, err := scanThread(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrThreadNotFound, "get thread", fmt.Errorf("id %s", threadID))
		}
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return thread, nil
}

func (r *ThreadRepository) List(ctx context.Context, userID string) ([]domain.ConversationThread, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+threadColumns+`
FROM conversation_threads
WHERE user_id = $1
ORDER BY updated_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ConversationThread, 0)
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		out = append(out, *thread)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return out, nil
}

// Save upserts the whole aggregate in one statement, so readers only ever
// observe a complete before or after state.
func (r *ThreadRepository) Save(ctx context.Context, thread *domain.ConversationThread) error {
	participants, err := json.Marshal(thread.ParticipatingAgents)
	if err != nil {
		return fmt.Errorf("encode participants: %w", err)
	}
	handoffs, err := json.Marshal(thread.Handoffs)
	if err != nil {
		return fmt.Errorf("encode handoffs: %w", err)
	}
	stats, err := json.Marshal(thread.UsageStats)
	if err != nil {
		return fmt.Errorf("encode usage stats: %w", err)
	}
	tags, err := json.Marshal(thread.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO conversation_threads (`+threadColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	context = EXCLUDED.context,
	updated_at = EXCLUDED.updated_at,
	message_count = EXCLUDED.message_count,
	participating_agents = EXCLUDED.participating_agents,
	primary_agent = EXCLUDED.primary_agent,
	handoffs = EXCLUDED.handoffs,
	usage_stats = EXCLUDED.usage_stats,
	tags = EXCLUDED.tags,
	rating = EXCLUDED.rating,
	pinned = EXCLUDED.pinned,
	archived = EXCLUDED.archived
`,
		thread.ID,
		thread.UserID,
		thread.Title,
		string(thread.Context),
		thread.CreatedAt,
		thread.UpdatedAt,
		thread.MessageCount,
		participants,
		string(thread.PrimaryAgent),
		handoffs,
		stats,
		tags,
		thread.Rating,
		thread.Pinned,
		thread.Archived,
	)
	if err != nil {
		return fmt.Errorf("save thread: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (*domain.ConversationThread, error) {
	var (
		thread       domain.ConversationThread
		context      string
		primaryAgent string
		participants []byte
		handoffs     []byte
		stats        []byte
		tags         []byte
	)
	if err := row.Scan(
		&thread.ID,
		&thread.UserID,
		&thread.Title,
		&context,
		&thread.CreatedAt,
		&thread.UpdatedAt,
		&thread.MessageCount,
		&participants,
		&primaryAgent,
		&handoffs,
		&stats,
		&tags,
		&thread.Rating,
		&thread.Pinned,
		&thread.Archived,
	); err != nil {
		return nil, err
	}

	thread.Context = domain.DashboardContext(context)
	thread.PrimaryAgent = domain.Agent(primaryAgent)
	if err := json.Unmarshal(participants, &thread.ParticipatingAgents); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	if err := json.Unmarshal(handoffs, &thread.Handoffs); err != nil {
		return nil, fmt.Errorf("decode handoffs: %w", err)
	}
	if err := json.Unmarshal(stats, &thread.UsageStats); err != nil {
		return nil, fmt.Errorf("decode usage stats: %w", err)
	}
	if err := json.Unmarshal(tags, &thread.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return &thread, nil
}
