package convstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportbot/dispatcher/pkg/models"
)

// PostgresStore is the durable Conversation Store backend, sharing its
// connection pool's table namespace with checkpoint.PostgresStore's
// migrations (see migrations/0002_conversation_turns.up.sql).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-connected pool. Migrations are run once
// via checkpoint.NewPostgresStore (or an equivalent migrate.New call against
// the same migrationsPath) since both stores share one migration sequence.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) AppendTurn(ctx context.Context, sessionID string, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	batch := make([][]any, len(messages))
	for i, msg := range messages {
		batch[i] = []any{sessionID, msg.Role, msg.Content, msg.ToolCallID, msg.ToolName}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("convstore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, row := range batch {
		_, err := tx.Exec(ctx, `
			INSERT INTO conversation_turns (session_id, role, content, tool_call_id, tool_name)
			VALUES ($1, $2, $3, $4, $5)
		`, row...)
		if err != nil {
			return fmt.Errorf("convstore: append %s: %w", sessionID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("convstore: commit %s: %w", sessionID, err)
	}
	return nil
}

func (p *PostgresStore) GetHistory(ctx context.Context, sessionID string) ([]models.Message, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT role, content, tool_call_id, tool_name
		FROM conversation_turns
		WHERE session_id = $1
		ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("convstore: get history %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.ToolCallID, &msg.ToolName); err != nil {
			return nil, fmt.Errorf("convstore: scan %s: %w", sessionID, err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT session_id FROM conversation_turns ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("convstore: list sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("convstore: scan session id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
