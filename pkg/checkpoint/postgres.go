package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportbot/dispatcher/pkg/models"
)

// PostgresStore is the durable Checkpointer backend. One row per session,
// the whole SupervisorState stored as JSONB — the state is small and always
// read/written whole, so there is no benefit to normalizing it into columns.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to connURL and applies pending migrations from
// migrationsPath (a "file://..." source understood by golang-migrate).
func NewPostgresStore(ctx context.Context, connURL, migrationsPath string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("checkpoint: ping: %w", err)
	}

	if migrationsPath != "" {
		if err := runMigrations(migrationsPath, connURL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("checkpoint: migrate: %w", err)
		}
	}

	return &PostgresStore{pool: pool}, nil
}

func runMigrations(migrationsPath, connURL string) error {
	m, err := migrate.New(migrationsPath, connURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, threadID string) (models.SupervisorState, bool, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT state FROM checkpoints WHERE thread_id = $1`, threadID,
	).Scan(&raw)
	if err == pgx.ErrNoRows {
		return models.SupervisorState{}, false, nil
	}
	if err != nil {
		return models.SupervisorState{}, false, fmt.Errorf("checkpoint: get %s: %w", threadID, err)
	}

	var state models.SupervisorState
	if err := json.Unmarshal(raw, &state); err != nil {
		return models.SupervisorState{}, false, fmt.Errorf("checkpoint: decode %s: %w", threadID, err)
	}
	return state, true, nil
}

func (p *PostgresStore) Put(ctx context.Context, threadID string, state models.SupervisorState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("checkpoint: encode %s: %w", threadID, err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO checkpoints (thread_id, state, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (thread_id) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()
	`, threadID, raw)
	if err != nil {
		return fmt.Errorf("checkpoint: put %s: %w", threadID, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, threadID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM checkpoints WHERE thread_id = $1`, threadID)
	if err != nil {
		return fmt.Errorf("checkpoint: delete %s: %w", threadID, err)
	}
	return nil
}

// Close releases the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}
