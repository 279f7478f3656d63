package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultNamespace = "default"
	dbTimeout        = 5 * time.Second
)

// PostgresStateStore persists tracker state as a single jsonb row per
// namespace, so several students can share one database.
type PostgresStateStore struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPostgresStateStore creates a Postgres-backed state store and ensures
// its table exists. An empty namespace falls back to "default".
func NewPostgresStateStore(ctx context.Context, pool *pgxpool.Pool, namespace string) (*PostgresStateStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if namespace == "" {
		namespace = defaultNamespace
	}

	_, err := pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS tracker_state (
			namespace  text PRIMARY KEY,
			state      jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return nil, fmt.Errorf("ensure tracker_state table: %w", err)
	}

	return &PostgresStateStore{pool: pool, namespace: namespace}, nil
}

func (s *PostgresStateStore) Load(ctx context.Context) (*PersistedState, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM tracker_state WHERE namespace = $1`,
		s.namespace,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load state: %w", err)
	}

	var state PersistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

func (s *PostgresStateStore) Save(ctx context.Context, state PersistedState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO tracker_state (namespace, state, updated_at)
		 VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (namespace)
		 DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		s.namespace,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
