package history

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore appends timeline events to a leadership_events table.
// It is an audit sink only: nothing in the coordinator reads it back.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS leadership_events (
	id         BIGSERIAL PRIMARY KEY,
	stage      TEXT NOT NULL,
	node_id    BIGINT NOT NULL,
	tick       BIGINT NOT NULL,
	slice      INT NOT NULL DEFAULT 0,
	sgxt       INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
)`

// NewPostgresStore opens a pool against connString and ensures the
// audit table exists.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Record(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	query := `
		INSERT INTO leadership_events (stage, node_id, tick, slice, sgxt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query,
		e.Stage, int64(e.NodeID), int64(e.Tick), e.Slice, e.SGXt, e.Timestamp,
	)
	return err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
