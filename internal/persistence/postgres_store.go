package persistence

import (
	"context"
	"database/sql"
)

// PostgresRunnerStore is a RunnerStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresRunnerStore struct {
	*sqlStore
}

var _ RunnerStore = (*PostgresRunnerStore)(nil)

// NewPostgresRunnerStore initializes the required schema in the given
// database and returns a new PostgresRunnerStore.
func NewPostgresRunnerStore(ctx context.Context, db *sql.DB) (*PostgresRunnerStore, error) {
	s, err := newSQLStore(ctx, db, sqlQueries{
		schema: `
			CREATE TABLE IF NOT EXISTS runners (
				entity BIGINT PRIMARY KEY,
				graph TEXT NOT NULL,
				template_id BIGINT NOT NULL,
				node_index INTEGER NOT NULL,
				state_timer DOUBLE PRECISION NOT NULL,
				last_status TEXT NOT NULL,
				blackboard BYTEA
			);`,
		upsert: `
			INSERT INTO runners (entity, graph, template_id, node_index, state_timer, last_status, blackboard)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (entity) DO UPDATE SET
				graph = EXCLUDED.graph,
				template_id = EXCLUDED.template_id,
				node_index = EXCLUDED.node_index,
				state_timer = EXCLUDED.state_timer,
				last_status = EXCLUDED.last_status,
				blackboard = EXCLUDED.blackboard`,
		load: `
			SELECT entity, graph, template_id, node_index, state_timer, last_status, blackboard
			FROM runners WHERE entity = $1`,
		remove: `DELETE FROM runners WHERE entity = $1`,
		list: `
			SELECT entity, graph, template_id, node_index, state_timer, last_status, blackboard
			FROM runners`,
	})
	if err != nil {
		return nil, err
	}
	return &PostgresRunnerStore{sqlStore: s}, nil
}
