package persistence

import (
	"context"
	"database/sql"
)

// SQLiteRunnerStore is a RunnerStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteRunnerStore struct {
	*sqlStore
}

var _ RunnerStore = (*SQLiteRunnerStore)(nil)

// NewSQLiteRunnerStore initializes the required schema in the given
// database and returns a new SQLiteRunnerStore.
func NewSQLiteRunnerStore(ctx context.Context, db *sql.DB) (*SQLiteRunnerStore, error) {
	s, err := newSQLStore(ctx, db, sqlQueries{
		schema: `
			CREATE TABLE IF NOT EXISTS runners (
				entity INTEGER PRIMARY KEY,
				graph TEXT NOT NULL,
				template_id INTEGER NOT NULL,
				node_index INTEGER NOT NULL,
				state_timer REAL NOT NULL,
				last_status TEXT NOT NULL,
				blackboard BLOB
			);`,
		upsert: `
			INSERT INTO runners (entity, graph, template_id, node_index, state_timer, last_status, blackboard)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(entity) DO UPDATE SET
				graph = excluded.graph,
				template_id = excluded.template_id,
				node_index = excluded.node_index,
				state_timer = excluded.state_timer,
				last_status = excluded.last_status,
				blackboard = excluded.blackboard`,
		load: `
			SELECT entity, graph, template_id, node_index, state_timer, last_status, blackboard
			FROM runners WHERE entity = ?`,
		remove: `DELETE FROM runners WHERE entity = ?`,
		list: `
			SELECT entity, graph, template_id, node_index, state_timer, last_status, blackboard
			FROM runners`,
	})
	if err != nil {
		return nil, err
	}
	return &SQLiteRunnerStore{sqlStore: s}, nil
}
