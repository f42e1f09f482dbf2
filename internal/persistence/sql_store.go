package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/petrijr/taskgraph/pkg/api"
)

// sqlQueries holds the dialect-specific statements of a SQL runner store.
type sqlQueries struct {
	schema string
	upsert string
	load   string
	remove string
	list   string
}

// sqlStore implements RunnerStore over database/sql. Unsigned ids are
// stored bit-for-bit in signed 64-bit columns.
type sqlStore struct {
	db *sql.DB
	q  sqlQueries
}

func newSQLStore(ctx context.Context, db *sql.DB, q sqlQueries) (*sqlStore, error) {
	if _, err := db.ExecContext(ctx, q.schema); err != nil {
		return nil, err
	}
	return &sqlStore{db: db, q: q}, nil
}

func (s *sqlStore) SaveRunner(ctx context.Context, rec RunnerRecord) error {
	_, err := s.db.ExecContext(ctx, s.q.upsert,
		int64(rec.Entity),
		rec.Graph,
		int64(rec.State.TemplateID),
		rec.State.NodeIndex,
		rec.State.StateTimer,
		string(rec.State.LastStatus),
		rec.State.Blackboard,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (RunnerRecord, error) {
	var (
		entity, templateID int64
		rec                RunnerRecord
		status             string
	)
	if err := row.Scan(&entity, &rec.Graph, &templateID, &rec.State.NodeIndex, &rec.State.StateTimer, &status, &rec.State.Blackboard); err != nil {
		return RunnerRecord{}, err
	}
	rec.Entity = api.EntityID(entity)
	rec.State.TemplateID = api.AssetID(templateID)
	rec.State.LastStatus = api.TaskStatus(status)
	return rec, nil
}

func (s *sqlStore) LoadRunner(ctx context.Context, entity api.EntityID) (RunnerRecord, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, s.q.load, int64(entity)))
	if errors.Is(err, sql.ErrNoRows) {
		return RunnerRecord{}, ErrRunnerNotFound
	}
	return rec, err
}

func (s *sqlStore) DeleteRunner(ctx context.Context, entity api.EntityID) error {
	_, err := s.db.ExecContext(ctx, s.q.remove, int64(entity))
	return err
}

func (s *sqlStore) ListRunners(ctx context.Context) ([]RunnerRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.q.list)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunnerRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRecords(out)
	return out, nil
}
