package persistence

import (
	"context"
	"errors"
	"slices"

	"github.com/petrijr/taskgraph/pkg/api"
)

// ErrRunnerNotFound is returned when no runner is stored for an entity.
var ErrRunnerNotFound = errors.New("runner not found")

// RunnerRecord is the persisted form of one bound entity: its runner state
// and the asset path the template was loaded from, so the template can be
// reloaded before the runner is restored.
type RunnerRecord struct {
	Entity api.EntityID
	Graph  string
	State  api.RunnerState
}

// RunnerStore handles storage of runner records, keyed by entity.
type RunnerStore interface {
	// SaveRunner inserts or replaces the record for rec.Entity.
	SaveRunner(ctx context.Context, rec RunnerRecord) error
	LoadRunner(ctx context.Context, entity api.EntityID) (RunnerRecord, error)
	// DeleteRunner removes the record for entity. It is idempotent.
	DeleteRunner(ctx context.Context, entity api.EntityID) error
	// ListRunners returns every record ordered by entity.
	ListRunners(ctx context.Context) ([]RunnerRecord, error)
}

func sortRecords(recs []RunnerRecord) {
	slices.SortFunc(recs, func(a, b RunnerRecord) int {
		switch {
		case a.Entity < b.Entity:
			return -1
		case a.Entity > b.Entity:
			return 1
		}
		return 0
	})
}

func cloneRecord(rec RunnerRecord) RunnerRecord {
	rec.State.Blackboard = slices.Clone(rec.State.Blackboard)
	return rec
}
