package taskgraph

import (
	"context"
	"io"
	"os"

	"github.com/petrijr/taskgraph/internal/config"
	"github.com/petrijr/taskgraph/internal/logging"
	"github.com/petrijr/taskgraph/internal/persistence"
	"github.com/petrijr/taskgraph/pkg/worker"
)

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() Config { return config.Default() }

// OpenHost builds a Host from a Config: a logger writing to stderr, the
// configured runner store, and a grid planner when navigation data is
// present. Close the host to release the store.
//
// Typical usage:
//
//	cfg, _ := taskgraph.LoadConfig("taskgraph.yaml")
//	host, err := taskgraph.OpenHost(ctx, cfg, world)
//	if err != nil { ... }
//	defer host.Close()
func OpenHost(ctx context.Context, cfg Config, world World) (*Host, error) {
	return OpenHostWithOutput(ctx, cfg, world, os.Stderr)
}

// OpenHostWithOutput is OpenHost with the log output chosen by the caller.
func OpenHostWithOutput(ctx context.Context, cfg Config, world World, logOut io.Writer) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, err := logging.New(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := persistence.Open(ctx, cfg.Store.Options())
	if err != nil {
		return nil, err
	}

	var planner worker.Planner
	if cfg.Nav != nil {
		planner = cfg.Nav.Grid()
	}

	h := NewHost(HostConfig{
		Logger:          logger,
		World:           world,
		Workers:         cfg.Workers,
		QueueCapacity:   cfg.QueueCapacity,
		Planner:         planner,
		TickParallelism: cfg.TickParallelism,
		Store:           store,
	})
	h.closeStore = closeStore
	logger.Debug("host configured",
		"host", h.ID(),
		"store", cfg.Store.Backend,
		"workers", cfg.Workers,
		"tick_parallelism", cfg.TickParallelism,
	)
	return h, nil
}
