package taskgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/petrijr/taskgraph/internal/assets"
	"github.com/petrijr/taskgraph/internal/engine"
	"github.com/petrijr/taskgraph/internal/graph"
	"github.com/petrijr/taskgraph/internal/persistence"
	"github.com/petrijr/taskgraph/internal/tasks"
	"github.com/petrijr/taskgraph/pkg/blackboard"
	"github.com/petrijr/taskgraph/pkg/worker"
)

// ErrNotBound is returned for entities without a runner.
var ErrNotBound = errors.New("taskgraph: entity not bound")

// HostConfig describes how to construct a Host. Every field is optional.
type HostConfig struct {
	Logger   *slog.Logger
	Observer Observer

	// World provides component facades to leaves. Nil runs headless.
	World World

	// AssetRoot is prepended to relative graph paths when reading files.
	AssetRoot string

	// Workers and QueueCapacity size the path-planning pool.
	Workers       int
	QueueCapacity int

	// Planner solves path requests. Defaults to worker.StraightLine.
	Planner worker.Planner

	// TickParallelism is the number of entities ticked concurrently.
	// Values below 2 tick in entity order on the calling goroutine.
	TickParallelism int

	// Store persists runners for Save and Restore. Defaults to an
	// in-memory store.
	Store RunnerStore
}

type binding struct {
	runner *engine.Runner
	tmpl   *graph.Template
}

// Host bundles an asset manager, a task registry with the built-in leaves,
// a task system, a path-planning worker pool and a runner store into a
// simple "local runner" for a simulation loop.
//
// Typical usage:
//
//	host := taskgraph.NewHost(taskgraph.HostConfig{})
//	host.Start(ctx)
//	defer host.Close()
//
//	id, err := host.LoadGraph("graphs/patrol.json")
//	_ = host.BindEntity(42, id)
//	for frame := range frames {
//	    _ = host.Tick(ctx, frame.DeltaTime)
//	}
//
// Host methods are safe for concurrent use. Tick holds the host for the
// duration of the tick.
type Host struct {
	id          string
	logger      *slog.Logger
	assets      *assets.Manager
	registry    *engine.TaskRegistry
	system      *engine.System
	paths       *worker.Pool
	store       RunnerStore
	closeStore  func() error
	parallelism int

	mu    sync.Mutex
	bound map[EntityID]*binding
}

// NewHost constructs a Host and registers the built-in leaves.
func NewHost(cfg HostConfig) *Host {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	logger = logger.With(slog.String("host", id))
	store := cfg.Store
	if store == nil {
		store = persistence.NewInMemoryStore()
	}

	pool := worker.NewPool(worker.PoolConfig{
		Workers:       cfg.Workers,
		QueueCapacity: cfg.QueueCapacity,
		Planner:       cfg.Planner,
		Logger:        logger,
	})
	reg := engine.NewTaskRegistry()
	tasks.RegisterBuiltins(reg, tasks.Deps{Paths: pool, Logger: logger})

	return &Host{
		id:       id,
		logger:   logger,
		assets:   assets.NewManager(assets.Config{Root: cfg.AssetRoot, Logger: logger}),
		registry: reg,
		system: engine.NewSystem(engine.Config{
			Registry: reg,
			Observer: cfg.Observer,
			Logger:   logger,
			World:    cfg.World,
		}),
		paths:       pool,
		store:       store,
		closeStore:  func() error { return nil },
		parallelism: cfg.TickParallelism,
		bound:       make(map[EntityID]*binding),
	}
}

// ID returns the random id of this host instance.
func (h *Host) ID() string { return h.id }

// Register installs a leaf factory, replacing any previous one for id.
// It should be called before ticking starts.
func (h *Host) Register(id string, factory TaskFactory) {
	h.registry.Register(id, factory)
}

// RegisterAlias makes alias resolve to the task registered as id.
func (h *Host) RegisterAlias(alias, id string) {
	h.registry.RegisterAlias(alias, id)
}

// Start launches the path-planning workers. They run until Close or until
// ctx is cancelled.
func (h *Host) Start(ctx context.Context) {
	h.paths.Start(ctx)
	h.logger.Info("host started")
}

// Close stops the workers and releases the runner store. Bound runners are
// left as they are.
func (h *Host) Close() error {
	h.paths.Stop()
	return h.closeStore()
}

// LoadGraph loads the graph at path, or returns the id of the cached one.
func (h *Host) LoadGraph(path string) (AssetID, error) {
	return h.assets.LoadTaskGraph(path)
}

// RegisterGraph caches a graph built in code under a virtual path.
func (h *Host) RegisterGraph(path string, tmpl *Template) (AssetID, error) {
	return h.assets.Register(path, tmpl)
}

// Graph returns a cached graph, or nil.
func (h *Host) Graph(id AssetID) *Template {
	return h.assets.GetTaskGraph(id)
}

// UnloadGraph drops a graph from the cache. Entities bound to it keep
// running.
func (h *Host) UnloadGraph(id AssetID) bool {
	return h.assets.UnloadTaskGraph(id)
}

// BindEntity starts entity at the root of graph id. A previous binding is
// unbound first, aborting its live leaf.
func (h *Host) BindEntity(ctx context.Context, entity EntityID, id AssetID) error {
	tmpl, err := h.assets.Lookup(id)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.unbindLocked(ctx, entity)
	h.bound[entity] = &binding{runner: h.system.Bind(entity, id, tmpl), tmpl: tmpl}
	return nil
}

func (h *Host) unbindLocked(ctx context.Context, entity EntityID) bool {
	b, ok := h.bound[entity]
	if !ok {
		return false
	}
	h.system.Unbind(ctx, entity, b.runner, b.tmpl)
	delete(h.bound, entity)
	return true
}

// UnbindEntity aborts the entity's live leaf and forgets its runner.
func (h *Host) UnbindEntity(ctx context.Context, entity EntityID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unbindLocked(ctx, entity)
}

// Interrupt finishes the entity's graph. A live leaf is aborted on the
// next tick.
func (h *Host) Interrupt(entity EntityID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.bound[entity]
	if ok {
		b.runner.Interrupt()
	}
	return ok
}

// Reset aborts the entity's live leaf and restarts its graph with a fresh
// blackboard.
func (h *Host) Reset(ctx context.Context, entity EntityID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.bound[entity]
	if ok {
		h.system.Reset(ctx, entity, b.runner, b.tmpl)
	}
	return ok
}

// Entities returns the bound entities in ascending order.
func (h *Host) Entities() []EntityID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sortedLocked()
}

func (h *Host) sortedLocked() []EntityID {
	out := make([]EntityID, 0, len(h.bound))
	for e := range h.bound {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// State returns a snapshot of the entity's runner.
func (h *Host) State(entity EntityID) (RunnerState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.bound[entity]
	if !ok {
		return RunnerState{}, false
	}
	return b.runner.Snapshot(), true
}

// Variable reads a variable from the entity's blackboard.
func (h *Host) Variable(entity EntityID, name string) (Value, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.bound[entity]
	if !ok {
		return Value{}, fmt.Errorf("%w: %d", ErrNotBound, entity)
	}
	bb := blackboard.New(b.tmpl.Variables())
	if err := bb.Deserialize(b.runner.Blackboard); err != nil {
		return Value{}, err
	}
	return bb.GetValue(name)
}

// Tick advances every bound entity by one node. Finished runners are
// visited too, so interrupted leaves get aborted. The returned error
// reports engine defects only; leaf failures are part of normal graph
// flow.
func (h *Host) Tick(ctx context.Context, dt float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entities := h.sortedLocked()
	if h.parallelism < 2 {
		var errs []error
		for _, e := range entities {
			b := h.bound[e]
			if err := h.system.ExecuteNode(ctx, e, b.runner, b.tmpl, dt); err != nil {
				errs = append(errs, fmt.Errorf("entity %d: %w", e, err))
			}
		}
		return errors.Join(errs...)
	}

	var g errgroup.Group
	g.SetLimit(h.parallelism)
	for _, e := range entities {
		b := h.bound[e]
		g.Go(func() error {
			if err := h.system.ExecuteNode(ctx, e, b.runner, b.tmpl, dt); err != nil {
				return fmt.Errorf("entity %d: %w", e, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Save writes every bound runner to the store.
func (h *Host) Save(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.sortedLocked() {
		b := h.bound[e]
		path, _ := h.assets.Path(b.runner.TemplateID)
		rec := RunnerRecord{Entity: e, Graph: path, State: b.runner.Snapshot()}
		if err := h.store.SaveRunner(ctx, rec); err != nil {
			return fmt.Errorf("save entity %d: %w", e, err)
		}
	}
	return nil
}

// Restore binds every runner found in the store, reloading graphs by path
// when they are not cached. Restored runners re-enter their current node
// with a fresh leaf. It returns the number of entities restored; records
// that cannot be restored are reported together in the error.
func (h *Host) Restore(ctx context.Context) (int, error) {
	recs, err := h.store.ListRunners(ctx)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	restored := 0
	for _, rec := range recs {
		tmpl, err := h.templateFor(rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("restore entity %d: %w", rec.Entity, err))
			continue
		}
		if n := rec.State.NodeIndex; n != graph.None && (n < 0 || n >= tmpl.Len()) {
			errs = append(errs, fmt.Errorf("restore entity %d: node %d outside graph %q", rec.Entity, n, tmpl.Name()))
			continue
		}
		h.unbindLocked(ctx, rec.Entity)
		h.bound[rec.Entity] = &binding{runner: engine.RestoreRunner(rec.State), tmpl: tmpl}
		restored++
	}
	return restored, errors.Join(errs...)
}

func (h *Host) templateFor(rec RunnerRecord) (*graph.Template, error) {
	if tmpl := h.assets.GetTaskGraph(rec.State.TemplateID); tmpl != nil {
		return tmpl, nil
	}
	if rec.Graph == "" {
		return nil, fmt.Errorf("%w: %d", assets.ErrAssetNotFound, rec.State.TemplateID)
	}
	id, err := h.assets.LoadTaskGraph(rec.Graph)
	if err != nil {
		return nil, err
	}
	if id != rec.State.TemplateID {
		return nil, fmt.Errorf("graph %q has id %d, record expects %d", rec.Graph, id, rec.State.TemplateID)
	}
	return h.assets.GetTaskGraph(id), nil
}
