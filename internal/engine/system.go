package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/petrijr/taskgraph/internal/graph"
	"github.com/petrijr/taskgraph/pkg/api"
	"github.com/petrijr/taskgraph/pkg/blackboard"
)

var (
	// ErrNodeOutOfRange means a runner points outside its template. It is an
	// engine defect, not a leaf failure.
	ErrNodeOutOfRange = errors.New("node index out of range")

	// ErrNilTemplate is returned when a tick is requested without a
	// template.
	ErrNilTemplate = errors.New("nil template")

	// ErrNilRunner is returned when a tick is requested without a runner.
	ErrNilRunner = errors.New("nil runner")
)

// Config describes how to construct a System.
type Config struct {
	Registry *TaskRegistry
	Observer api.Observer
	Logger   *slog.Logger

	// World provides component facades. Nil runs every leaf headless.
	World api.World
}

// System advances runners one node per tick.
//
// A System holds no per-entity state and may tick distinct runners from
// several goroutines at once, provided each runner is ticked by one
// goroutine at a time and the configured Observer is safe for concurrent
// use.
type System struct {
	registry *TaskRegistry
	observer api.Observer
	logger   *slog.Logger
	world    api.World
}

// NewSystem creates a System from cfg. A nil registry is replaced by an
// empty one, a nil observer by api.NoopObserver and a nil logger by
// slog.Default().
func NewSystem(cfg Config) *System {
	reg := cfg.Registry
	if reg == nil {
		reg = NewTaskRegistry()
	}
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &System{
		registry: reg,
		observer: obs,
		logger:   logger,
		world:    cfg.World,
	}
}

// Registry returns the registry leaves are created from.
func (s *System) Registry() *TaskRegistry { return s.registry }

// MissingTasks lists the task ids tmpl references that do not resolve in
// the registry. Such nodes fail when ticked.
func (s *System) MissingTasks(tmpl *graph.Template) []string {
	var missing []string
	for _, id := range tmpl.TaskIDs() {
		if !s.registry.IsRegistered(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// Bind creates a runner for entity at the root of tmpl. Unregistered task
// ids are logged but do not prevent binding.
func (s *System) Bind(entity api.EntityID, id api.AssetID, tmpl *graph.Template) *Runner {
	if missing := s.MissingTasks(tmpl); len(missing) > 0 {
		s.logger.Warn("graph references unregistered tasks",
			slog.Uint64("entity", uint64(entity)),
			slog.String("graph", tmpl.Name()),
			slog.Any("tasks", missing),
		)
	}
	return NewRunner(id, tmpl)
}

// Unbind aborts the runner's live leaf, if any, and finishes the runner.
func (s *System) Unbind(ctx context.Context, entity api.EntityID, runner *Runner, tmpl *graph.Template) {
	s.abort(ctx, entity, runner, tmpl)
	runner.CurrentNode = graph.None
}

// Reset aborts any live leaf and rewinds the runner to the root with a
// fresh blackboard.
func (s *System) Reset(ctx context.Context, entity api.EntityID, runner *Runner, tmpl *graph.Template) {
	s.abort(ctx, entity, runner, tmpl)
	runner.CurrentNode = tmpl.RootIndex()
	runner.StateTimer = 0
	runner.LastStatus = ""
	runner.Blackboard = blackboard.New(tmpl.Variables()).Serialize()
}

func (s *System) nodeInfo(entity api.EntityID, tmpl *graph.Template, index int) api.NodeInfo {
	info := api.NodeInfo{Entity: entity, Index: index}
	if tmpl == nil {
		return info
	}
	info.Graph = tmpl.Name()
	if n, ok := tmpl.GetNode(index); ok {
		info.NodeID = n.ID
		info.Name = n.Name
		info.TaskID = n.TaskID
	}
	return info
}

func (s *System) abort(ctx context.Context, entity api.EntityID, runner *Runner, tmpl *graph.Template) {
	node, ok := runner.abortActive()
	if !ok {
		return
	}
	runner.StateTimer = 0
	s.observer.OnTaskAborted(ctx, s.nodeInfo(entity, tmpl, node))
}

// ExecuteNode ticks runner once.
//
// A finished runner is left alone, except that a leaf still live from
// before an interrupt is aborted. Otherwise the current node's leaf is
// resumed, or created fresh, and executed with its resolved parameters.
// Running keeps the cursor and the leaf; Success and Failure release the
// leaf and follow the node's NextOnSuccess or NextOnFailure edge.
//
// Unregistered leaves, unresolvable parameters and unreadable blackboards
// are reported as a Failure of the node. The returned error is non-nil only
// for engine defects.
func (s *System) ExecuteNode(ctx context.Context, entity api.EntityID, runner *Runner, tmpl *graph.Template, dt float64) error {
	if runner == nil {
		return ErrNilRunner
	}
	if tmpl == nil {
		return ErrNilTemplate
	}

	if runner.CurrentNode == graph.None {
		s.abort(ctx, entity, runner, tmpl)
		return nil
	}

	index := runner.CurrentNode
	node, ok := tmpl.GetNode(index)
	if !ok {
		return fmt.Errorf("%w: %d (graph %q has %d nodes)", ErrNodeOutOfRange, index, tmpl.Name(), tmpl.Len())
	}
	info := s.nodeInfo(entity, tmpl, index)

	// The cursor was moved while a leaf of another node was live.
	if runner.HasActiveTask() && runner.active.node != index {
		s.abort(ctx, entity, runner, tmpl)
	}

	task := runner.active.task
	fresh := task == nil
	if fresh {
		task = s.registry.Create(node.TaskID)
		if task == nil {
			s.logger.Warn("unregistered task",
				slog.Uint64("entity", uint64(entity)),
				slog.String("graph", tmpl.Name()),
				slog.String("task", node.TaskID),
			)
			s.finish(ctx, entity, runner, tmpl, node, info, api.StatusFailure, dt)
			return nil
		}
		runner.StateTimer = 0
		s.observer.OnNodeStart(ctx, info)
	}

	bb := blackboard.New(tmpl.Variables())
	if err := bb.Deserialize(runner.Blackboard); err != nil {
		s.logger.Error("unreadable blackboard",
			slog.Uint64("entity", uint64(entity)),
			slog.String("graph", tmpl.Name()),
			slog.Any("error", err),
		)
		s.fail(ctx, entity, runner, tmpl, node, info, fresh, dt)
		return nil
	}

	params, err := resolveParams(node, bb)
	if err != nil {
		s.logger.Debug("parameter resolution failed",
			slog.Uint64("entity", uint64(entity)),
			slog.String("node", node.Name),
			slog.Any("error", err),
		)
		s.fail(ctx, entity, runner, tmpl, node, info, fresh, dt)
		return nil
	}

	tc := &api.TaskContext{
		Entity:     entity,
		DeltaTime:  dt,
		Blackboard: bb,
		Logger:     s.logger,
	}
	if s.world != nil {
		tc.Components = s.world.Components(entity)
	}

	var status api.TaskStatus
	if ct, ok := task.(api.ContextTask); ok {
		status = ct.ExecuteWithContext(tc, params)
	} else {
		status = task.Execute(params)
	}

	runner.Blackboard = bb.Serialize()

	switch status {
	case api.StatusRunning:
		if fresh {
			runner.start(task, index)
		}
		runner.StateTimer += dt
	case api.StatusSuccess, api.StatusFailure:
		runner.complete()
		s.finish(ctx, entity, runner, tmpl, node, info, status, dt)
	default:
		s.logger.Error("leaf returned unknown status",
			slog.String("task", node.TaskID),
			slog.String("status", string(status)),
		)
		runner.complete()
		s.finish(ctx, entity, runner, tmpl, node, info, api.StatusFailure, dt)
	}
	return nil
}

// fail drives a Failure transition for a node whose leaf could not run.
// A leaf resumed from an earlier Running tick is aborted first.
func (s *System) fail(ctx context.Context, entity api.EntityID, runner *Runner, tmpl *graph.Template, node *graph.Node, info api.NodeInfo, fresh bool, dt float64) {
	if !fresh {
		s.abort(ctx, entity, runner, tmpl)
	}
	s.finish(ctx, entity, runner, tmpl, node, info, api.StatusFailure, dt)
}

func (s *System) finish(ctx context.Context, entity api.EntityID, runner *Runner, tmpl *graph.Template, node *graph.Node, info api.NodeInfo, status api.TaskStatus, dt float64) {
	elapsed := runner.StateTimer + dt
	runner.StateTimer = 0
	runner.LastStatus = status
	if status == api.StatusSuccess {
		runner.CurrentNode = node.NextOnSuccess
	} else {
		runner.CurrentNode = node.NextOnFailure
	}

	s.observer.OnNodeCompleted(ctx, info, status, elapsed)
	if runner.CurrentNode == graph.None {
		s.observer.OnGraphFinished(ctx, entity, tmpl.Name(), status)
	}
}

func resolveParams(node *graph.Node, bb api.Blackboard) (api.Params, error) {
	params := make(api.Params, len(node.Params))
	for name, b := range node.Params {
		if !b.IsReference() {
			params[name] = b.LiteralValue()
			continue
		}
		v, err := bb.GetValue(b.Reference())
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		params[name] = v
	}
	return params, nil
}
