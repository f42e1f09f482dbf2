package api

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
)

// NodeInfo identifies the node an Observer callback refers to.
type NodeInfo struct {
	Entity EntityID
	Graph  string
	Index  int
	NodeID int
	Name   string
	TaskID string
}

// Observer receives callbacks from the task system for logging and metrics.
//
// Callbacks run inline on the tick that triggered them; implementations
// should be fast and non-blocking.
type Observer interface {
	// OnNodeStart is called when a fresh leaf instance is created for a node,
	// before its first execution.
	OnNodeStart(ctx context.Context, n NodeInfo)

	// OnNodeCompleted is called when a node reports Success or Failure.
	// elapsed is the simulated time spent in the node, in seconds.
	OnNodeCompleted(ctx context.Context, n NodeInfo, status TaskStatus, elapsed float64)

	// OnTaskAborted is called after a Running leaf has been aborted.
	OnTaskAborted(ctx context.Context, n NodeInfo)

	// OnGraphFinished is called when a runner reaches the terminal state.
	OnGraphFinished(ctx context.Context, entity EntityID, graph string, last TaskStatus)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnNodeStart(ctx context.Context, n NodeInfo) {}
func (NoopObserver) OnNodeCompleted(ctx context.Context, n NodeInfo, status TaskStatus, elapsed float64) {
}
func (NoopObserver) OnTaskAborted(ctx context.Context, n NodeInfo) {}
func (NoopObserver) OnGraphFinished(ctx context.Context, entity EntityID, graph string, last TaskStatus) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnNodeStart(ctx context.Context, n NodeInfo) {
	for _, o := range c.observers {
		o.OnNodeStart(ctx, n)
	}
}

func (c *CompositeObserver) OnNodeCompleted(ctx context.Context, n NodeInfo, status TaskStatus, elapsed float64) {
	for _, o := range c.observers {
		o.OnNodeCompleted(ctx, n, status, elapsed)
	}
}

func (c *CompositeObserver) OnTaskAborted(ctx context.Context, n NodeInfo) {
	for _, o := range c.observers {
		o.OnTaskAborted(ctx, n)
	}
}

func (c *CompositeObserver) OnGraphFinished(ctx context.Context, entity EntityID, graph string, last TaskStatus) {
	for _, o := range c.observers {
		o.OnGraphFinished(ctx, entity, graph, last)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs node lifecycle events
// using the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func nodeAttrs(n NodeInfo) []slog.Attr {
	return []slog.Attr{
		slog.Uint64("entity", uint64(n.Entity)),
		slog.String("graph", n.Graph),
		slog.Int("node_index", n.Index),
		slog.Int("node_id", n.NodeID),
		slog.String("node", n.Name),
		slog.String("task", n.TaskID),
	}
}

func (o *LoggingObserver) OnNodeStart(ctx context.Context, n NodeInfo) {
	o.Logger.LogAttrs(ctx, slog.LevelDebug, "node_start", nodeAttrs(n)...)
}

func (o *LoggingObserver) OnNodeCompleted(ctx context.Context, n NodeInfo, status TaskStatus, elapsed float64) {
	level := slog.LevelDebug
	if status == StatusFailure {
		level = slog.LevelInfo
	}
	attrs := append(nodeAttrs(n),
		slog.String("status", string(status)),
		slog.Float64("elapsed", elapsed),
	)
	o.Logger.LogAttrs(ctx, level, "node_completed", attrs...)
}

func (o *LoggingObserver) OnTaskAborted(ctx context.Context, n NodeInfo) {
	o.Logger.LogAttrs(ctx, slog.LevelInfo, "task_aborted", nodeAttrs(n)...)
}

func (o *LoggingObserver) OnGraphFinished(ctx context.Context, entity EntityID, graph string, last TaskStatus) {
	o.Logger.InfoContext(ctx, "graph_finished",
		slog.Uint64("entity", uint64(entity)),
		slog.String("graph", graph),
		slog.String("last_status", string(last)),
	)
}

// BasicMetrics collects simple counters and the aggregate simulated time
// spent in completed nodes. It implements Observer, and can be combined
// with LoggingObserver via NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	nodesStarted   atomic.Int64
	nodesSucceeded atomic.Int64
	nodesFailed    atomic.Int64
	tasksAborted   atomic.Int64
	graphsFinished atomic.Int64
	totalNodeTime  atomic.Uint64 // float64 bits, seconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	NodesStarted   int64
	NodesSucceeded int64
	NodesFailed    int64
	TasksAborted   int64
	GraphsFinished int64

	// AvgNodeTime is the mean simulated time, in seconds, of completed nodes.
	AvgNodeTime float64
}

func (m *BasicMetrics) OnNodeStart(ctx context.Context, n NodeInfo) {
	m.nodesStarted.Add(1)
}

func (m *BasicMetrics) OnNodeCompleted(ctx context.Context, n NodeInfo, status TaskStatus, elapsed float64) {
	switch status {
	case StatusSuccess:
		m.nodesSucceeded.Add(1)
	case StatusFailure:
		m.nodesFailed.Add(1)
	}
	for {
		old := m.totalNodeTime.Load()
		next := math.Float64bits(math.Float64frombits(old) + elapsed)
		if m.totalNodeTime.CompareAndSwap(old, next) {
			return
		}
	}
}

func (m *BasicMetrics) OnTaskAborted(ctx context.Context, n NodeInfo) {
	m.tasksAborted.Add(1)
}

func (m *BasicMetrics) OnGraphFinished(ctx context.Context, entity EntityID, graph string, last TaskStatus) {
	m.graphsFinished.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	succeeded := m.nodesSucceeded.Load()
	failed := m.nodesFailed.Load()
	total := math.Float64frombits(m.totalNodeTime.Load())

	var avg float64
	if completed := succeeded + failed; completed > 0 {
		avg = total / float64(completed)
	}

	return BasicMetricsSnapshot{
		NodesStarted:   m.nodesStarted.Load(),
		NodesSucceeded: succeeded,
		NodesFailed:    failed,
		TasksAborted:   m.tasksAborted.Load(),
		GraphsFinished: m.graphsFinished.Load(),
		AvgNodeTime:    avg,
	}
}
