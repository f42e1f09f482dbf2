package api

import (
	"log/slog"
)

// TaskStatus is the outcome of a single leaf execution.
type TaskStatus string

const (
	StatusSuccess TaskStatus = "SUCCESS"
	StatusFailure TaskStatus = "FAILURE"
	StatusRunning TaskStatus = "RUNNING"
)

// VariableDefinition declares one blackboard variable of a template schema.
type VariableDefinition struct {
	Name    string
	Type    ValueType
	Default Value
	IsLocal bool
}

// Blackboard is the view of a local blackboard handed to leaf tasks.
// GetValue and SetValue report unknown names and type mismatches as errors;
// leaves translate those into StatusFailure.
type Blackboard interface {
	GetValue(name string) (Value, error)
	SetValue(name string, v Value) error
	HasVariable(name string) bool
	VariableNames() []string
}

// Components is the per-call facade over the entity-component storage. Any
// pointer may be nil when the entity lacks that component.
type Components struct {
	Position *Vector3
	Velocity *Vector3

	// Lookup resolves additional components by name. May be nil.
	Lookup func(name string) any
}

// World hands out component facades for entities. Hosts running headless
// leave it nil.
type World interface {
	Components(entity EntityID) *Components
}

// TaskContext carries everything a context-aware leaf may use during one
// execution. Components is nil when running headless; Blackboard is nil
// when the runner has no blackboard available.
type TaskContext struct {
	Entity     EntityID
	DeltaTime  float64
	Components *Components
	Blackboard Blackboard
	Logger     *slog.Logger
}

// AtomicTask is the leaf behaviour contract.
//
// Returning StatusRunning is a promise that the same instance receives the
// next call for its entity and node. Abort is called at most once, only
// while the instance is Running, and must release any in-flight work.
type AtomicTask interface {
	Execute(params Params) TaskStatus
	Abort()
}

// ContextTask is implemented by leaves that need the entity, delta time,
// component facade or blackboard. The engine prefers ExecuteWithContext
// over Execute when a leaf implements it.
type ContextTask interface {
	AtomicTask
	ExecuteWithContext(tc *TaskContext, params Params) TaskStatus
}

// TaskFactory builds a fresh leaf instance.
type TaskFactory func() AtomicTask

// NoAbort can be embedded by leaves that hold no resources across ticks.
type NoAbort struct{}

func (NoAbort) Abort() {}

// RunnerState is the persisted form of a runner, used for save/load and
// network sync. NodeIndex is -1 when the graph has finished.
type RunnerState struct {
	TemplateID AssetID
	NodeIndex  int
	StateTimer float64
	LastStatus TaskStatus
	Blackboard []byte
}

// AssetID identifies a loaded template. InvalidAssetID is reserved for the
// empty path.
type AssetID uint64

const InvalidAssetID AssetID = 0
