package engine

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/petrijr/taskgraph/internal/graph"
	"github.com/petrijr/taskgraph/pkg/api"
	"github.com/petrijr/taskgraph/pkg/blackboard"
)

// Runner is the execution cursor of one entity over one Template.
//
// The live leaf instance is held in an ownership slot that only three
// transitions write: start (a leaf reported Running for the first time),
// complete (the live leaf reported Success or Failure) and abort. A Runner
// must be ticked by one goroutine at a time.
type Runner struct {
	TemplateID api.AssetID

	// CurrentNode is the index of the node to tick next, or graph.None once
	// the graph has finished.
	CurrentNode int

	// StateTimer accumulates delta time while the current node is Running.
	StateTimer float64

	// LastStatus is the outcome of the most recently completed node. It is
	// empty until a node completes.
	LastStatus api.TaskStatus

	// Blackboard holds the serialized local blackboard.
	Blackboard []byte

	active activeSlot
}

type activeSlot struct {
	task api.AtomicTask
	node int
}

// NewRunner returns a runner positioned at the template root with a
// blackboard holding the schema defaults.
func NewRunner(id api.AssetID, tmpl *graph.Template) *Runner {
	return &Runner{
		TemplateID:  id,
		CurrentNode: tmpl.RootIndex(),
		Blackboard:  blackboard.New(tmpl.Variables()).Serialize(),
	}
}

// Finished reports whether the cursor is at the terminal sentinel.
func (r *Runner) Finished() bool {
	return r.CurrentNode == graph.None
}

// HasActiveTask reports whether a leaf instance is live.
func (r *Runner) HasActiveTask() bool {
	return r.active.task != nil
}

// ActiveTask returns the live leaf instance, or nil.
func (r *Runner) ActiveTask() api.AtomicTask {
	return r.active.task
}

// Interrupt forces the cursor to the terminal sentinel. A live leaf is
// aborted on the next tick.
func (r *Runner) Interrupt() {
	r.CurrentNode = graph.None
}

func (r *Runner) start(task api.AtomicTask, node int) {
	if r.active.task != nil {
		panic(fmt.Sprintf("engine: node %d started while node %d owns the task slot", node, r.active.node))
	}
	r.active = activeSlot{task: task, node: node}
}

func (r *Runner) complete() {
	r.active = activeSlot{}
}

// abortActive calls Abort on the live leaf, if any, and clears the slot.
// It returns the index of the node the leaf belonged to.
func (r *Runner) abortActive() (int, bool) {
	if r.active.task == nil {
		return graph.None, false
	}
	slot := r.active
	r.active = activeSlot{}
	slot.task.Abort()
	return slot.node, true
}

// Snapshot returns the persisted form of the runner. The live leaf is not
// part of it; a restored runner re-enters its node with a fresh instance.
func (r *Runner) Snapshot() api.RunnerState {
	return api.RunnerState{
		TemplateID: r.TemplateID,
		NodeIndex:  r.CurrentNode,
		StateTimer: r.StateTimer,
		LastStatus: r.LastStatus,
		Blackboard: append([]byte(nil), r.Blackboard...),
	}
}

// Restore overwrites the runner with s. A live leaf is aborted first.
func (r *Runner) Restore(s api.RunnerState) {
	r.abortActive()
	r.TemplateID = s.TemplateID
	r.CurrentNode = s.NodeIndex
	r.StateTimer = s.StateTimer
	r.LastStatus = s.LastStatus
	r.Blackboard = append([]byte(nil), s.Blackboard...)
}

// RestoreRunner builds a runner from persisted state.
func RestoreRunner(s api.RunnerState) *Runner {
	r := &Runner{}
	r.Restore(s)
	return r
}

// MarshalBinary encodes the runner snapshot for save files and network
// sync.
func (r *Runner) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	s := r.Snapshot()
	if err := gob.NewEncoder(&buf).Encode(&s); err != nil {
		return nil, fmt.Errorf("encode runner: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores the runner from MarshalBinary output.
func (r *Runner) UnmarshalBinary(data []byte) error {
	var s api.RunnerState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return fmt.Errorf("decode runner: %w", err)
	}
	r.Restore(s)
	return nil
}
