// Package taskgraph provides a compiled task-graph runtime for driving
// per-entity AI behaviour from a simulation loop.
//
// Graphs are authored as behaviour trees (sequences, selectors, decorators,
// conditions and leaf tasks), loaded from JSON or YAML documents or built in
// code, and compiled into immutable templates. Each entity bound to a
// template gets a small Runner: a cursor into the template plus a serialized
// blackboard. Every tick advances each runner by at most one node, so a
// frame's cost is bounded by the number of entities, not by graph depth.
//
// # Core Concepts
//
// The programming model is small:
//
//  1. Template
//  2. AtomicTask
//  3. Blackboard
//  4. Runner
//  5. Host
//
// # Template
//
// A Template is the compiled form of a graph: a flat array of nodes where
// every leaf carries two successor indices, one followed on success and one
// on failure. Sequences, selectors and decorators disappear during
// compilation; Repeat and Retry are unrolled and Loop becomes a cycle.
// Templates are shared read-only by every entity bound to them and are
// cached by asset id, a stable hash of the path they were loaded from.
//
// # AtomicTask
//
// Leaves implement AtomicTask, and ContextTask when they need the entity,
// delta time, component facade or blackboard. A leaf returning
// StatusRunning keeps its instance for the next tick; when the runner moves
// away from a running leaf (interrupt, reset, unbind, restore), the leaf is
// aborted exactly once. Built-in leaves cover movement, waiting, variable
// assignment, logging, expression conditions and background path requests.
// Action and Predicate adapt plain functions into leaf factories.
//
// # Blackboard
//
// Each runner owns a typed key/value store declared by the template's
// variable schema. Node parameters are either literals or references to
// blackboard variables resolved at execution time.
//
// # Host
//
// Host bundles the template cache, task registry, tick system, a
// path-planning worker pool and a runner store:
//
//	host := taskgraph.NewHost(taskgraph.HostConfig{})
//	host.Start(ctx)
//	defer host.Close()
//
//	id, _ := host.LoadGraph("graphs/guard.json")
//	_ = host.BindEntity(ctx, 7, id)
//	for running {
//	    _ = host.Tick(ctx, 1.0/60)
//	}
//
// Runners can be saved to and restored from SQLite, Postgres, Redis or
// MongoDB through the RunnerStore interface. OpenHost builds a Host from a
// YAML configuration file.
//
// For complete programs, see the /examples directory.
package taskgraph
