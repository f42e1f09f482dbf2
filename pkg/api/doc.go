// Package api contains the core building blocks shared by the taskgraph
// engine, its built-in leaves and host integrations.
//
// Most users interact with the higher-level taskgraph package, which
// re-exports selected types and helpers from this package. The api package is
// intended for leaf authors and for integrations that need the raw contract.
//
// # Values
//
// Value is a closed tagged union over Bool, Int, Float, String, Vector3 and
// EntityRef. Accessors for the wrong variant panic; Params offers tolerant
// typed getters for leaf code.
//
// # Leaf contract
//
// AtomicTask is the minimal leaf: Execute plus Abort. Leaves that need the
// entity, delta time, the component facade or the local blackboard also
// implement ContextTask, which the engine prefers when present.
//
// A leaf returning StatusRunning keeps its instance alive until it reports
// Success or Failure, or until it is aborted.
//
// # Observability
//
// The Observer interface is used by the task system to report node
// lifecycle events. NewLoggingObserver, BasicMetrics and
// NewCompositeObserver cover the common cases.
package api
