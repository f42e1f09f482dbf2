// Package worker runs background work that leaf tasks hand off instead of
// blocking a tick, such as path planning.
//
// A leaf submits a request and receives a Ticket. It keeps returning
// Running while it polls the ticket from later ticks, and cancels the
// ticket from Abort. A delayed request waits on a timer and only enters the
// task queue once it is due, so it never occupies a worker. Workers consume
// jobs from the queue and publish the result into the ticket unless it was
// cancelled first.
//
// # Pools
//
// Pool owns an in-memory queue and a configurable number of worker
// goroutines. Hosts that prefer to drive work themselves can skip Start and
// call ProcessOne instead.
//
// # Planners
//
// Path jobs are solved by a Planner. The nav package's grid satisfies the
// interface; StraightLine is used when no navigation data is configured.
package worker
