// Package runner executes simulation batches.
//
// A batch pairs one persona with one agent configuration: the Runner loads
// both, asks the goal generator for objectives, then runs one conversation
// per goal on a bounded worker pool. The Collector assembles the outcomes into
// a core.BatchResult that always holds exactly one terminal session per goal,
// whatever happens to sibling sessions.
//
// # Failure scoping
//
// RunBatch returns an error only when the request itself cannot be served
// (invalid arguments, unknown persona or agent, broken configuration). Goal
// generation failures are reported in BatchResult.Error and session failures
// on the individual sessions. Canceling the batch context cuts in-flight
// sessions short; sessions that already terminated are kept intact.
package runner
