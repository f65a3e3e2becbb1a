// Package metrics provides Prometheus instrumentation for the simulation
// engine: provider calls, retries, sessions, goal generation and the HTTP
// API. Every Collector owns a private registry so several engines (and
// tests) can coexist in one process.
//
// All Record methods are safe on a nil *Collector, which makes metrics
// optional for every component.
package metrics
