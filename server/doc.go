// Package server exposes the simulator over HTTP.
//
// Routes:
//
//	GET  /health
//	GET  /metrics
//	GET  /api/personas            query parameters filter on template variables; limit caps the result
//	GET  /api/personas/{id}
//	POST /api/personas/import     imports Options.PersonasDir, response: {"imported": n}
//	POST /api/batches             body: runner.BatchRequest, response: core.BatchResult
//	GET  /api/batches             optional persona_id query parameter
//	GET  /api/batches/{id}
//
// Batches run synchronously within the request; the request context cancels
// the batch when the client goes away.
package server
