// Package results persists batch results.
//
// A Store keeps one core.BatchResult per batch id. InMemoryStore suits tests
// and the HTTP server's default configuration; FileStore writes one JSON
// document per batch so results survive restarts and can be inspected or
// post-processed offline.
package results
