// Package persona provides read access to simulated-user profiles.
//
// Personas are derived from survey data and stored as JSON documents. The
// Store interface abstracts where they live; InMemoryStore serves tests and
// small demos, SQLiteStore persists them in a single database file and can
// import a directory of persona documents.
package persona
