// Package core provides the foundational domain types shared by the
// simulation engine. It defines the data model for:
//
//   - Personas (read-only demographic records that condition the virtual user)
//   - Agent configurations (the target conversational agent under study)
//   - Goals (classified good-faith / bad-faith conversation objectives)
//   - Turns and Sessions (the append-only transcript of one simulated dialogue)
//   - Batch results (every session produced for one persona/agent pair)
//
// The package also owns the machine-readable error descriptor used to report
// failures without aborting sibling work. Implementation concerns (prompt
// rendering, provider access, orchestration, persistence) live in their own
// packages and depend on core, never the other way around.
package core
