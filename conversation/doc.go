// Package conversation drives a bounded dialogue between a simulated persona
// and a target agent for a single goal.
//
// The Orchestrator is a small state machine:
//
//	INIT -> PERSONA_TURN -> AGENT_TURN -> PERSONA_TURN -> ... -> TERMINATED
//
// INIT creates the session and prepares both sides' prompts. The goal is
// private to the persona: it is rendered into the persona system prompt and
// never sent to the agent. After every recorded turn the session ends when
//
//   - the turn limit is reached (completed)
//   - a stop signal was emitted (completed, EndedBy records the speaker)
//   - any step failed (failed, the cause is retained as an ErrorDescriptor)
//
// Stop signals are the literal token [END_CONVERSATION] from either side, or
// a JSON object with "goal_achieved": true from the persona. The turn that
// carries the signal is kept verbatim.
//
// Turns within a session are strictly sequential; run many sessions
// concurrently by calling Run from several goroutines.
package conversation
