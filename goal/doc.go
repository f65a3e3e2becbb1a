// Package goal generates conversation goals for a persona/agent pair with a
// single LLM call. The model is asked for JSON of the form
//
//	{"goals": [{"goal": "...", "faith_type": "good" | "bad"}]}
//
// and the answer is validated (count, non-empty, unique, known faith tag).
// Invalid answers are regenerated up to Options.MaxAttempts times; provider
// failures and template errors are returned at once.
package goal
