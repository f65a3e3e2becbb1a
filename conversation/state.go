package conversation

// State is a step of the conversation state machine.
type State int

const (
	// StateInit prepares the session and prompts.
	StateInit State = iota
	// StatePersonaTurn asks the persona model for the next utterance.
	StatePersonaTurn
	// StateAgentTurn asks the target agent for its reply.
	StateAgentTurn
	// StateTerminated is final.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePersonaTurn:
		return "persona_turn"
	case StateAgentTurn:
		return "agent_turn"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
