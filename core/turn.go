package core

import "time"

// Speaker identifies who produced a turn.
type Speaker string

const (
	// SpeakerPersona is the simulated user.
	SpeakerPersona Speaker = "persona"
	// SpeakerAgent is the target agent under study.
	SpeakerAgent Speaker = "agent"
)

// Other returns the opposite speaker.
func (s Speaker) Other() Speaker {
	if s == SpeakerPersona {
		return SpeakerAgent
	}
	return SpeakerPersona
}

// Turn is one utterance in a session transcript.
type Turn struct {
	Index     int       `json:"index"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
