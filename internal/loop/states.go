package loop

// State identifies where a Run is in the control loop.
type State int

const (
	// StateGathering fetches evidence for the current attempt.
	StateGathering State = iota
	// StateScored has a confidence breakdown for the current bundle.
	StateScored
	// StateValidating obtains an explicit sufficiency verdict for a
	// below-threshold score.
	StateValidating
	// StateRetry re-enters gathering with feedback from the failed attempt.
	StateRetry
	// StateAccepted triggers synthesis and grounding validation.
	StateAccepted
	// StateDone is terminal. Reached both on acceptance and on exhaustion.
	StateDone
)

var stateNames = map[State]string{
	StateGathering:  "gathering",
	StateScored:     "scored",
	StateValidating: "validating",
	StateRetry:      "retry",
	StateAccepted:   "accepted",
	StateDone:       "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
