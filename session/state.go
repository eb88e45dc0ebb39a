package session

// State is a step of one navigation.
type State int

const (
	StateInit State = iota
	StateAwaitingInitialReady
	StateDetectingAuth
	StateAuthInProgress
	StateAwaitingPostAuthReady
	StateCapturing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateInit:                  "Init",
	StateAwaitingInitialReady:  "AwaitingInitialReady",
	StateDetectingAuth:         "DetectingAuth",
	StateAuthInProgress:        "AuthInProgress",
	StateAwaitingPostAuthReady: "AwaitingPostAuthReady",
	StateCapturing:             "Capturing",
	StateDone:                  "Done",
	StateFailed:                "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
