package session

// State is the lifecycle state of a daemon session.
type State int

const (
	// StateNotAuthorized is the initial state right after a successful
	// connect. The daemon has not yet accepted credentials.
	StateNotAuthorized State = iota
	// StateAuthorized means the daemon accepted the authorization exchange
	// and the session may issue configuration exchanges.
	StateAuthorized
	// StateDisconnected is terminal. No operation on a disconnected session
	// performs I/O; a new session must be built to talk to the daemon again.
	StateDisconnected
)

// String returns the state name used in error messages.
func (s State) String() string {
	switch s {
	case StateNotAuthorized:
		return "not-authorized"
	case StateAuthorized:
		return "authorized"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// legalStates lists, per operation, the states the session must be in for
// the operation to proceed. Checked on every operation entry so a dead
// session fails uniformly instead of scattering liveness booleans.
var legalStates = map[string][]State{
	"authorize": {StateNotAuthorized, StateAuthorized},
	"exchange":  {StateAuthorized},
}

func (s *Session) ensure(op string) error {
	for _, st := range legalStates[op] {
		if s.state == st {
			return nil
		}
	}
	return &Error{Kind: KindDisconnected, Op: op, State: s.state}
}
