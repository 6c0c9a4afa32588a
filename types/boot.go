package types

// ------------------------
// Bootloader session
// ------------------------

// State is the protocol engine's position in the session state machine.
type State uint8

const (
	StateAwaitingInit State = iota
	StateAwaitingCommand
	StateExecutingCommand
	StateSessionEnded
)

func (s State) String() string {
	switch s {
	case StateAwaitingInit:
		return "awaiting_init"
	case StateAwaitingCommand:
		return "awaiting_command"
	case StateExecutingCommand:
		return "executing_command"
	case StateSessionEnded:
		return "session_ended"
	default:
		return "unknown"
	}
}

func (s State) MarshalJSON() ([]byte, error) { return []byte(`"` + s.String() + `"`), nil }

// SessionInfo is a point-in-time snapshot of the engine, for diagnostics.
type SessionInfo struct {
	State         State  `json:"state"`
	HostInitDone  bool   `json:"host_init_done"`
	TimedOut      bool   `json:"timed_out"`
	ExpectedBytes int    `json:"expected_bytes"`
	Selected      int    `json:"selected"` // opcode, -1 when idle
	Buffered      int    `json:"buffered"`
	Dropped       uint32 `json:"dropped"`
	Frames        uint32 `json:"frames"`   // frames drained from the ring
	Commands      uint32 `json:"commands"` // commands run to completion
	End           string `json:"end,omitempty"`
}
