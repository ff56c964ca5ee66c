package feed

// State is a feed session state.
type State string

const (
	Idle       State = "idle"
	Dispensing State = "dispensing"
	Settling   State = "settling"
	Completed  State = "completed"
	Cancelled  State = "cancelled"
	Faulted    State = "faulted"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == Faulted
}
