package calls

// State is a call's lifecycle position. States only move forward: webhook
// deliveries arrive out of order and a stale event must never regress a call,
// so every transition is rank-checked and terminal states are final.
type State string

const (
	StateQueued     State = "queued"
	StateRinging    State = "ringing"
	StateInProgress State = "in-progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var stateRank = map[State]int{
	StateQueued:     0,
	StateRinging:    1,
	StateInProgress: 2,
	StateCompleted:  3,
	StateFailed:     3,
}

// Known reports whether s is a recognized lifecycle state.
func (s State) Known() bool {
	_, ok := stateRank[s]
	return ok
}

// Terminal reports whether s ends the lifecycle.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanAdvance reports whether a call in state from may move to state to.
// Equal-rank and backward moves are rejected, which makes replayed and
// reordered webhook deliveries no-ops.
func CanAdvance(from, to State) bool {
	fromRank, ok := stateRank[from]
	if !ok {
		return false
	}
	toRank, ok := stateRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// statesBelow returns all states ranked strictly below s. Used as the SQL
// guard list so the database enforces monotonicity even under concurrent
// webhook deliveries.
func statesBelow(s State) []string {
	target := stateRank[s]
	var below []string
	for state, rank := range stateRank {
		if rank < target {
			below = append(below, string(state))
		}
	}
	return below
}
