package calls

import "testing"

func TestCanAdvance(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateQueued, StateRinging, true},
		{StateQueued, StateCompleted, true},
		{StateRinging, StateInProgress, true},
		{StateInProgress, StateCompleted, true},
		{StateInProgress, StateFailed, true},

		// Backward and equal-rank moves are rejected.
		{StateRinging, StateQueued, false},
		{StateInProgress, StateRinging, false},
		{StateCompleted, StateRinging, false},
		{StateCompleted, StateFailed, false},
		{StateFailed, StateCompleted, false},
		{StateQueued, StateQueued, false},

		// Unknown states never move.
		{State("bogus"), StateRinging, false},
		{StateQueued, State("bogus"), false},
	}

	for _, tc := range cases {
		if got := CanAdvance(tc.from, tc.to); got != tc.want {
			t.Errorf("CanAdvance(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []State{StateCompleted, StateFailed} {
		if !terminal.Terminal() {
			t.Errorf("%s should be terminal", terminal)
		}
		for _, to := range []State{StateQueued, StateRinging, StateInProgress, StateCompleted, StateFailed} {
			if CanAdvance(terminal, to) {
				t.Errorf("terminal %s must not advance to %s", terminal, to)
			}
		}
	}
}

func TestStatesBelow(t *testing.T) {
	below := statesBelow(StateInProgress)
	if len(below) != 2 {
		t.Fatalf("statesBelow(in-progress) = %v", below)
	}
	seen := map[string]bool{}
	for _, s := range below {
		seen[s] = true
	}
	if !seen["queued"] || !seen["ringing"] {
		t.Errorf("statesBelow(in-progress) = %v", below)
	}
}
