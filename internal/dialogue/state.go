// Package dialogue carries tutoring step state through model output: the
// prompt asks the model to emit a hidden <STATE> tag, and Decode recovers
// it while keeping the tag out of the text shown to the student.
package dialogue

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// State is the step/attempt bookkeeping for one turn. It is rebuilt on
// every request and never held by the server between turns.
type State struct {
	Step     int
	Attempts map[int]int
}

// Initial is the state of a session's first turn.
func Initial() State {
	return State{Step: 1, Attempts: map[int]int{}}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{Step: s.Step, Attempts: make(map[int]int, len(s.Attempts))}
	for k, v := range s.Attempts {
		out.Attempts[k] = v
	}
	return out
}

// AttemptsString renders attempts as a stable JSON object, {} when empty.
func (s State) AttemptsString() string {
	if len(s.Attempts) == 0 {
		return "{}"
	}
	keys := make([]int, 0, len(s.Attempts))
	for k := range s.Attempts {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%q: %d", strconv.Itoa(k), s.Attempts[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

type wireState struct {
	CurrentStep int            `json:"current_step"`
	Attempts    map[string]int `json:"attempts"`
}

func (s State) MarshalJSON() ([]byte, error) {
	w := wireState{CurrentStep: s.Step, Attempts: make(map[string]int, len(s.Attempts))}
	for k, v := range s.Attempts {
		w.Attempts[strconv.Itoa(k)] = v
	}
	return json.Marshal(w)
}

// AttemptsFromWire converts caller-supplied attempts keyed by step strings.
// Keys that are not step numbers are dropped.
func AttemptsFromWire(in map[string]int) map[int]int {
	out := make(map[int]int, len(in))
	for k, v := range in {
		step, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		out[step] = v
	}
	return out
}

// AttemptsToWire is the inverse of AttemptsFromWire.
func AttemptsToWire(in map[int]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[strconv.Itoa(k)] = v
	}
	return out
}
