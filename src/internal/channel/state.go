// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package channel

import (
	"fmt"
	"slices"
)

// State is the lifecycle stage of a [Channel].
type State int32

const (
	StateIdle State = iota
	StateHandshaking
	StateEstablished
	StateClosing
	StateClosed
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == StateClosed || s == StateFailed }

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateIdle:        {StateHandshaking, StateClosed},
	StateHandshaking: {StateEstablished, StateClosing, StateFailed},
	StateEstablished: {StateClosing, StateFailed},
	StateClosing:     {StateClosed},
}

func canTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}
