// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package recovery

import (
	"fmt"
)

// State is the lifecycle position of a [Request].
//
//	WaitingPeriod → AwaitingShards → Reconstructing → Complete
//	      └──────────────┴────────────────┴──────────→ Aborted
type State int

const (
	WaitingPeriod State = iota
	AwaitingShards
	Reconstructing
	Complete
	Aborted
)

var stateNames = map[State]string{
	WaitingPeriod:  "waiting_period",
	AwaitingShards: "awaiting_shards",
	Reconstructing: "reconstructing",
	Complete:       "complete",
	Aborted:        "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// IsTerminal reports whether no further transition is expected.
func (s State) IsTerminal() bool {
	return s == Complete || s == Aborted
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	name, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown recovery state %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState maps a state name back to its [State].
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown recovery state %q", name)
}

// GuardianResponse is what one guardian has answered for one request.
type GuardianResponse int

const (
	Notified GuardianResponse = iota
	Approved
	Rejected
	TimedOut
)

var responseNames = map[GuardianResponse]string{
	Notified: "notified",
	Approved: "approved",
	Rejected: "rejected",
	TimedOut: "timed_out",
}

func (r GuardianResponse) String() string {
	if name, ok := responseNames[r]; ok {
		return name
	}
	return fmt.Sprintf("response(%d)", int(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r GuardianResponse) MarshalText() ([]byte, error) {
	name, ok := responseNames[r]
	if !ok {
		return nil, fmt.Errorf("unknown guardian response %d", int(r))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *GuardianResponse) UnmarshalText(text []byte) error {
	for resp, name := range responseNames {
		if name == string(text) {
			*r = resp
			return nil
		}
	}
	return fmt.Errorf("unknown guardian response %q", text)
}
