// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package keystroke builds and checks a typing-rhythm reference used as a
// secondary authentication signal.
//
// Two features are extracted from a typing sample: the press-to-press
// interval of each consecutive key pair ("digraph", keyed "a->b") and the
// hold time of each key. A [Reference] stores the mean and sample standard
// deviation of every feature seen at least twice during enrollment; a new
// sample is scored by its average normalized deviation from those means.
package keystroke

import (
	"errors"
	"fmt"
	"math"

	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
)

const (
	// MinEnrollments is the number of typing samples needed to build a
	// reference.
	MinEnrollments = 3

	maxIntervalMS = 5000.0
	maxHoldMS     = 2000.0

	digraphStdFloor = 10.0
	holdStdFloor    = 5.0

	minThreshold     = 1.0
	thresholdHeadway = 1.5
)

// MaxDistance is returned by [Reference.Compare] when a sample shares no
// feature with the reference.
const MaxDistance = math.MaxFloat64

var (
	// ErrTooFewEnrollments is returned when fewer than [MinEnrollments]
	// profiles are supplied.
	ErrTooFewEnrollments = errors.New("at least 3 enrollment samples are required")

	// ErrNoFeatures is returned when the enrollment samples do not repeat
	// any digraph or key often enough to compute statistics.
	ErrNoFeatures = errors.New("enrollment samples share no repeated features")
)

// Sample is one key press as captured by the input layer.
type Sample struct {
	Key       string `json:"key"`
	PressMS   uint64 `json:"press_ms"`
	ReleaseMS uint64 `json:"release_ms"`
}

// Profile is one typing session. Profiles are never stored, only the
// [Reference] derived from them.
type Profile struct {
	Samples []Sample `json:"samples"`
}

// Stat is the mean and sample standard deviation of one feature, in
// milliseconds.
type Stat struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Reference is the enrolled typing model. It is immutable once built;
// re-enrollment produces a new Reference.
type Reference struct {
	Digraphs        map[string]Stat `json:"digraph_timings"`
	Holds           map[string]Stat `json:"hold_times"`
	EnrollmentCount int             `json:"enrollment_count"`
	Threshold       float64         `json:"threshold"`
}

type feature struct {
	name  string
	value float64
}

// FromEnrollments builds a reference from at least [MinEnrollments]
// profiles and calibrates its threshold to 1.5 times the worst enrollment
// distance, never below 1.0.
func FromEnrollments(profiles []Profile) (*Reference, error) {
	if len(profiles) < MinEnrollments {
		return nil, ErrTooFewEnrollments
	}

	digraphs := make(map[string][]float64)
	holds := make(map[string][]float64)
	for _, p := range profiles {
		for _, f := range extractDigraphs(p) {
			digraphs[f.name] = append(digraphs[f.name], f.value)
		}
		for _, f := range extractHolds(p) {
			holds[f.name] = append(holds[f.name], f.value)
		}
	}

	ref := &Reference{
		Digraphs:        computeStats(digraphs),
		Holds:           computeStats(holds),
		EnrollmentCount: len(profiles),
	}
	if len(ref.Digraphs) == 0 && len(ref.Holds) == 0 {
		return nil, ErrNoFeatures
	}

	// A profile sharing nothing with the aggregate cannot be scored and
	// would otherwise push the threshold to infinity.
	var worst float64
	for _, p := range profiles {
		if d := ref.Compare(p); d != MaxDistance {
			worst = max(worst, d)
		}
	}
	ref.Threshold = max(minThreshold, worst*thresholdHeadway)

	return ref, nil
}

// Compare returns the mean normalized distance of every sample feature the
// reference knows, or [MaxDistance] if there is none. Deviations are
// normalized by the feature's standard deviation, floored at 10 ms for
// digraphs and 5 ms for holds.
func (r *Reference) Compare(p Profile) float64 {
	var total float64
	var count int

	for _, f := range extractDigraphs(p) {
		if st, ok := r.Digraphs[f.name]; ok {
			total += math.Abs(f.value-st.Mean) / max(st.StdDev, digraphStdFloor)
			count++
		}
	}
	for _, f := range extractHolds(p) {
		if st, ok := r.Holds[f.name]; ok {
			total += math.Abs(f.value-st.Mean) / max(st.StdDev, holdStdFloor)
			count++
		}
	}

	if count == 0 {
		return MaxDistance
	}
	return total / float64(count)
}

// Matches reports whether p is within the calibrated threshold.
func (r *Reference) Matches(p Profile) bool {
	return r.Compare(p) <= r.Threshold
}

// Seal encrypts the reference for storage.
func (r *Reference) Seal(kc *crypto.KeyChain, key []byte) (crypto.Sealed, error) {
	s, err := kc.SealJSON(r, key)
	if err != nil {
		return crypto.Sealed{}, fmt.Errorf("seal keystroke reference: %w", err)
	}
	return s, nil
}

// Open decrypts a reference sealed with [Reference.Seal].
func Open(s crypto.Sealed, key []byte) (*Reference, error) {
	var r Reference
	if err := crypto.OpenJSON(s, key, &r); err != nil {
		return nil, fmt.Errorf("open keystroke reference: %w", err)
	}
	return &r, nil
}

func digraphName(from, to string) string {
	return from + "->" + to
}

func extractDigraphs(p Profile) []feature {
	var out []feature
	for i := 1; i < len(p.Samples); i++ {
		prev, cur := p.Samples[i-1], p.Samples[i]
		interval := float64(cur.PressMS) - float64(prev.PressMS)
		if interval > 0 && interval < maxIntervalMS {
			out = append(out, feature{name: digraphName(prev.Key, cur.Key), value: interval})
		}
	}
	return out
}

func extractHolds(p Profile) []feature {
	var out []feature
	for _, s := range p.Samples {
		if s.ReleaseMS <= s.PressMS {
			continue
		}
		hold := float64(s.ReleaseMS - s.PressMS)
		if hold < maxHoldMS {
			out = append(out, feature{name: s.Key, value: hold})
		}
	}
	return out
}

func computeStats(groups map[string][]float64) map[string]Stat {
	out := make(map[string]Stat, len(groups))
	for name, values := range groups {
		if len(values) < 2 {
			continue
		}
		n := float64(len(values))

		var sum float64
		for _, v := range values {
			sum += v
		}
		mean := sum / n

		var sq float64
		for _, v := range values {
			sq += (v - mean) * (v - mean)
		}
		out[name] = Stat{Mean: mean, StdDev: math.Sqrt(sq / (n - 1))}
	}
	return out
}
