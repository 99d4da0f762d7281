// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package keystroke

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}

type timing struct{ press, release uint64 }

func makeProfile(timings ...timing) Profile {
	p := Profile{Samples: make([]Sample, 0, len(timings))}
	for i, tm := range timings {
		p.Samples = append(p.Samples, Sample{Key: keys[i%len(keys)], PressMS: tm.press, ReleaseMS: tm.release})
	}
	return p
}

// enrollmentProfiles returns five sessions of the same rhythm, each shifted
// by a few milliseconds.
func enrollmentProfiles() []Profile {
	out := make([]Profile, 0, 5)
	for offset := uint64(0); offset < 5; offset++ {
		base := 1000 + offset*3
		out = append(out, makeProfile(
			timing{base, base + 80},
			timing{base + 150, base + 230},
			timing{base + 300, base + 375},
			timing{base + 460, base + 535},
			timing{base + 610, base + 690},
		))
	}
	return out
}

func newTestReference(t *testing.T) *Reference {
	t.Helper()
	ref, err := FromEnrollments(enrollmentProfiles())
	require.NoError(t, err)
	return ref
}

// ── FromEnrollments ──────────────────────────────────────────────────────────

func TestFromEnrollments_RequiresThreeProfiles(t *testing.T) {
	ref, err := FromEnrollments([]Profile{makeProfile(timing{100, 180}, timing{250, 320})})
	assert.ErrorIs(t, err, ErrTooFewEnrollments)
	assert.Nil(t, ref)

	_, err = FromEnrollments(enrollmentProfiles()[:2])
	assert.ErrorIs(t, err, ErrTooFewEnrollments)
}

func TestFromEnrollments_BuildsReference(t *testing.T) {
	ref := newTestReference(t)

	assert.Equal(t, 5, ref.EnrollmentCount)
	assert.Len(t, ref.Digraphs, 4)
	assert.Len(t, ref.Holds, 5)

	ab := ref.Digraphs["a->b"]
	assert.InDelta(t, 150, ab.Mean, 1e-9)
	assert.InDelta(t, 0, ab.StdDev, 1e-9)

	c := ref.Holds["c"]
	assert.InDelta(t, 75, c.Mean, 1e-9)

	// Identical rhythms give zero distance, so the floor applies.
	assert.Equal(t, 1.0, ref.Threshold)
}

func TestFromEnrollments_SampleStdDev(t *testing.T) {
	profiles := []Profile{
		makeProfile(timing{0, 100}, timing{100, 200}),
		makeProfile(timing{0, 110}, timing{120, 200}),
		makeProfile(timing{0, 120}, timing{140, 200}),
	}
	ref, err := FromEnrollments(profiles)
	require.NoError(t, err)

	ab := ref.Digraphs["a->b"]
	assert.InDelta(t, 120, ab.Mean, 1e-9)
	assert.InDelta(t, 20, ab.StdDev, 1e-9, "n-1 denominator")

	a := ref.Holds["a"]
	assert.InDelta(t, 110, a.Mean, 1e-9)
	assert.InDelta(t, 10, a.StdDev, 1e-9)
}

// TestFromEnrollments_ThresholdHasHeadroom verifies the 1.5x calibration
// when enrollment samples disagree. Release equals press so only the
// digraph contributes.
func TestFromEnrollments_ThresholdHasHeadroom(t *testing.T) {
	profiles := []Profile{
		makeProfile(timing{0, 0}, timing{100, 100}),
		makeProfile(timing{0, 0}, timing{200, 200}),
		makeProfile(timing{0, 0}, timing{300, 300}),
		makeProfile(timing{0, 0}, timing{900, 900}),
	}
	ref, err := FromEnrollments(profiles)
	require.NoError(t, err)

	var worst float64
	for _, p := range profiles {
		worst = math.Max(worst, ref.Compare(p))
	}
	require.Greater(t, worst, 1.0)
	assert.InDelta(t, worst*1.5, ref.Threshold, 1e-9)
	for _, p := range profiles {
		assert.True(t, ref.Matches(p))
	}
}

func TestFromEnrollments_NoRepeatedFeatures(t *testing.T) {
	profiles := []Profile{
		{Samples: []Sample{{Key: "a", PressMS: 10, ReleaseMS: 10}}},
		{Samples: []Sample{{Key: "b", PressMS: 10, ReleaseMS: 90}}},
		{Samples: []Sample{{Key: "c", PressMS: 10, ReleaseMS: 90}}},
	}
	_, err := FromEnrollments(profiles)
	assert.ErrorIs(t, err, ErrNoFeatures)
}

// ── feature extraction ───────────────────────────────────────────────────────

func TestExtract_FiltersOutliers(t *testing.T) {
	p := Profile{Samples: []Sample{
		{Key: "a", PressMS: 1000, ReleaseMS: 1080},
		{Key: "b", PressMS: 7000, ReleaseMS: 7050}, // interval 6000: dropped
		{Key: "c", PressMS: 7100, ReleaseMS: 9500}, // hold 2400: dropped
		{Key: "d", PressMS: 7050, ReleaseMS: 7000}, // negative interval and release before press
		{Key: "e", PressMS: 7150, ReleaseMS: 7150}, // zero hold
	}}

	digraphs := extractDigraphs(p)
	assert.Equal(t, []feature{
		{name: "b->c", value: 100},
		{name: "d->e", value: 100},
	}, digraphs)

	holds := extractHolds(p)
	assert.Equal(t, []feature{
		{name: "a", value: 80},
		{name: "b", value: 50},
	}, holds)
}

// ── Compare / Matches ────────────────────────────────────────────────────────

func TestMatches_SimilarProfile(t *testing.T) {
	ref := newTestReference(t)

	similar := makeProfile(
		timing{1005, 1085},
		timing{1155, 1235},
		timing{1305, 1380},
		timing{1465, 1540},
		timing{1615, 1695},
	)
	assert.True(t, ref.Matches(similar))
	assert.InDelta(t, 0, ref.Compare(similar), 1e-9)
}

func TestMatches_DifferentProfile(t *testing.T) {
	ref := newTestReference(t)

	different := makeProfile(
		timing{1000, 1200},
		timing{1800, 2000},
		timing{3000, 3200},
		timing{4500, 4700},
		timing{6000, 6200},
	)
	assert.False(t, ref.Matches(different))
	assert.Greater(t, ref.Compare(different), ref.Threshold)
}

func TestCompare_NoOverlap(t *testing.T) {
	ref := newTestReference(t)

	stranger := Profile{Samples: []Sample{{Key: "z", PressMS: 0, ReleaseMS: 90}, {Key: "y", PressMS: 100, ReleaseMS: 190}}}
	assert.Equal(t, MaxDistance, ref.Compare(stranger))
	assert.False(t, ref.Matches(stranger))
	assert.Equal(t, MaxDistance, ref.Compare(Profile{}))
}

func TestCompare_UsesStdDevFloor(t *testing.T) {
	ref := &Reference{
		Digraphs: map[string]Stat{"a->b": {Mean: 100, StdDev: 1}},
		Holds:    map[string]Stat{"a": {Mean: 50, StdDev: 0.5}},
	}
	p := Profile{Samples: []Sample{
		{Key: "a", PressMS: 0, ReleaseMS: 60},
		{Key: "b", PressMS: 120, ReleaseMS: 100},
	}}
	// digraph: |120-100|/10 = 2, hold a: |60-50|/5 = 2, hold b skipped.
	assert.InDelta(t, 2.0, ref.Compare(p), 1e-9)
}

// ── Seal / Open ──────────────────────────────────────────────────────────────

func TestSealOpen_RoundTrip(t *testing.T) {
	ref := newTestReference(t)
	kc := crypto.NewKeyChain()
	key := bytes.Repeat([]byte{42}, crypto.KeySize)

	sealed, err := ref.Seal(kc, key)
	require.NoError(t, err)

	got, err := Open(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, ref, got)

	path := filepath.Join(t.TempDir(), "keystroke.json")
	require.NoError(t, sealed.Save(path))
	loaded, err := crypto.LoadSealed(path)
	require.NoError(t, err)
	fromDisk, err := Open(loaded, key)
	require.NoError(t, err)
	assert.Equal(t, ref, fromDisk)
}

func TestOpen_WrongKey(t *testing.T) {
	ref := newTestReference(t)
	kc := crypto.NewKeyChain()

	sealed, err := ref.Seal(kc, bytes.Repeat([]byte{42}, crypto.KeySize))
	require.NoError(t, err)

	_, err = Open(sealed, bytes.Repeat([]byte{99}, crypto.KeySize))
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
}

func TestSeal_InvalidKey(t *testing.T) {
	_, err := newTestReference(t).Seal(crypto.NewKeyChain(), []byte("short"))
	assert.ErrorIs(t, err, crypto.ErrInvalidKeyLength)
}
