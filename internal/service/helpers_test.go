// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/MKhiriev/sovereign-keyring/internal/config"
	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
	"github.com/MKhiriev/sovereign-keyring/internal/keystroke"
	"github.com/MKhiriev/sovereign-keyring/internal/logger"
)

const (
	primaryPass = "Correct-Horse-9-Battery"
	duressPass  = "Duress-Staple-7-Decoy!"
)

// testKDF keeps Argon2id fast enough for unit tests.
var testKDF = crypto.KDFParams{Time: 1, MemoryKiB: 1024, Threads: 1}

// testClock is a manually advanced clock.
type testClock struct {
	t time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// seqIDs hands out predictable ids.
type seqIDs struct {
	prefix string
	n      int
}

func (g *seqIDs) Generate() string {
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

func testConfig(t *testing.T) config.StructuredConfig {
	t.Helper()
	cfg := *config.Defaults()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Crypto.KDFTime = testKDF.Time
	cfg.Crypto.KDFMemoryKiB = testKDF.MemoryKiB
	cfg.Crypto.KDFThreads = testKDF.Threads
	return cfg
}

// newTestSessionService returns a service over a fresh data dir. mutate may
// adjust the configuration before the service is built.
func newTestSessionService(t *testing.T, mutate func(*config.StructuredConfig)) (*SessionService, *testClock, config.StructuredConfig) {
	t.Helper()
	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}
	clock := newTestClock()
	kc := crypto.NewKeyChain(crypto.WithKDFParams(testKDF))
	return NewSessionService(kc, cfg, &seqIDs{prefix: "id"}, clock.now, logger.Nop()), clock, cfg
}

// typing builds a five-key profile whose press intervals are base scaled by
// factor plus jitter milliseconds. Every key is held for 80 ms.
func typing(factor float64, jitter int) keystroke.Profile {
	keys := []string{"a", "b", "c", "d", "e"}
	base := []float64{100, 150, 120, 130}

	var samples []keystroke.Sample
	press := uint64(1000)
	for i, k := range keys {
		if i > 0 {
			press += uint64(int(base[i-1]*factor) + jitter)
		}
		samples = append(samples, keystroke.Sample{Key: k, PressMS: press, ReleaseMS: press + 80})
	}
	return keystroke.Profile{Samples: samples}
}
