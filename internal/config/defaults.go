// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
)

const (
	defaultMaxLoginAttempts     = 10
	defaultLockoutDuration      = 300 * time.Second
	defaultKeystrokeReauth      = 30 * time.Minute
	defaultKeyRotationAge       = 90 * 24 * time.Hour
	defaultKeyRotationCommits   = 100
	defaultWaitingPeriod        = 72 * time.Hour
	defaultRecoveryThreshold    = 3
	defaultRecoveryPollInterval = time.Minute
)

// Defaults returns the built-in configuration. DataDir defaults to
// ~/.sovereign-keyring, or a relative directory when no home is known.
func Defaults() *StructuredConfig {
	kdf := crypto.DefaultKDFParams()

	dataDir := defaultDataDirName
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, defaultDataDirName)
	}

	return &StructuredConfig{
		Crypto: Crypto{
			KDFTime:      kdf.Time,
			KDFMemoryKiB: kdf.MemoryKiB,
			KDFThreads:   kdf.Threads,
		},
		Storage: Storage{
			DataDir: dataDir,
		},
		Security: Security{
			MaxLoginAttempts:   defaultMaxLoginAttempts,
			LockoutDuration:    defaultLockoutDuration,
			KeystrokeReauth:    defaultKeystrokeReauth,
			KeyRotationAge:     defaultKeyRotationAge,
			KeyRotationCommits: defaultKeyRotationCommits,
		},
		Recovery: Recovery{
			WaitingPeriod: defaultWaitingPeriod,
			Threshold:     defaultRecoveryThreshold,
		},
		Workers: Workers{
			RecoveryPollInterval: defaultRecoveryPollInterval,
		},
	}
}
