// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"strings"
)

// validate checks that the final merged [StructuredConfig] satisfies all
// invariants before it is used at startup.
func (cfg *StructuredConfig) validate() error {
	if cfg.Storage.DataDir == "" || cfg.Storage.DB.DSN == "" || strings.Contains(cfg.Storage.DB.DSN, ":memory:") {
		return ErrInvalidStorageConfigs
	}

	c := cfg.Crypto
	if c.KDFTime == 0 || c.KDFThreads == 0 || c.KDFMemoryKiB < 8*uint32(c.KDFThreads) {
		return fmt.Errorf("%w: argon2 needs positive time and threads and at least 8 KiB of memory per thread", ErrInvalidCryptoConfigs)
	}

	s := cfg.Security
	if s.MaxLoginAttempts < 1 || s.LockoutDuration <= 0 || s.KeyRotationCommits < 0 || s.KeyRotationAge < 0 || s.KeystrokeReauth < 0 {
		return ErrInvalidSecurityConfigs
	}

	if cfg.Recovery.Threshold < 1 || cfg.Recovery.WaitingPeriod < 0 {
		return ErrInvalidRecoveryConfigs
	}

	if cfg.Workers.RecoveryPollInterval <= 0 {
		return ErrInvalidWorkerConfigs
	}

	return nil
}
