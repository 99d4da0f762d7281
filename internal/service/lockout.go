// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
	"github.com/MKhiriev/sovereign-keyring/internal/utils"
)

// lockoutState counts consecutive failed unlocks. It is kept on disk so
// the limit holds across separate invocations of the CLI.
type lockoutState struct {
	FailedAttempts int       `json:"failed_attempts"`
	LockedUntil    time.Time `json:"locked_until,omitzero"`
}

func loadLockout(path string) (lockoutState, error) {
	var st lockoutState
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("%w: read lockout state: %w", crypto.ErrIO, err)
	}
	if err = json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("%w: decode lockout state: %w", crypto.ErrSerialization, err)
	}
	return st, nil
}

func (st lockoutState) save(path string) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%w: encode lockout state: %w", crypto.ErrSerialization, err)
	}
	if err = utils.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: write lockout state: %w", crypto.ErrIO, err)
	}
	return nil
}

// lockedAt reports whether unlocks are refused at now.
func (st lockoutState) lockedAt(now time.Time) bool {
	return !st.LockedUntil.IsZero() && now.Before(st.LockedUntil)
}

// fail records one failed attempt. Reaching maxAttempts locks the keyring
// for duration and restarts the count.
func (st lockoutState) fail(now time.Time, maxAttempts int, duration time.Duration) lockoutState {
	st.FailedAttempts++
	if maxAttempts > 0 && st.FailedAttempts >= maxAttempts {
		st.FailedAttempts = 0
		st.LockedUntil = now.Add(duration).UTC()
	}
	return st
}
