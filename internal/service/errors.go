// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotInitialized is returned when no auth store exists yet.
	ErrNotInitialized = errors.New("keyring is not initialized")
	// ErrAlreadyInitialized is returned by Setup when an auth store exists.
	ErrAlreadyInitialized = errors.New("keyring is already initialized")
	// ErrNotUnlocked is returned by operations that need an unlocked
	// session.
	ErrNotUnlocked = errors.New("keyring is locked")
	// ErrLockedOut matches every [*LockoutError].
	ErrLockedOut = errors.New("too many failed unlock attempts")
	// ErrPassphrasesEqual is returned when the primary and duress
	// passphrases are identical.
	ErrPassphrasesEqual = errors.New("primary and duress passphrases must differ")
	// ErrWeakPassphrase matches every [*PolicyError].
	ErrWeakPassphrase = errors.New("passphrase does not satisfy the password policy")
	// ErrOverrideDisabled is returned by ForceAdvance when admin overrides
	// are not allowed by configuration.
	ErrOverrideDisabled = errors.New("admin override of the waiting period is disabled")
	// ErrNoGuardians is returned when a recovery is started without any
	// active guardian.
	ErrNoGuardians = errors.New("no active guardians")
	// ErrRequestClosed is returned when a guardian responds to a request
	// that is already complete or aborted.
	ErrRequestClosed = errors.New("recovery request is closed")
	// ErrEmptyDocumentID is returned for an empty document id.
	ErrEmptyDocumentID = errors.New("document id is empty")
	// ErrReauthRequired is returned by document operations once the
	// keystroke re-authentication interval has passed.
	ErrReauthRequired = errors.New("re-authentication required")
	// ErrWaitingPeriod is returned when a guardian responds to a request
	// whose waiting period has not ended.
	ErrWaitingPeriod = errors.New("recovery request is still in its waiting period")
)

// LockoutError reports when unlock attempts will be accepted again.
type LockoutError struct {
	Until time.Time
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("%s: locked until %s", ErrLockedOut, e.Until.Format(time.RFC3339))
}

func (e *LockoutError) Is(target error) bool {
	return target == ErrLockedOut
}

// PolicyError lists the policy violations of one passphrase.
type PolicyError struct {
	Field    string
	Problems []string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s passphrase: %s", e.Field, strings.Join(e.Problems, "; "))
}

func (e *PolicyError) Is(target error) bool {
	return target == ErrWeakPassphrase
}
