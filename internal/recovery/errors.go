// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package recovery

import "errors"

var (
	// ErrUnknownGuardian is returned when an operation names a guardian that
	// is not part of the request or registry.
	ErrUnknownGuardian = errors.New("unknown guardian")

	// ErrGuardianExists is returned when enrolling a guardian id twice.
	ErrGuardianExists = errors.New("guardian already enrolled")

	// ErrOverrideRequired is returned by [Request.ForceAdvancePastWaiting]
	// when the supplied [AdminOverride] does not name an operator and a
	// reason.
	ErrOverrideRequired = errors.New("admin override requires operator and reason")

	// ErrInvalidThreshold is returned when a threshold is below 1 or above
	// the number of guardians.
	ErrInvalidThreshold = errors.New("invalid recovery threshold")
)
