// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import "errors"

// Validation errors returned by [StructuredConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidStorageConfigs indicates an empty data directory or DSN, or
	// an in-memory DSN that would lose recovery requests on exit.
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidCryptoConfigs indicates Argon2id parameters the KDF rejects.
	ErrInvalidCryptoConfigs = errors.New("invalid crypto configuration")
	// ErrInvalidSecurityConfigs indicates a non-positive lockout policy or
	// negative rotation settings.
	ErrInvalidSecurityConfigs = errors.New("invalid security configuration")
	// ErrInvalidRecoveryConfigs indicates a threshold below one or a
	// negative waiting period.
	ErrInvalidRecoveryConfigs = errors.New("invalid recovery configuration")
	// ErrInvalidWorkerConfigs indicates invalid background worker settings
	// (for example, zero poll interval).
	ErrInvalidWorkerConfigs = errors.New("invalid worker configuration")
)
