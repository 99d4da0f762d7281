// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"time"

	"github.com/MKhiriev/sovereign-keyring/internal/recovery"
)

// Clock returns the current time. Services take one so tests can control
// lockouts and waiting periods.
type Clock func() time.Time

// IDGenerator produces unique identifiers for devices and recovery
// requests.
type IDGenerator interface {
	Generate() string
}

// GuardianSource provides the owner's guardian registry.
type GuardianSource interface {
	Guardians(ctx context.Context) (*recovery.Registry, error)
}

func systemClock() time.Time {
	return time.Now().UTC()
}
