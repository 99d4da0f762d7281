// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"

	"github.com/MKhiriev/sovereign-keyring/internal/recovery"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

// RecoveryRepository persists guardian recovery requests.
type RecoveryRepository interface {
	// SaveRecoveryRequest inserts req or replaces the stored request with
	// the same id.
	SaveRecoveryRequest(ctx context.Context, req *recovery.Request) error
	// GetRecoveryRequest returns [ErrRecoveryRequestNotFound] for an
	// unknown id.
	GetRecoveryRequest(ctx context.Context, requestID string) (*recovery.Request, error)
	// ListRecoveryRequests returns requests in any of states, ordered by
	// waiting period end. No states means all requests.
	ListRecoveryRequests(ctx context.Context, states ...recovery.State) ([]*recovery.Request, error)
	// DeleteRecoveryRequest returns [ErrRecoveryRequestNotFound] when
	// nothing was deleted.
	DeleteRecoveryRequest(ctx context.Context, requestID string) error
}
