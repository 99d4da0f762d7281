// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MKhiriev/sovereign-keyring/internal/config"
	"github.com/MKhiriev/sovereign-keyring/internal/logger"
	"github.com/MKhiriev/sovereign-keyring/internal/mock"
	"github.com/MKhiriev/sovereign-keyring/internal/recovery"
	"github.com/MKhiriev/sovereign-keyring/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// staticGuardians is a GuardianSource returning a fixed registry.
type staticGuardians struct {
	reg *recovery.Registry
	err error
}

func (s staticGuardians) Guardians(context.Context) (*recovery.Registry, error) {
	return s.reg, s.err
}

func testRegistry() *recovery.Registry {
	return &recovery.Registry{Guardians: []recovery.GuardianInfo{
		{ID: "g1", Name: "Alice", Status: recovery.GuardianActive},
		{ID: "g2", Name: "Bob", Status: recovery.GuardianActive},
		{ID: "g3", Name: "Carol", Status: recovery.GuardianRevoked},
	}}
}

// newTestRecoverySvc builds a RecoveryService over a mock
// repository and a manual clock.
func newTestRecoverySvc(t *testing.T, ctrl *gomock.Controller, guardians GuardianSource, mutate func(*config.StructuredConfig)) (*RecoveryService, *mock.MockRecoveryRepository, *testClock) {
	t.Helper()
	cfg := *config.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	repo := mock.NewMockRecoveryRepository(ctrl)
	clock := newTestClock()
	svc := NewRecoveryService(repo, guardians, cfg, &seqIDs{prefix: "req"}, clock.now, logger.Nop())
	return svc, repo, clock
}

// awaitingRequest returns a request past its waiting period for g1 and g2.
func awaitingRequest(clock *testClock, threshold int) *recovery.Request {
	req := recovery.NewWithWaitingPeriod("req-1", threshold, []string{"g1", "g2"}, clock.now().Add(-2*time.Hour), time.Hour)
	req.AdvancePastWaitingAt(clock.now())
	return req
}

// ── Initiate ─────────────────────────────────────────────────────────────────

func TestRecoveryService_Initiate_UsesActiveGuardians(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, clock := newTestRecoverySvc(t, ctrl, staticGuardians{reg: testRegistry()}, nil)
	ctx := context.Background()

	repo.EXPECT().SaveRecoveryRequest(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, req *recovery.Request) error {
			assert.Equal(t, "req-1", req.RequestID)
			assert.Equal(t, recovery.WaitingPeriod, req.State)
			return nil
		},
	)

	req, err := svc.Initiate(ctx, 0)
	require.NoError(t, err)

	assert.True(t, req.IsGuardian("g1"))
	assert.True(t, req.IsGuardian("g2"))
	assert.False(t, req.IsGuardian("g3"), "revoked guardians are not notified")
	assert.Equal(t, 2, req.Threshold, "default threshold is capped at the guardian count")
	assert.True(t, clock.now().Add(recovery.DefaultWaitingPeriod).Equal(req.WaitingPeriodEnds))
}

func TestRecoveryService_Initiate_ConfiguredWaitingPeriod(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, clock := newTestRecoverySvc(t, ctrl, staticGuardians{reg: testRegistry()}, func(c *config.StructuredConfig) {
		c.Recovery.WaitingPeriod = 24 * time.Hour
	})
	repo.EXPECT().SaveRecoveryRequest(gomock.Any(), gomock.Any()).Return(nil)

	req, err := svc.Initiate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, req.Threshold)
	assert.True(t, clock.now().Add(24*time.Hour).Equal(req.WaitingPeriodEnds))
}

func TestRecoveryService_Initiate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		guardians GuardianSource
		threshold int
		ids       []string
		wantErr   error
	}{
		{
			name:      "empty registry",
			guardians: staticGuardians{reg: &recovery.Registry{}},
			wantErr:   ErrNoGuardians,
		},
		{
			name:    "no registry and no ids",
			wantErr: ErrNoGuardians,
		},
		{
			name:      "locked session and no ids",
			guardians: staticGuardians{err: ErrNotUnlocked},
			wantErr:   ErrNotUnlocked,
		},
		{
			name:      "unknown explicit guardian",
			guardians: staticGuardians{reg: testRegistry()},
			ids:       []string{"g1", "g9"},
			wantErr:   recovery.ErrUnknownGuardian,
		},
		{
			name:      "revoked explicit guardian",
			guardians: staticGuardians{reg: testRegistry()},
			ids:       []string{"g3"},
			wantErr:   recovery.ErrUnknownGuardian,
		},
		{
			name:      "threshold above guardian count",
			guardians: staticGuardians{reg: testRegistry()},
			threshold: 3,
			wantErr:   recovery.ErrInvalidThreshold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc, _, _ := newTestRecoverySvc(t, ctrl, tt.guardians, nil)
			_, err := svc.Initiate(context.Background(), tt.threshold, tt.ids...)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// TestRecoveryService_Initiate_ExplicitWhileLocked covers starting a
// recovery without an unlocked session, which is the normal case for an
// owner who lost the passphrase.
func TestRecoveryService_Initiate_ExplicitWhileLocked(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, _ := newTestRecoverySvc(t, ctrl, staticGuardians{err: ErrNotUnlocked}, nil)
	repo.EXPECT().SaveRecoveryRequest(gomock.Any(), gomock.Any()).Return(nil)

	req, err := svc.Initiate(context.Background(), 2, "g2", "g1", "g2")
	require.NoError(t, err)
	assert.Len(t, req.GuardianResponses, 2)
	assert.Equal(t, 2, req.Threshold)
}

func TestRecoveryService_Initiate_SaveError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, _ := newTestRecoverySvc(t, ctrl, staticGuardians{reg: testRegistry()}, nil)
	repo.EXPECT().SaveRecoveryRequest(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	_, err := svc.Initiate(context.Background(), 0)
	assert.EqualError(t, err, "disk full")
}

// ── Guardian responses ───────────────────────────────────────────────────────

func TestRecoveryService_Approve_ReachesThreshold(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, clock := newTestRecoverySvc(t, ctrl, nil, nil)
	ctx := context.Background()
	req := awaitingRequest(clock, 2)

	repo.EXPECT().GetRecoveryRequest(ctx, "req-1").Return(req, nil).Times(2)
	repo.EXPECT().SaveRecoveryRequest(ctx, req).Return(nil).Times(2)

	got, err := svc.Approve(ctx, "req-1", "g1", []byte("shard-1"))
	require.NoError(t, err)
	assert.Equal(t, recovery.AwaitingShards, got.State)

	got, err = svc.Approve(ctx, "req-1", "g2", []byte("shard-2"))
	require.NoError(t, err)
	assert.Equal(t, recovery.Reconstructing, got.State)
	assert.Equal(t, []byte("shard-2"), got.CollectedShards["g2"])
}

func TestRecoveryService_Approve_UnknownGuardian(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, clock := newTestRecoverySvc(t, ctrl, nil, nil)
	req := awaitingRequest(clock, 1)
	repo.EXPECT().GetRecoveryRequest(gomock.Any(), "req-1").Return(req, nil)

	_, err := svc.Approve(context.Background(), "req-1", "mallory", []byte("shard"))
	require.ErrorIs(t, err, recovery.ErrUnknownGuardian)
	assert.Empty(t, req.CollectedShards)
}

func TestRecoveryService_Respond_ClosedRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, clock := newTestRecoverySvc(t, ctrl, nil, nil)
	req := awaitingRequest(clock, 1)
	req.Abort("owner cancelled")
	repo.EXPECT().GetRecoveryRequest(gomock.Any(), "req-1").Return(req, nil).Times(3)

	ctx := context.Background()
	_, err := svc.Approve(ctx, "req-1", "g1", []byte("shard"))
	assert.ErrorIs(t, err, ErrRequestClosed)
	_, err = svc.Reject(ctx, "req-1", "g1")
	assert.ErrorIs(t, err, ErrRequestClosed)
	_, err = svc.Timeout(ctx, "req-1", "g1")
	assert.ErrorIs(t, err, ErrRequestClosed)
}

func TestRecoveryService_RejectAndTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, clock := newTestRecoverySvc(t, ctrl, nil, nil)
	req := awaitingRequest(clock, 2)
	repo.EXPECT().GetRecoveryRequest(gomock.Any(), "req-1").Return(req, nil).Times(2)
	repo.EXPECT().SaveRecoveryRequest(gomock.Any(), req).Return(nil).Times(2)

	ctx := context.Background()
	_, err := svc.Reject(ctx, "req-1", "g1")
	require.NoError(t, err)
	got, err := svc.Timeout(ctx, "req-1", "g2")
	require.NoError(t, err)

	assert.Equal(t, recovery.Rejected, got.GuardianResponses["g1"])
	assert.Equal(t, recovery.TimedOut, got.GuardianResponses["g2"])
	assert.Equal(t, recovery.AwaitingShards, got.State)
}

func TestRecoveryService_Get_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, _ := newTestRecoverySvc(t, ctrl, nil, nil)
	repo.EXPECT().GetRecoveryRequest(gomock.Any(), "nope").Return(nil, store.ErrRecoveryRequestNotFound)

	_, err := svc.Approve(context.Background(), "nope", "g1", nil)
	assert.ErrorIs(t, err, store.ErrRecoveryRequestNotFound)
}

// ── Advance ──────────────────────────────────────────────────────────────────

func TestRecoveryService_Advance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, clock := newTestRecoverySvc(t, ctrl, nil, nil)
	ctx := context.Background()
	req := recovery.NewWithWaitingPeriod("req-1", 1, []string{"g1"}, clock.now(), time.Hour)

	repo.EXPECT().GetRecoveryRequest(ctx, "req-1").Return(req, nil).Times(2)

	_, advanced, err := svc.Advance(ctx, "req-1")
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, time.Hour, svc.WaitingPeriodRemaining(req))

	clock.advance(time.Hour)
	repo.EXPECT().SaveRecoveryRequest(ctx, req).Return(nil)

	got, advanced, err := svc.Advance(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, recovery.AwaitingShards, got.State)
	assert.Zero(t, svc.WaitingPeriodRemaining(req))
}

// TestRecoveryService_Respond_DuringWaitingPeriod checks that no guardian
// response is recorded while the owner can still cancel the request.
func TestRecoveryService_Respond_DuringWaitingPeriod(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, clock := newTestRecoverySvc(t, ctrl, nil, nil)
	req := recovery.NewWithWaitingPeriod("req-1", 1, []string{"g1"}, clock.now(), 72*time.Hour)
	repo.EXPECT().GetRecoveryRequest(gomock.Any(), "req-1").Return(req, nil).Times(3)

	ctx := context.Background()
	_, err := svc.Approve(ctx, "req-1", "g1", []byte("shard"))
	assert.ErrorIs(t, err, ErrWaitingPeriod)
	_, err = svc.Reject(ctx, "req-1", "g1")
	assert.ErrorIs(t, err, ErrWaitingPeriod)
	_, err = svc.Timeout(ctx, "req-1", "g1")
	assert.ErrorIs(t, err, ErrWaitingPeriod)

	assert.Equal(t, recovery.WaitingPeriod, req.State)
	assert.Empty(t, req.CollectedShards)
	assert.Equal(t, recovery.Notified, req.GuardianResponses["g1"])
}

func TestRecoveryService_ForceAdvance(t *testing.T) {
	override := recovery.AdminOverride{Operator: "ops", Reason: "verified in person"}

	t.Run("disabled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, _, _ := newTestRecoverySvc(t, ctrl, nil, nil)
		_, _, err := svc.ForceAdvance(context.Background(), "req-1", override)
		assert.ErrorIs(t, err, ErrOverrideDisabled)
	})

	t.Run("incomplete override", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, repo, clock := newTestRecoverySvc(t, ctrl, nil, func(c *config.StructuredConfig) {
			c.Security.AllowAdminOverride = true
		})
		req := recovery.NewWithWaitingPeriod("req-1", 1, []string{"g1"}, clock.now(), time.Hour)
		repo.EXPECT().GetRecoveryRequest(gomock.Any(), "req-1").Return(req, nil)

		_, advanced, err := svc.ForceAdvance(context.Background(), "req-1", recovery.AdminOverride{Operator: "ops"})
		assert.ErrorIs(t, err, recovery.ErrOverrideRequired)
		assert.False(t, advanced)
		assert.Equal(t, recovery.WaitingPeriod, req.State)
	})

	t.Run("enabled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc, repo, clock := newTestRecoverySvc(t, ctrl, nil, func(c *config.StructuredConfig) {
			c.Security.AllowAdminOverride = true
		})
		req := recovery.NewWithWaitingPeriod("req-1", 1, []string{"g1"}, clock.now(), time.Hour)
		repo.EXPECT().GetRecoveryRequest(gomock.Any(), "req-1").Return(req, nil)
		repo.EXPECT().SaveRecoveryRequest(gomock.Any(), req).Return(nil)

		got, advanced, err := svc.ForceAdvance(context.Background(), "req-1", override)
		require.NoError(t, err)
		assert.True(t, advanced)
		assert.Equal(t, recovery.AwaitingShards, got.State)
		require.NotNil(t, got.Override)
		assert.Equal(t, "ops", got.Override.Operator)
		assert.True(t, clock.now().Equal(got.Override.At))
	})
}

func TestRecoveryService_AdvanceDue(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, clock := newTestRecoverySvc(t, ctrl, nil, nil)
	ctx := context.Background()
	due := recovery.NewWithWaitingPeriod("req-1", 1, []string{"g1"}, clock.now().Add(-2*time.Hour), time.Hour)
	notDue := recovery.NewWithWaitingPeriod("req-2", 1, []string{"g1"}, clock.now(), time.Hour)

	repo.EXPECT().ListRecoveryRequests(ctx, recovery.WaitingPeriod).Return([]*recovery.Request{due, notDue}, nil)
	repo.EXPECT().SaveRecoveryRequest(ctx, due).Return(nil)

	n, err := svc.AdvanceDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, recovery.AwaitingShards, due.State)
	assert.Equal(t, recovery.WaitingPeriod, notDue.State)
}

func TestRecoveryService_AdvanceDue_ListError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, _ := newTestRecoverySvc(t, ctrl, nil, nil)
	repo.EXPECT().ListRecoveryRequests(gomock.Any(), recovery.WaitingPeriod).Return(nil, store.ErrExecutingQuery)

	_, err := svc.AdvanceDue(context.Background())
	assert.ErrorIs(t, err, store.ErrExecutingQuery)
}

// ── Completion ───────────────────────────────────────────────────────────────

func TestRecoveryService_Lifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, clock := newTestRecoverySvc(t, ctrl, nil, nil)
	ctx := context.Background()
	req := awaitingRequest(clock, 1)
	req.RecordApproval("g1", []byte("shard"))

	repo.EXPECT().GetRecoveryRequest(ctx, "req-1").Return(req, nil).Times(4)
	repo.EXPECT().SaveRecoveryRequest(ctx, req).Return(nil).Times(3)

	got, ok, err := svc.BeginReconstruction(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, recovery.Reconstructing, got.State)

	_, ok, err = svc.BeginReconstruction(ctx, "req-1")
	require.NoError(t, err)
	assert.False(t, ok, "reconstruction begins once")

	got, err = svc.Complete(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, recovery.Complete, got.State)

	// Abort after completion is accepted and the last call wins.
	got, err = svc.Abort(ctx, "req-1", "compromised device")
	require.NoError(t, err)
	assert.Equal(t, recovery.Aborted, got.State)
	assert.Equal(t, "compromised device", got.AbortReason)
}

func TestRecoveryService_Pending(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo, _ := newTestRecoverySvc(t, ctrl, nil, nil)
	want := []*recovery.Request{{RequestID: "req-1"}}
	repo.EXPECT().
		ListRecoveryRequests(gomock.Any(), recovery.WaitingPeriod, recovery.AwaitingShards, recovery.Reconstructing).
		Return(want, nil)

	got, err := svc.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
