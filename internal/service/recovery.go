// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/MKhiriev/sovereign-keyring/internal/config"
	"github.com/MKhiriev/sovereign-keyring/internal/logger"
	"github.com/MKhiriev/sovereign-keyring/internal/recovery"
	"github.com/MKhiriev/sovereign-keyring/internal/store"
	"github.com/MKhiriev/sovereign-keyring/internal/utils"
)

// RecoveryService drives guardian recovery requests stored in a
// [store.RecoveryRepository]. Every operation loads the request, applies
// one transition and saves it back.
type RecoveryService struct {
	repo      store.RecoveryRepository
	guardians GuardianSource
	cfg       config.Recovery
	security  config.Security
	ids       IDGenerator
	now       Clock
	log       *logger.Logger
}

// NewRecoveryService builds a service over repo. guardians may be nil, in
// which case Initiate needs explicit guardian ids.
func NewRecoveryService(repo store.RecoveryRepository, guardians GuardianSource, cfg config.StructuredConfig, ids IDGenerator, now Clock, log *logger.Logger) *RecoveryService {
	if now == nil {
		now = systemClock
	}
	if ids == nil {
		ids = utils.NewUUIDGenerator()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RecoveryService{
		repo:      repo,
		guardians: guardians,
		cfg:       cfg.Recovery,
		security:  cfg.Security,
		ids:       ids,
		now:       now,
		log:       log,
	}
}

// Initiate starts a recovery request. With no guardianIDs the active
// guardians of the registry are notified; explicit ids must all be known
// to the registry when one is available. threshold <= 0 selects the
// configured default, capped at the number of guardians.
func (s *RecoveryService) Initiate(ctx context.Context, threshold int, guardianIDs ...string) (*recovery.Request, error) {
	log := logger.FromContext(ctx)

	ids, err := s.resolveGuardians(ctx, guardianIDs)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoGuardians
	}

	if threshold <= 0 {
		threshold = min(s.cfg.Threshold, len(ids))
	}
	if threshold < 1 || threshold > len(ids) {
		return nil, fmt.Errorf("%w: %d of %d guardians", recovery.ErrInvalidThreshold, threshold, len(ids))
	}

	waiting := s.cfg.WaitingPeriod
	if waiting <= 0 {
		waiting = recovery.DefaultWaitingPeriod
	}

	req := recovery.NewWithWaitingPeriod(s.ids.Generate(), threshold, ids, s.now(), waiting)
	if err = s.repo.SaveRecoveryRequest(ctx, req); err != nil {
		log.Err(err).Str("func", "RecoveryService.Initiate").Msg("failed to save recovery request")
		return nil, err
	}

	log.Info().Str("func", "RecoveryService.Initiate").
		Str("request_id", req.RequestID).
		Int("threshold", threshold).
		Int("guardians", len(ids)).
		Time("waiting_period_ends", req.WaitingPeriodEnds).
		Msg("recovery request initiated")
	return req, nil
}

// Approve records guardianID's approval and shard. The shard is stored as
// the opaque blob the guardian sent. Once the threshold is met during
// AwaitingShards the request moves to Reconstructing.
//
// Guardians cannot respond before the waiting period ends. Until then
// Approve, Reject and Timeout return [ErrWaitingPeriod].
func (s *RecoveryService) Approve(ctx context.Context, requestID, guardianID string, shard []byte) (*recovery.Request, error) {
	return s.respond(ctx, "RecoveryService.Approve", requestID, guardianID, func(req *recovery.Request) {
		req.RecordApproval(guardianID, shard)
		req.BeginReconstruction()
	})
}

// Reject records guardianID's refusal.
func (s *RecoveryService) Reject(ctx context.Context, requestID, guardianID string) (*recovery.Request, error) {
	return s.respond(ctx, "RecoveryService.Reject", requestID, guardianID, func(req *recovery.Request) {
		req.RecordRejection(guardianID)
	})
}

// Timeout records that guardianID did not answer in time.
func (s *RecoveryService) Timeout(ctx context.Context, requestID, guardianID string) (*recovery.Request, error) {
	return s.respond(ctx, "RecoveryService.Timeout", requestID, guardianID, func(req *recovery.Request) {
		req.RecordTimeout(guardianID)
	})
}

// Advance moves the request past its waiting period if that has elapsed.
func (s *RecoveryService) Advance(ctx context.Context, requestID string) (*recovery.Request, bool, error) {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, false, err
	}
	if !req.AdvancePastWaitingAt(s.now()) {
		return req, false, nil
	}
	req.BeginReconstruction()
	if err = s.repo.SaveRecoveryRequest(ctx, req); err != nil {
		return nil, false, err
	}

	logger.FromContext(ctx).Info().Str("func", "RecoveryService.Advance").Str("request_id", requestID).Str("state", req.State.String()).Msg("waiting period elapsed")
	return req, true, nil
}

// ForceAdvance skips the waiting period under an audited override. It is
// refused unless admin overrides are enabled in configuration.
func (s *RecoveryService) ForceAdvance(ctx context.Context, requestID string, override recovery.AdminOverride) (*recovery.Request, bool, error) {
	log := logger.FromContext(ctx)
	if !s.security.AllowAdminOverride {
		return nil, false, ErrOverrideDisabled
	}

	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, false, err
	}
	if override.At.IsZero() {
		override.At = s.now().UTC()
	}
	advanced, err := req.ForceAdvancePastWaiting(override)
	if err != nil || !advanced {
		return req, false, err
	}
	req.BeginReconstruction()
	if err = s.repo.SaveRecoveryRequest(ctx, req); err != nil {
		return nil, false, err
	}

	log.Warn().Str("func", "RecoveryService.ForceAdvance").
		Str("request_id", requestID).
		Str("operator", override.Operator).
		Str("reason", override.Reason).
		Msg("waiting period overridden")
	return req, true, nil
}

// AdvanceDue advances every request whose waiting period has elapsed and
// returns how many moved.
func (s *RecoveryService) AdvanceDue(ctx context.Context) (int, error) {
	reqs, err := s.repo.ListRecoveryRequests(ctx, recovery.WaitingPeriod)
	if err != nil {
		return 0, err
	}

	now := s.now()
	advanced := 0
	for _, req := range reqs {
		if err = ctx.Err(); err != nil {
			return advanced, err
		}
		if !req.AdvancePastWaitingAt(now) {
			continue
		}
		req.BeginReconstruction()
		if err = s.repo.SaveRecoveryRequest(ctx, req); err != nil {
			return advanced, fmt.Errorf("save request %s: %w", req.RequestID, err)
		}
		advanced++
	}
	return advanced, nil
}

// BeginReconstruction moves the request to Reconstructing if enough shards
// are collected.
func (s *RecoveryService) BeginReconstruction(ctx context.Context, requestID string) (*recovery.Request, bool, error) {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, false, err
	}
	if !req.BeginReconstruction() {
		return req, false, nil
	}
	if err = s.repo.SaveRecoveryRequest(ctx, req); err != nil {
		return nil, false, err
	}
	return req, true, nil
}

// Complete marks the request complete.
func (s *RecoveryService) Complete(ctx context.Context, requestID string) (*recovery.Request, error) {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	req.Complete()
	if err = s.repo.SaveRecoveryRequest(ctx, req); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().Str("func", "RecoveryService.Complete").Str("request_id", requestID).Msg("recovery completed")
	return req, nil
}

// Abort cancels the request with reason. It is accepted in every state.
func (s *RecoveryService) Abort(ctx context.Context, requestID, reason string) (*recovery.Request, error) {
	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	req.Abort(reason)
	if err = s.repo.SaveRecoveryRequest(ctx, req); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Warn().Str("func", "RecoveryService.Abort").Str("request_id", requestID).Str("reason", reason).Msg("recovery aborted")
	return req, nil
}

// Get returns the request with requestID or
// [store.ErrRecoveryRequestNotFound].
func (s *RecoveryService) Get(ctx context.Context, requestID string) (*recovery.Request, error) {
	return s.repo.GetRecoveryRequest(ctx, requestID)
}

// Pending lists every request that is neither complete nor aborted.
func (s *RecoveryService) Pending(ctx context.Context) ([]*recovery.Request, error) {
	return s.repo.ListRecoveryRequests(ctx, recovery.WaitingPeriod, recovery.AwaitingShards, recovery.Reconstructing)
}

// WaitingPeriodRemaining returns how long until req may advance, or zero.
func (s *RecoveryService) WaitingPeriodRemaining(req *recovery.Request) time.Duration {
	return max(0, req.WaitingPeriodEnds.Sub(s.now()))
}

func (s *RecoveryService) respond(ctx context.Context, fn, requestID, guardianID string, apply func(*recovery.Request)) (*recovery.Request, error) {
	log := logger.FromContext(ctx)

	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.State.IsTerminal() {
		return nil, ErrRequestClosed
	}
	if req.State == recovery.WaitingPeriod {
		return nil, ErrWaitingPeriod
	}
	if !req.IsGuardian(guardianID) {
		log.Warn().Str("func", fn).Str("request_id", requestID).Str("guardian_id", guardianID).Msg("response from unknown guardian")
		return nil, recovery.ErrUnknownGuardian
	}

	apply(req)
	if err = s.repo.SaveRecoveryRequest(ctx, req); err != nil {
		log.Err(err).Str("func", fn).Str("request_id", requestID).Msg("failed to save recovery request")
		return nil, err
	}

	log.Info().Str("func", fn).Str("request_id", requestID).Str("guardian_id", guardianID).Str("state", req.State.String()).Msg("guardian response recorded")
	return req, nil
}

func (s *RecoveryService) resolveGuardians(ctx context.Context, explicit []string) ([]string, error) {
	var reg *recovery.Registry
	if s.guardians != nil {
		r, err := s.guardians.Guardians(ctx)
		if err != nil && len(explicit) == 0 {
			return nil, err
		}
		reg = r
	}

	if len(explicit) == 0 {
		if reg == nil {
			return nil, ErrNoGuardians
		}
		return reg.ActiveGuardianIDs(), nil
	}

	ids := slices.Clone(explicit)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if reg != nil {
		active := reg.ActiveGuardianIDs()
		for _, id := range ids {
			if !slices.Contains(active, id) {
				return nil, fmt.Errorf("%w: %s", recovery.ErrUnknownGuardian, id)
			}
		}
	}
	return ids, nil
}
