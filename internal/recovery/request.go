// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package recovery

import (
	"strings"
	"time"
)

// DefaultWaitingPeriod gives the legitimate owner time to notice and abort
// a recovery someone else started before any shard can be collected.
const DefaultWaitingPeriod = 72 * time.Hour

// Request is one guardian-threshold recovery attempt. It is a plain value
// and is not safe for concurrent use.
//
// Time-dependent methods have an ...At variant taking the current time so
// callers can inject a clock.
type Request struct {
	RequestID         string                      `json:"request_id"`
	State             State                       `json:"state"`
	InitiatedAt       time.Time                   `json:"initiated_at"`
	WaitingPeriodEnds time.Time                   `json:"waiting_period_ends"`
	Threshold         int                         `json:"threshold"`
	GuardianResponses map[string]GuardianResponse `json:"guardian_responses"`
	CollectedShards   map[string][]byte           `json:"collected_shards"`
	AbortReason       string                      `json:"abort_reason,omitempty"`
	Override          *AdminOverride              `json:"override,omitempty"`
}

// AdminOverride authorizes skipping the waiting period. It is recorded on
// the request for audit.
type AdminOverride struct {
	Operator string    `json:"operator"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

func (o AdminOverride) valid() bool {
	return strings.TrimSpace(o.Operator) != "" && strings.TrimSpace(o.Reason) != ""
}

// New starts a request now with the default 72-hour waiting period. Every
// guardian starts out Notified.
func New(requestID string, threshold int, guardianIDs []string) *Request {
	return NewAt(requestID, threshold, guardianIDs, time.Now())
}

// NewAt is [New] with an explicit creation time.
func NewAt(requestID string, threshold int, guardianIDs []string, now time.Time) *Request {
	return NewWithWaitingPeriod(requestID, threshold, guardianIDs, now, DefaultWaitingPeriod)
}

// NewWithWaitingPeriod is [NewAt] with a configurable waiting period.
func NewWithWaitingPeriod(requestID string, threshold int, guardianIDs []string, now time.Time, waiting time.Duration) *Request {
	responses := make(map[string]GuardianResponse, len(guardianIDs))
	for _, id := range guardianIDs {
		responses[id] = Notified
	}

	return &Request{
		RequestID:         requestID,
		State:             WaitingPeriod,
		InitiatedAt:       now.UTC(),
		WaitingPeriodEnds: now.Add(waiting).UTC(),
		Threshold:         threshold,
		GuardianResponses: responses,
		CollectedShards:   make(map[string][]byte),
	}
}

// WaitingPeriodElapsed reports whether the waiting window is over.
func (r *Request) WaitingPeriodElapsed() bool {
	return r.WaitingPeriodElapsedAt(time.Now())
}

// WaitingPeriodElapsedAt reports whether now is at or past the deadline.
func (r *Request) WaitingPeriodElapsedAt(now time.Time) bool {
	return !now.Before(r.WaitingPeriodEnds)
}

// AdvancePastWaiting moves WaitingPeriod → AwaitingShards if the window
// has elapsed, and reports whether it did.
func (r *Request) AdvancePastWaiting() bool {
	return r.AdvancePastWaitingAt(time.Now())
}

// AdvancePastWaitingAt is [Request.AdvancePastWaiting] at time now.
func (r *Request) AdvancePastWaitingAt(now time.Time) bool {
	if r.State != WaitingPeriod || !r.WaitingPeriodElapsedAt(now) {
		return false
	}
	r.State = AwaitingShards
	return true
}

// ForceAdvancePastWaiting moves WaitingPeriod → AwaitingShards without
// checking the clock. It exists for administrative recovery and tests and
// refuses to act without an override naming an operator and a reason;
// the override is kept on the request.
func (r *Request) ForceAdvancePastWaiting(o AdminOverride) (bool, error) {
	if !o.valid() {
		return false, ErrOverrideRequired
	}
	if r.State != WaitingPeriod {
		return false, nil
	}
	if o.At.IsZero() {
		o.At = time.Now().UTC()
	}
	r.Override = &o
	r.State = AwaitingShards
	return true, nil
}

// IsGuardian reports whether id was notified when the request started.
func (r *Request) IsGuardian(id string) bool {
	_, ok := r.GuardianResponses[id]
	return ok
}

// RecordApproval marks guardianID Approved and stores its shard, replacing
// any earlier shard from the same guardian. The shard is stored even if
// guardianID is not one of the request's guardians; such shards never
// count toward [Request.ApprovalCount].
func (r *Request) RecordApproval(guardianID string, shard []byte) {
	if r.IsGuardian(guardianID) {
		r.GuardianResponses[guardianID] = Approved
	}
	if r.CollectedShards == nil {
		r.CollectedShards = make(map[string][]byte)
	}
	r.CollectedShards[guardianID] = append([]byte(nil), shard...)
}

// RecordRejection marks guardianID Rejected. A shard it already submitted
// is kept.
func (r *Request) RecordRejection(guardianID string) {
	r.setResponse(guardianID, Rejected)
}

// RecordTimeout marks guardianID TimedOut. A shard it already submitted is
// kept.
func (r *Request) RecordTimeout(guardianID string) {
	r.setResponse(guardianID, TimedOut)
}

func (r *Request) setResponse(guardianID string, resp GuardianResponse) {
	if r.IsGuardian(guardianID) {
		r.GuardianResponses[guardianID] = resp
	}
}

// ApprovalCount counts known guardians whose response is Approved.
func (r *Request) ApprovalCount() int {
	n := 0
	for _, resp := range r.GuardianResponses {
		if resp == Approved {
			n++
		}
	}
	return n
}

// CanReconstruct reports whether at least Threshold shards are collected.
func (r *Request) CanReconstruct() bool {
	return len(r.CollectedShards) >= r.Threshold
}

// BeginReconstruction moves AwaitingShards → Reconstructing once enough
// shards are in. It fires at most once per request.
func (r *Request) BeginReconstruction() bool {
	if r.State != AwaitingShards || !r.CanReconstruct() {
		return false
	}
	r.State = Reconstructing
	return true
}

// Complete marks the request Complete unconditionally.
func (r *Request) Complete() {
	r.State = Complete
}

// Abort marks the request Aborted unconditionally, including after
// Complete. The last call wins.
func (r *Request) Abort(reason string) {
	r.State = Aborted
	r.AbortReason = reason
}

// Responses returns how many guardians gave each response.
func (r *Request) Responses() map[GuardianResponse]int {
	out := make(map[GuardianResponse]int, len(responseNames))
	for _, resp := range r.GuardianResponses {
		out[resp]++
	}
	return out
}
