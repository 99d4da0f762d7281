// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package recovery

import (
	"fmt"
	"slices"
	"time"

	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
	"github.com/MKhiriev/sovereign-keyring/internal/utils"
)

// GuardianStatus is the enrollment state of a guardian.
type GuardianStatus string

const (
	GuardianActive       GuardianStatus = "active"
	GuardianPending      GuardianStatus = "pending"
	GuardianRevoked      GuardianStatus = "revoked"
	GuardianUnresponsive GuardianStatus = "unresponsive"
)

// GuardianInfo describes one trusted contact.
type GuardianInfo struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Contact    string         `json:"contact" yaml:"contact"`
	Status     GuardianStatus `json:"status" yaml:"status"`
	EnrolledAt time.Time      `json:"enrolled_at" yaml:"enrolled_at"`
	PeerID     string         `json:"peer_id,omitempty" yaml:"peer_id,omitempty"`
}

// Fingerprint identifies the guardian in shard records without repeating
// its contact details.
func (g GuardianInfo) Fingerprint() string {
	return utils.Fingerprint(g.ID, g.PeerID)
}

// ShardRecord is the bookkeeping entry for a shard handed to a guardian.
// EncryptedData is opaque to the registry.
type ShardRecord struct {
	ShardID             string    `json:"shard_id"`
	EncryptedData       []byte    `json:"encrypted_data"`
	ForUser             string    `json:"for_user"`
	GuardianFingerprint string    `json:"guardian_fingerprint"`
	CreatedAt           time.Time `json:"created_at"`
	Epoch               uint32    `json:"epoch"`
}

// Registry is the owner's list of guardians and the shards issued to
// them. It is stored sealed under the primary KEK.
type Registry struct {
	Guardians []GuardianInfo `json:"guardians"`
	Shards    []ShardRecord  `json:"shards"`
}

// AddGuardian enrolls g. Ids must be unique.
func (r *Registry) AddGuardian(g GuardianInfo) error {
	if _, ok := r.Guardian(g.ID); ok {
		return fmt.Errorf("%w: %s", ErrGuardianExists, g.ID)
	}
	if g.Status == "" {
		g.Status = GuardianPending
	}
	r.Guardians = append(r.Guardians, g)
	return nil
}

// RemoveGuardian drops the guardian with id and reports whether it existed.
func (r *Registry) RemoveGuardian(id string) bool {
	before := len(r.Guardians)
	r.Guardians = slices.DeleteFunc(r.Guardians, func(g GuardianInfo) bool { return g.ID == id })
	return len(r.Guardians) != before
}

// Guardian looks up a guardian by id.
func (r *Registry) Guardian(id string) (GuardianInfo, bool) {
	i := slices.IndexFunc(r.Guardians, func(g GuardianInfo) bool { return g.ID == id })
	if i < 0 {
		return GuardianInfo{}, false
	}
	return r.Guardians[i], true
}

// SetStatus changes the status of guardian id.
func (r *Registry) SetStatus(id string, status GuardianStatus) error {
	i := slices.IndexFunc(r.Guardians, func(g GuardianInfo) bool { return g.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownGuardian, id)
	}
	r.Guardians[i].Status = status
	return nil
}

// ActiveGuardians returns guardians that can take part in a recovery.
func (r *Registry) ActiveGuardians() []GuardianInfo {
	var out []GuardianInfo
	for _, g := range r.Guardians {
		if g.Status == GuardianActive {
			out = append(out, g)
		}
	}
	return out
}

// ActiveGuardianIDs is [Registry.ActiveGuardians] reduced to ids.
func (r *Registry) ActiveGuardianIDs() []string {
	active := r.ActiveGuardians()
	ids := make([]string, 0, len(active))
	for _, g := range active {
		ids = append(ids, g.ID)
	}
	return ids
}

// AddShard records a shard issued to a guardian.
func (r *Registry) AddShard(s ShardRecord) {
	r.Shards = append(r.Shards, s)
}

// ShardsForEpoch returns the shards issued for a KEK epoch.
func (r *Registry) ShardsForEpoch(epoch uint32) []ShardRecord {
	var out []ShardRecord
	for _, s := range r.Shards {
		if s.Epoch == epoch {
			out = append(out, s)
		}
	}
	return out
}

// Seal encrypts the registry under key.
func (r *Registry) Seal(kc *crypto.KeyChain, key []byte) (crypto.Sealed, error) {
	return kc.SealJSON(r, key)
}

// OpenRegistry decrypts a registry sealed with [Registry.Seal].
func OpenRegistry(s crypto.Sealed, key []byte) (*Registry, error) {
	var r Registry
	if err := crypto.OpenJSON(s, key, &r); err != nil {
		return nil, fmt.Errorf("open guardian registry: %w", err)
	}
	return &r, nil
}
