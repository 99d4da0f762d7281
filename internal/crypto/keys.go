// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const redacted = "[REDACTED]"

// deviceKeyInfo domain-separates device key derivation from any other HKDF
// use of the master key.
const deviceKeyInfo = "sovereign-keyring/device-key/v1:"

// material is the fixed-size secret shared by all key types. It never
// prints or serializes its contents.
type material struct {
	key [KeySize]byte
}

func materialFromBytes(b []byte) (material, error) {
	var m material
	if len(b) != KeySize {
		return m, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyLength, len(b), KeySize)
	}
	copy(m.key[:], b)
	return m, nil
}

// Bytes returns a copy of the raw key. The caller owns the copy and should
// scrub it when done.
func (m material) Bytes() []byte {
	out := make([]byte, KeySize)
	copy(out, m.key[:])
	return out
}

// Zero overwrites the key in place.
func (m *material) Zero() {
	clear(m.key[:])
}

// IsZero reports whether the key is all zero bytes, e.g. after [material.Zero].
func (m material) IsZero() bool {
	var empty [KeySize]byte
	return subtle.ConstantTimeCompare(m.key[:], empty[:]) == 1
}

func (m material) String() string   { return redacted }
func (m material) GoString() string { return redacted }

// Format keeps %v, %x, %s and friends from leaking key bytes.
func (m material) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, redacted)
}

// MarshalJSON emits a placeholder; raw keys are only ever persisted wrapped.
func (m material) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (m material) equal(o material) bool {
	return subtle.ConstantTimeCompare(m.key[:], o.key[:]) == 1
}

// MasterKey is the root of the hierarchy, stretched from a passphrase with
// Argon2id. It only lives in memory.
type MasterKey struct{ material }

// MasterKeyFromBytes wraps existing key material.
func MasterKeyFromBytes(b []byte) (MasterKey, error) {
	m, err := materialFromBytes(b)
	return MasterKey{m}, err
}

// Equal compares two keys in constant time.
func (k MasterKey) Equal(o MasterKey) bool { return k.equal(o.material) }

// DeviceKey binds a [MasterKey] to one device identifier. It wraps the
// device's [Kek] and encrypts the key database at rest.
type DeviceKey struct{ material }

// DeviceKeyFromBytes wraps existing key material.
func DeviceKeyFromBytes(b []byte) (DeviceKey, error) {
	m, err := materialFromBytes(b)
	return DeviceKey{m}, err
}

// Equal compares two keys in constant time.
func (k DeviceKey) Equal(o DeviceKey) bool { return k.equal(o.material) }

// DeriveDeviceKey expands master with HKDF-SHA256, using the device id as
// context. Different device ids yield unlinkable keys.
func DeriveDeviceKey(master MasterKey, deviceID string) (DeviceKey, error) {
	r := hkdf.New(sha256.New, master.key[:], nil, []byte(deviceKeyInfo+deviceID))

	var dk DeviceKey
	if _, err := io.ReadFull(r, dk.key[:]); err != nil {
		return DeviceKey{}, fmt.Errorf("%w: hkdf expand: %w", ErrDerivationFailed, err)
	}
	return dk, nil
}

// Kek is a random key-encryption key. Document keys are wrapped under it,
// and it is itself stored only wrapped under a [DeviceKey].
type Kek struct{ material }

// KekFromBytes wraps existing key material.
func KekFromBytes(b []byte) (Kek, error) {
	m, err := materialFromBytes(b)
	return Kek{m}, err
}

// Equal compares two keys in constant time.
func (k Kek) Equal(o Kek) bool { return k.equal(o.material) }

// DocumentKey encrypts one document's content for one epoch.
type DocumentKey struct{ material }

// DocumentKeyFromBytes wraps existing key material.
func DocumentKeyFromBytes(b []byte) (DocumentKey, error) {
	m, err := materialFromBytes(b)
	return DocumentKey{m}, err
}

// Equal compares two keys in constant time.
func (k DocumentKey) Equal(o DocumentKey) bool { return k.equal(o.material) }

func zeroBytes(b []byte) {
	clear(b)
}

// ConstantTimeEqual compares two byte slices without leaking where they
// differ.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
