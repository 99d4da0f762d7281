// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
	"github.com/MKhiriev/sovereign-keyring/internal/utils"
)

// AuthStore holds two indistinguishable persona entries, each unlocked by
// its own passphrase. None of its fields are secret on their own; secrecy
// lives in the probe ciphertexts and wrapped KEKs.
type AuthStore struct {
	Salt     []byte           `json:"salt"`
	DeviceID string           `json:"device_id"`
	KDF      crypto.KDFParams `json:"kdf"`
	Personas []PersonaEntry   `json:"personas"`
}

// AuthSuccess is the result of a successful [AuthStore.Authenticate]. The
// caller owns the keys and should Zero them when the session ends.
type AuthSuccess struct {
	Persona   Persona
	DeviceKey crypto.DeviceKey
	Kek       crypto.Kek
}

// Zero scrubs the unlocked key material.
func (s *AuthSuccess) Zero() {
	s.DeviceKey.Zero()
	s.Kek.Zero()
}

// Create builds a store for the two passphrases. Each persona gets its own
// master key, device key and independently generated KEK; the entries are
// then stored in a random order so position never reveals the persona.
//
// Create runs the memory-hard KDF twice.
func Create(kc *crypto.KeyChain, primaryPassphrase, duressPassphrase, salt []byte, deviceID string) (*AuthStore, error) {
	primary, err := newPersonaEntry(kc, Primary, primaryPassphrase, salt, deviceID)
	if err != nil {
		return nil, fmt.Errorf("create primary persona: %w", err)
	}
	duress, err := newPersonaEntry(kc, Duress, duressPassphrase, salt, deviceID)
	if err != nil {
		return nil, fmt.Errorf("create duress persona: %w", err)
	}

	entries := []PersonaEntry{primary, duress}
	swap, err := kc.FlipCoin()
	if err != nil {
		return nil, fmt.Errorf("shuffle personas: %w", err)
	}
	if swap {
		entries[0], entries[1] = entries[1], entries[0]
	}

	return &AuthStore{
		Salt:     append([]byte(nil), salt...),
		DeviceID: deviceID,
		KDF:      kc.KDFParams(),
		Personas: entries,
	}, nil
}

func newPersonaEntry(kc *crypto.KeyChain, p Persona, passphrase, salt []byte, deviceID string) (PersonaEntry, error) {
	mk, err := kc.DeriveMasterKey(passphrase, salt)
	if err != nil {
		return PersonaEntry{}, err
	}
	defer mk.Zero()

	dk, err := crypto.DeriveDeviceKey(mk, deviceID)
	if err != nil {
		return PersonaEntry{}, err
	}
	defer dk.Zero()

	kek, err := kc.GenerateKek()
	if err != nil {
		return PersonaEntry{}, err
	}
	defer kek.Zero()

	wrapped, err := kc.WrapKek(kek, dk)
	if err != nil {
		return PersonaEntry{}, err
	}

	raw := dk.Bytes()
	defer clear(raw)
	probe, nonce, err := kc.Encrypt(p.probe(), raw)
	if err != nil {
		return PersonaEntry{}, fmt.Errorf("encrypt probe: %w", err)
	}

	labelBytes, err := kc.RandomBytes(LabelSize)
	if err != nil {
		return PersonaEntry{}, err
	}
	var label Label
	copy(label[:], labelBytes)

	return PersonaEntry{
		Label:      label,
		WrappedKek: wrapped,
		Probe:      probe,
		ProbeNonce: nonce,
	}, nil
}

// Authenticate derives the device key for passphrase and identifies the
// persona it opens. Every stored probe is attempted, in stored order, and
// the first one that decrypts to a known tag wins; its wrapped KEK is then
// unwrapped. Any failure is reported as [ErrAuthenticationFailed].
//
// Authenticate runs the memory-hard KDF once.
func (s *AuthStore) Authenticate(passphrase []byte) (*AuthSuccess, error) {
	params := s.KDF
	if params.IsZero() {
		params = crypto.DefaultKDFParams()
	}

	mk, err := crypto.DeriveMasterKeyWithParams(passphrase, s.Salt, params)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	defer mk.Zero()

	dk, err := crypto.DeriveDeviceKey(mk, s.DeviceID)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	raw := dk.Bytes()
	defer clear(raw)

	// All entries are tried so the amount of work does not depend on
	// which slot matched.
	match := -1
	var persona Persona
	for i, entry := range s.Personas {
		plaintext, err := crypto.Decrypt(entry.Probe, entry.ProbeNonce, raw)
		if err != nil {
			continue
		}
		p, ok := personaForProbe(plaintext)
		if ok && match < 0 {
			match, persona = i, p
		}
	}
	if match < 0 {
		dk.Zero()
		return nil, ErrAuthenticationFailed
	}

	kek, err := crypto.UnwrapKek(s.Personas[match].WrappedKek, dk)
	if err != nil {
		dk.Zero()
		return nil, ErrAuthenticationFailed
	}

	return &AuthSuccess{Persona: persona, DeviceKey: dk, Kek: kek}, nil
}

// Save writes the store as indented JSON with mode 0600, creating parent
// directories as needed.
func (s *AuthStore) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode auth store: %w", crypto.ErrSerialization, err)
	}
	if err = utils.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: write auth store: %w", crypto.ErrIO, err)
	}
	return nil
}

// Load reads a store written by [AuthStore.Save]. It performs no
// decryption. A missing file matches both [crypto.ErrIO] and
// [os.ErrNotExist].
func Load(path string) (*AuthStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read auth store: %w", crypto.ErrIO, err)
	}

	var s AuthStore
	if err = json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: decode auth store: %w", crypto.ErrSerialization, err)
	}
	if err = s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *AuthStore) validate() error {
	if len(s.Personas) != 2 {
		return fmt.Errorf("%w: auth store must hold exactly 2 personas, found %d", crypto.ErrSerialization, len(s.Personas))
	}
	if len(s.Salt) == 0 {
		return fmt.Errorf("%w: auth store has no salt", crypto.ErrSerialization)
	}
	if s.DeviceID == "" {
		return fmt.Errorf("%w: auth store has no device id", crypto.ErrSerialization)
	}
	return nil
}

// IsNotExist reports whether err means the store file has not been created
// yet.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
