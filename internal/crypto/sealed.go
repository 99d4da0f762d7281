// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/MKhiriev/sovereign-keyring/internal/utils"
)

// Sealed is an AEAD ciphertext together with its nonce. It is the at-rest
// form of every structure the keyring stores whole: keystroke references,
// canary phrases and the guardian registry.
type Sealed struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      Nonce  `json:"nonce"`
}

// SealJSON marshals v to JSON and encrypts it under key.
func (k *KeyChain) SealJSON(v any, key []byte) (Sealed, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return Sealed{}, fmt.Errorf("%w: marshal data: %w", ErrSerialization, err)
	}
	defer zeroBytes(plaintext)

	ct, nonce, err := k.Encrypt(plaintext, key)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{Ciphertext: ct, Nonce: nonce}, nil
}

// OpenJSON decrypts s under key and unmarshals the JSON into target, which
// must be a non-nil pointer as for [encoding/json.Unmarshal].
func OpenJSON(s Sealed, key []byte, target any) error {
	plaintext, err := Decrypt(s.Ciphertext, s.Nonce, key)
	if err != nil {
		return err
	}
	defer zeroBytes(plaintext)

	if err = json.Unmarshal(plaintext, target); err != nil {
		return fmt.Errorf("%w: unmarshal data: %w", ErrSerialization, err)
	}
	return nil
}

// Save writes s as JSON with mode 0600.
func (s Sealed) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode sealed file: %w", ErrSerialization, err)
	}
	if err = utils.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: write sealed file: %w", ErrIO, err)
	}
	return nil
}

// LoadSealed reads a file written by [Sealed.Save].
func LoadSealed(path string) (Sealed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sealed{}, fmt.Errorf("%w: read sealed file: %w", ErrIO, err)
	}

	var s Sealed
	if err = json.Unmarshal(data, &s); err != nil {
		return Sealed{}, fmt.Errorf("%w: decode sealed file: %w", ErrSerialization, err)
	}
	return s, nil
}
