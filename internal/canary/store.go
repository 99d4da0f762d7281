// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package canary

import (
	"fmt"
	"unicode/utf8"

	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
)

// Store is the encrypted at-rest form of a canary phrase.
type Store struct {
	crypto.Sealed
}

// Seal encrypts phrase under key.
func Seal(kc *crypto.KeyChain, phrase string, key []byte) (*Store, error) {
	ct, nonce, err := kc.Encrypt([]byte(phrase), key)
	if err != nil {
		return nil, fmt.Errorf("seal canary phrase: %w", err)
	}
	return &Store{Sealed: crypto.Sealed{Ciphertext: ct, Nonce: nonce}}, nil
}

// Open decrypts the stored phrase.
func (s *Store) Open(key []byte) (string, error) {
	plaintext, err := crypto.Decrypt(s.Ciphertext, s.Nonce, key)
	if err != nil {
		return "", fmt.Errorf("open canary phrase: %w", err)
	}
	if !utf8.Valid(plaintext) {
		return "", fmt.Errorf("%w: canary phrase is not valid UTF-8", crypto.ErrSerialization)
	}
	return string(plaintext), nil
}

// Detector decrypts the phrase and returns a detector for it.
func (s *Store) Detector(key []byte) (*Detector, error) {
	phrase, err := s.Open(key)
	if err != nil {
		return nil, err
	}
	return NewDetector(phrase), nil
}

// Save writes the store to path as JSON.
func (s *Store) Save(path string) error {
	return s.Sealed.Save(path)
}

// Load reads a store written by [Store.Save].
func Load(path string) (*Store, error) {
	sealed, err := crypto.LoadSealed(path)
	if err != nil {
		return nil, err
	}
	return &Store{Sealed: sealed}, nil
}
