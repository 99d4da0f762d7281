// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import "fmt"

// WrappedKek is a [Kek] sealed under a [DeviceKey].
type WrappedKek struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      Nonce  `json:"nonce"`
}

// WrappedDocumentKey is a [DocumentKey] sealed under a [Kek] and tagged with
// the rotation epoch it belongs to.
type WrappedDocumentKey struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      Nonce  `json:"nonce"`
	Epoch      uint32 `json:"epoch"`
}

// GenerateKek draws a fresh [Kek] from the keychain's random source.
func (k *KeyChain) GenerateKek() (Kek, error) {
	var kek Kek
	if err := k.fill(kek.key[:]); err != nil {
		return Kek{}, err
	}
	return kek, nil
}

// WrapKek seals kek under deviceKey.
func (k *KeyChain) WrapKek(kek Kek, deviceKey DeviceKey) (WrappedKek, error) {
	ct, nonce, err := k.Encrypt(kek.key[:], deviceKey.key[:])
	if err != nil {
		return WrappedKek{}, fmt.Errorf("wrap kek: %w", err)
	}
	return WrappedKek{Ciphertext: ct, Nonce: nonce}, nil
}

// UnwrapKek opens a [WrappedKek]. A wrong device key or tampered
// ciphertext fails with [ErrDecryptionFailed].
func UnwrapKek(wrapped WrappedKek, deviceKey DeviceKey) (Kek, error) {
	raw, err := Decrypt(wrapped.Ciphertext, wrapped.Nonce, deviceKey.key[:])
	if err != nil {
		return Kek{}, fmt.Errorf("unwrap kek: %w", err)
	}
	defer zeroBytes(raw)

	return KekFromBytes(raw)
}

// GenerateDocumentKey draws a fresh [DocumentKey] from the keychain's
// random source.
func (k *KeyChain) GenerateDocumentKey() (DocumentKey, error) {
	var dk DocumentKey
	if err := k.fill(dk.key[:]); err != nil {
		return DocumentKey{}, err
	}
	return dk, nil
}

// WrapDocumentKey seals key under kek and tags it with epoch.
func (k *KeyChain) WrapDocumentKey(key DocumentKey, kek Kek, epoch uint32) (WrappedDocumentKey, error) {
	ct, nonce, err := k.Encrypt(key.key[:], kek.key[:])
	if err != nil {
		return WrappedDocumentKey{}, fmt.Errorf("wrap document key: %w", err)
	}
	return WrappedDocumentKey{Ciphertext: ct, Nonce: nonce, Epoch: epoch}, nil
}

// UnwrapDocumentKey opens a [WrappedDocumentKey] under kek.
func UnwrapDocumentKey(wrapped WrappedDocumentKey, kek Kek) (DocumentKey, error) {
	raw, err := Decrypt(wrapped.Ciphertext, wrapped.Nonce, kek.key[:])
	if err != nil {
		return DocumentKey{}, fmt.Errorf("unwrap document key: %w", err)
	}
	defer zeroBytes(raw)

	return DocumentKeyFromBytes(raw)
}

func (k *KeyChain) fill(dst []byte) error {
	b, err := k.RandomBytes(len(dst))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	copy(dst, b)
	zeroBytes(b)
	return nil
}
