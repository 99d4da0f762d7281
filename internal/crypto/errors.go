// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import "errors"

// Sentinel errors shared by every layer of the key hierarchy. Callers should
// match them with [errors.Is]; the returned errors are frequently wrapped
// with additional context.
var (
	// ErrEncryptionFailed is returned when sealing a buffer fails, which in
	// practice means the random source could not supply a nonce.
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrDecryptionFailed is returned when an AEAD tag does not verify:
	// wrong key, truncated or tampered ciphertext. No plaintext is ever
	// returned alongside it.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrDerivationFailed is returned when a key derivation function cannot
	// produce output (empty salt, invalid parameters, HKDF exhaustion).
	ErrDerivationFailed = errors.New("key derivation failed")

	// ErrInvalidKeyLength is returned when key material is not exactly
	// [KeySize] bytes.
	ErrInvalidKeyLength = errors.New("invalid key length")

	// ErrInvalidNonceLength is returned when a serialized nonce is not
	// exactly [NonceSize] bytes.
	ErrInvalidNonceLength = errors.New("invalid nonce length")

	// ErrIO is returned when a key storage file cannot be read or written,
	// or is too short to contain a nonce. A missing file additionally
	// matches [io/fs.ErrNotExist].
	ErrIO = errors.New("key storage i/o error")

	// ErrSerialization is returned when decrypted or on-disk data cannot be
	// encoded or decoded.
	ErrSerialization = errors.New("serialization error")
)
