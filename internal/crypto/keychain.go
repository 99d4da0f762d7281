// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the length in bytes of every symmetric key in the hierarchy.
	KeySize = chacha20poly1305.KeySize
	// NonceSize is the XChaCha20-Poly1305 nonce length.
	NonceSize = chacha20poly1305.NonceSizeX
)

// KDFParams holds the Argon2id tuning parameters used to derive a
// [MasterKey] from a passphrase. They are stored alongside the derived
// material so a store created on one device target (e.g. mobile vs.
// desktop) can still be opened when the defaults change.
type KDFParams struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memory_kib"`
	Threads   uint8  `json:"threads"`
}

// DefaultKDFParams returns the Argon2id parameters recommended by OWASP
// (2024):
//   - time cost:   1 iteration
//   - memory cost: 64 MiB
//   - parallelism: 4 threads
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Time:      1,
		MemoryKiB: 64 * 1024, // 64 MiB
		Threads:   4,
	}
}

// IsZero reports whether no parameter has been set.
func (p KDFParams) IsZero() bool {
	return p.Time == 0 && p.MemoryKiB == 0 && p.Threads == 0
}

func (p KDFParams) validate() error {
	if p.Time == 0 || p.MemoryKiB == 0 || p.Threads == 0 {
		return fmt.Errorf("%w: argon2 parameters must be positive", ErrDerivationFailed)
	}
	return nil
}

// KeyChain owns the two capabilities every randomized operation in the key
// hierarchy needs: a cryptographically secure random source and the
// Argon2id parameters. Operations that are deterministic (unwrapping,
// decryption, device key derivation) are plain functions and do not need a
// KeyChain.
//
// A KeyChain is safe for concurrent use as long as its random source is.
type KeyChain struct {
	rand   io.Reader
	params KDFParams
}

// Option configures a [KeyChain].
type Option func(*KeyChain)

// WithRandom replaces the random source. Tests use it to substitute a
// seeded generator; production code should keep the default
// crypto/rand.Reader.
func WithRandom(r io.Reader) Option {
	return func(k *KeyChain) {
		if r != nil {
			k.rand = r
		}
	}
}

// WithKDFParams replaces the Argon2id parameters. Zero params are ignored.
func WithKDFParams(p KDFParams) Option {
	return func(k *KeyChain) {
		if !p.IsZero() {
			k.params = p
		}
	}
}

// NewKeyChain constructs a [KeyChain] reading from crypto/rand.Reader with
// [DefaultKDFParams], then applies opts.
func NewKeyChain(opts ...Option) *KeyChain {
	k := &KeyChain{
		rand:   rand.Reader,
		params: DefaultKDFParams(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// KDFParams returns the Argon2id parameters new master keys are derived with.
func (k *KeyChain) KDFParams() KDFParams {
	return k.params
}

// RandomBytes reads n bytes from the keychain's random source.
func (k *KeyChain) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(k.rand, b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}

// FlipCoin returns an unbiased random boolean.
func (k *KeyChain) FlipCoin() (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(k.rand, b[:]); err != nil {
		return false, fmt.Errorf("read random bytes: %w", err)
	}
	return b[0]&1 == 1, nil
}

// Encrypt seals plaintext under key with XChaCha20-Poly1305 and a fresh
// random nonce. key must be exactly [KeySize] bytes.
func (k *KeyChain) Encrypt(plaintext, key []byte) ([]byte, Nonce, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, Nonce{}, err
	}

	var nonce Nonce
	if _, err := io.ReadFull(k.rand, nonce[:]); err != nil {
		return nil, Nonce{}, fmt.Errorf("%w: generate nonce: %w", ErrEncryptionFailed, err)
	}

	return aead.Seal(nil, nonce[:], plaintext, nil), nonce, nil
}

// Decrypt opens ciphertext produced by [KeyChain.Encrypt]. Any
// authentication failure (wrong key, truncation, bit flips) yields
// [ErrDecryptionFailed] and no plaintext.
func Decrypt(ciphertext []byte, nonce Nonce, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// DeriveMasterKey stretches passphrase with Argon2id over salt using the
// keychain's parameters. The call is deliberately slow and memory hungry;
// run it off latency-sensitive goroutines.
func (k *KeyChain) DeriveMasterKey(passphrase, salt []byte) (MasterKey, error) {
	return DeriveMasterKeyWithParams(passphrase, salt, k.params)
}

// DeriveMasterKeyWithParams is [KeyChain.DeriveMasterKey] with explicit
// parameters, used to re-derive keys for a store created with different
// settings.
func DeriveMasterKeyWithParams(passphrase, salt []byte, params KDFParams) (MasterKey, error) {
	if len(salt) == 0 {
		return MasterKey{}, fmt.Errorf("%w: empty salt", ErrDerivationFailed)
	}
	if err := params.validate(); err != nil {
		return MasterKey{}, err
	}

	raw := argon2.IDKey(passphrase, salt, params.Time, params.MemoryKiB, params.Threads, KeySize)
	defer zeroBytes(raw)

	var mk MasterKey
	copy(mk.key[:], raw)
	return mk, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyLength, len(key), KeySize)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyLength, err)
	}
	return aead, nil
}
