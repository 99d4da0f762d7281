// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"encoding/base64"
	"fmt"
)

// Nonce is an XChaCha20-Poly1305 nonce. It encodes as standard base64 in
// JSON so serialized records stay readable.
type Nonce [NonceSize]byte

// NonceFromBytes copies b into a [Nonce], rejecting any other length.
func NonceFromBytes(b []byte) (Nonce, error) {
	var n Nonce
	if len(b) != NonceSize {
		return n, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidNonceLength, len(b), NonceSize)
	}
	copy(n[:], b)
	return n, nil
}

// MarshalText implements encoding.TextMarshaler.
func (n Nonce) MarshalText() ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(NonceSize))
	base64.StdEncoding.Encode(out, n[:])
	return out, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Nonce) UnmarshalText(text []byte) error {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	size, err := base64.StdEncoding.Decode(raw, text)
	if err != nil {
		return fmt.Errorf("%w: decode nonce: %w", ErrSerialization, err)
	}
	parsed, err := NonceFromBytes(raw[:size])
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
