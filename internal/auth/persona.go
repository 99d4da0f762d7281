// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package auth

import (
	"encoding/hex"
	"fmt"

	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
)

// Persona identifies which of the two identities a passphrase unlocked.
type Persona int

const (
	// Primary is the owner's real vault.
	Primary Persona = iota
	// Duress is the decoy vault opened under coercion.
	Duress
)

func (p Persona) String() string {
	switch p {
	case Primary:
		return "primary"
	case Duress:
		return "duress"
	default:
		return fmt.Sprintf("persona(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Persona) MarshalText() ([]byte, error) {
	switch p {
	case Primary, Duress:
		return []byte(p.String()), nil
	default:
		return nil, fmt.Errorf("%w: unknown persona %d", crypto.ErrSerialization, int(p))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Persona) UnmarshalText(text []byte) error {
	switch string(text) {
	case "primary":
		*p = Primary
	case "duress":
		*p = Duress
	default:
		return fmt.Errorf("%w: unknown persona %q", crypto.ErrSerialization, text)
	}
	return nil
}

// LabelSize is the length of the random filler label carried by each entry.
const LabelSize = 16

// Label is random filler that keeps the two entries from differing in
// anything but ciphertext. It encodes as hex.
type Label [LabelSize]byte

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(LabelSize))
	hex.Encode(out, l[:])
	return out, nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != LabelSize {
		return fmt.Errorf("%w: label must be %d bytes", crypto.ErrSerialization, LabelSize)
	}
	if _, err := hex.Decode(l[:], text); err != nil {
		return fmt.Errorf("%w: decode label: %w", crypto.ErrSerialization, err)
	}
	return nil
}

// PersonaEntry is one slot of an [AuthStore]. It deliberately carries no
// persona field: which persona an entry belongs to is only learned by
// decrypting its probe.
type PersonaEntry struct {
	Label      Label             `json:"label"`
	WrappedKek crypto.WrappedKek `json:"wrapped_kek"`
	Probe      []byte            `json:"probe_ciphertext"`
	ProbeNonce crypto.Nonce      `json:"probe_nonce"`
}

// probeSize keeps both probe plaintexts, and therefore both probe
// ciphertexts, the same length.
const probeSize = 48

var (
	primaryProbe = probeTag("primary")
	duressProbe  = probeTag("duress")
)

func probeTag(name string) []byte {
	tag := make([]byte, probeSize)
	copy(tag, "sovereign-keyring/probe/v1:"+name)
	return tag
}

func (p Persona) probe() []byte {
	if p == Duress {
		return duressProbe
	}
	return primaryProbe
}

// personaForProbe maps a decrypted probe back to its persona.
func personaForProbe(plaintext []byte) (Persona, bool) {
	switch {
	case crypto.ConstantTimeEqual(plaintext, primaryProbe):
		return Primary, true
	case crypto.ConstantTimeEqual(plaintext, duressProbe):
		return Duress, true
	default:
		return 0, false
	}
}
