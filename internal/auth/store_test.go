// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package auth

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	primaryPass = "Primary!Pass1234"
	duressPass  = "Duress!Pass5678"
	deviceID    = "test-device-001"
)

var testKDF = crypto.KDFParams{Time: 1, MemoryKiB: 1024, Threads: 1}

func testSalt() []byte {
	return bytes.Repeat([]byte{0x5A}, 32)
}

func newTestStore(t *testing.T, kc *crypto.KeyChain) *AuthStore {
	t.Helper()
	if kc == nil {
		kc = crypto.NewKeyChain(crypto.WithKDFParams(testKDF))
	}
	store, err := Create(kc, []byte(primaryPass), []byte(duressPass), testSalt(), deviceID)
	require.NoError(t, err)
	return store
}

// ── Create ───────────────────────────────────────────────────────────────────

func TestCreate_Structure(t *testing.T) {
	store := newTestStore(t, nil)

	assert.Len(t, store.Personas, 2)
	assert.Equal(t, testSalt(), store.Salt)
	assert.Equal(t, deviceID, store.DeviceID)
	assert.Equal(t, testKDF, store.KDF)
	assert.NotEqual(t, store.Personas[0].Label, store.Personas[1].Label)
}

// TestCreate_ProbesAreSameSize verifies that entries differ only in
// ciphertext content, never in shape.
func TestCreate_ProbesAreSameSize(t *testing.T) {
	store := newTestStore(t, nil)

	a, b := store.Personas[0], store.Personas[1]
	assert.Equal(t, len(a.Probe), len(b.Probe))
	assert.Equal(t, len(a.WrappedKek.Ciphertext), len(b.WrappedKek.Ciphertext))
	assert.Len(t, primaryProbe, probeSize)
	assert.Len(t, duressProbe, probeSize)
}

// TestCreate_OrderIsRandomized verifies that across seeds both orderings
// of the entries occur.
func TestCreate_OrderIsRandomized(t *testing.T) {
	firstSlot := map[Persona]int{}
	for seed := byte(0); seed < 16; seed++ {
		var s [32]byte
		s[0] = seed
		kc := crypto.NewKeyChain(crypto.WithRandom(rand.NewChaCha8(s)), crypto.WithKDFParams(testKDF))
		store := newTestStore(t, kc)

		// Only the primary passphrase is needed to learn the layout.
		res, err := store.Authenticate([]byte(primaryPass))
		require.NoError(t, err)
		require.Equal(t, Primary, res.Persona)

		if opensSlot(t, store, 0, primaryPass) {
			firstSlot[Primary]++
		} else {
			firstSlot[Duress]++
		}
	}
	assert.Positive(t, firstSlot[Primary])
	assert.Positive(t, firstSlot[Duress])
}

func opensSlot(t *testing.T, store *AuthStore, slot int, pass string) bool {
	t.Helper()
	single := &AuthStore{
		Salt:     store.Salt,
		DeviceID: store.DeviceID,
		KDF:      store.KDF,
		Personas: []PersonaEntry{store.Personas[slot]},
	}
	_, err := single.Authenticate([]byte(pass))
	return err == nil
}

// ── Authenticate ─────────────────────────────────────────────────────────────

func TestAuthenticate_IdentifiesPersonas(t *testing.T) {
	store := newTestStore(t, nil)

	p, err := store.Authenticate([]byte(primaryPass))
	require.NoError(t, err)
	assert.Equal(t, Primary, p.Persona)

	d, err := store.Authenticate([]byte(duressPass))
	require.NoError(t, err)
	assert.Equal(t, Duress, d.Persona)

	assert.False(t, p.Kek.Equal(d.Kek), "personas must hold independent KEKs")
	assert.False(t, p.DeviceKey.Equal(d.DeviceKey))
}

func TestAuthenticate_IsRepeatable(t *testing.T) {
	store := newTestStore(t, nil)

	first, err := store.Authenticate([]byte(primaryPass))
	require.NoError(t, err)
	second, err := store.Authenticate([]byte(primaryPass))
	require.NoError(t, err)

	assert.True(t, first.Kek.Equal(second.Kek))
}

func TestAuthenticate_WrongPassphrase(t *testing.T) {
	store := newTestStore(t, nil)

	for _, pass := range []string{"", "WrongPassword!1", primaryPass + " ", duressPass[:len(duressPass)-1]} {
		res, err := store.Authenticate([]byte(pass))
		assert.ErrorIs(t, err, ErrAuthenticationFailed, "pass %q", pass)
		assert.Nil(t, res)
	}
}

// TestAuthenticate_TamperedKekIsUniformFailure verifies that a probe match
// with a corrupted wrapped KEK reports the same error as a wrong passphrase.
func TestAuthenticate_TamperedKekIsUniformFailure(t *testing.T) {
	store := newTestStore(t, nil)
	for i := range store.Personas {
		store.Personas[i].WrappedKek.Ciphertext[0] ^= 0xFF
	}

	_, err := store.Authenticate([]byte(primaryPass))
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestAuthenticate_TamperedProbe(t *testing.T) {
	store := newTestStore(t, nil)
	for i := range store.Personas {
		store.Personas[i].Probe[0] ^= 0xFF
	}

	_, err := store.Authenticate([]byte(duressPass))
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestAuthenticate_DifferentDeviceIDFails(t *testing.T) {
	store := newTestStore(t, nil)
	store.DeviceID = "another-device"

	_, err := store.Authenticate([]byte(primaryPass))
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestAuthSuccess_Zero(t *testing.T) {
	store := newTestStore(t, nil)
	res, err := store.Authenticate([]byte(primaryPass))
	require.NoError(t, err)

	res.Zero()
	assert.True(t, res.Kek.IsZero())
	assert.True(t, res.DeviceKey.IsZero())
}

// ── Save / Load ──────────────────────────────────────────────────────────────

func TestSaveLoad_PreservesAuthentication(t *testing.T) {
	store := newTestStore(t, nil)
	before, err := store.Authenticate([]byte(primaryPass))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "auth.json")
	require.NoError(t, store.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, store, loaded)

	p, err := loaded.Authenticate([]byte(primaryPass))
	require.NoError(t, err)
	assert.Equal(t, Primary, p.Persona)
	assert.True(t, before.Kek.Equal(p.Kek))

	d, err := loaded.Authenticate([]byte(duressPass))
	require.NoError(t, err)
	assert.Equal(t, Duress, d.Persona)

	_, err = loaded.Authenticate([]byte("nope"))
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestSave_FileDoesNotNamePersonas(t *testing.T) {
	store := newTestStore(t, nil)
	path := filepath.Join(t.TempDir(), "auth.json")
	require.NoError(t, store.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "primary")
	assert.NotContains(t, string(data), "duress")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, crypto.ErrIO)
	assert.True(t, IsNotExist(err))
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "{{{"},
		{name: "one persona", content: `{"salt":"AQID","device_id":"d","personas":[{}]}`},
		{name: "no salt", content: `{"device_id":"d","personas":[{},{}]}`},
		{name: "no device id", content: `{"salt":"AQID","personas":[{},{}]}`},
		{name: "bad nonce", content: `{"salt":"AQID","device_id":"d","personas":[{"probe_nonce":"AAAA"},{}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "auth.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := Load(path)
			require.Error(t, err)
			assert.False(t, IsNotExist(err))
		})
	}
}

func TestPersona_TextEncoding(t *testing.T) {
	data, err := json.Marshal(map[string]Persona{"a": Primary, "b": Duress})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"primary","b":"duress"}`, string(data))

	var p Persona
	require.NoError(t, p.UnmarshalText([]byte("duress")))
	assert.Equal(t, Duress, p)
	assert.ErrorIs(t, p.UnmarshalText([]byte("other")), crypto.ErrSerialization)
	assert.Equal(t, "persona(9)", Persona(9).String())
}
