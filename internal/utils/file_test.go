// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic_CreatesParentsAndWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "keys.db")

	require.NoError(t, WriteFileAtomic(path, []byte("payload"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestWriteFileAtomic_OverwritesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.json")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0o600))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUUIDGenerator_Generate_Distinct(t *testing.T) {
	g := NewUUIDGenerator()
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("guardian-1", "peer")
	assert.Len(t, a, 32)
	assert.Equal(t, a, Fingerprint("guardian-1", "peer"))
	assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
}
