// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"path/filepath"
	"time"

	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
)

// Well-known file names inside [Storage.DataDir].
const (
	AuthFile           = "auth.json"
	PrimaryKeyDBFile   = "keys.db"
	DuressKeyDBFile    = "keys.duress.db"
	CanaryFile         = "canary.json"
	KeystrokeFile      = "keystroke.json"
	GuardiansFile      = "guardians.json"
	DeviceIDFile       = "device-id"
	SaltFile           = "salt"
	RecoveryDBFile     = "recovery.db"
	LockoutFile        = "lockout.json"
	LogFile            = "keyring.log"
	defaultDataDirName = ".sovereign-keyring"
)

// StructuredConfig is the top-level configuration container for the
// keyring. It is populated by merging command-line flags, environment
// variables (prefixed with KEYRING_), an optional JSON file and built-in
// defaults.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env:       direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Crypto holds the Argon2id parameters for new master keys.
	Crypto Crypto `envPrefix:"CRYPTO_"`

	// Storage holds the on-disk locations of every keyring file.
	Storage Storage `envPrefix:"STORAGE_"`

	// Security holds login lockout, keystroke and rotation policy.
	Security Security `envPrefix:"SECURITY_"`

	// Recovery holds defaults for new guardian recovery requests.
	Recovery Recovery `envPrefix:"RECOVERY_"`

	// Workers holds configuration for background workers.
	Workers Workers `envPrefix:"WORKERS_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// Env: KEYRING_CONFIG, flag: -config.
	JSONFilePath string `env:"CONFIG"`
}

// Crypto holds Argon2id tuning parameters.
type Crypto struct {
	// Env: KEYRING_CRYPTO_KDF_TIME
	KDFTime uint32 `env:"KDF_TIME"`
	// Env: KEYRING_CRYPTO_KDF_MEMORY_KIB
	KDFMemoryKiB uint32 `env:"KDF_MEMORY_KIB"`
	// Env: KEYRING_CRYPTO_KDF_THREADS
	KDFThreads uint8 `env:"KDF_THREADS"`
}

// KDFParams converts the group into [crypto.KDFParams].
func (c Crypto) KDFParams() crypto.KDFParams {
	return crypto.KDFParams{
		Time:      c.KDFTime,
		MemoryKiB: c.KDFMemoryKiB,
		Threads:   c.KDFThreads,
	}
}

// Storage groups the locations of keyring state.
type Storage struct {
	// DataDir is the directory holding the auth store, key databases and
	// sealed side files.
	// Env: KEYRING_STORAGE_DATA_DIR
	DataDir string `env:"DATA_DIR"`

	// DB holds the SQLite database used for recovery requests.
	DB DB `envPrefix:"DB_"`
}

// Path returns name joined onto DataDir.
func (s Storage) Path(name string) string {
	return filepath.Join(s.DataDir, name)
}

// DB holds connection settings for the recovery request database.
type DB struct {
	// DSN is the SQLite file path or URI. Defaults to recovery.db inside
	// DataDir.
	// Env: KEYRING_STORAGE_DB_DSN
	DSN string `env:"DSN"`
}

// Security holds authentication and key hygiene policy.
type Security struct {
	// MaxLoginAttempts is the number of consecutive failed unlocks before
	// the keyring locks out.
	// Env: KEYRING_SECURITY_MAX_LOGIN_ATTEMPTS
	MaxLoginAttempts int `env:"MAX_LOGIN_ATTEMPTS"`

	// LockoutDuration is how long unlock is refused after lockout.
	// Env: KEYRING_SECURITY_LOCKOUT_DURATION
	LockoutDuration time.Duration `env:"LOCKOUT_DURATION"`

	// KeystrokeEnabled requires a matching typing rhythm on unlock once a
	// keystroke reference is enrolled.
	// Env: KEYRING_SECURITY_KEYSTROKE_ENABLED
	KeystrokeEnabled bool `env:"KEYSTROKE_ENABLED"`

	// KeystrokeReauth is the idle time after which the typing rhythm is
	// checked again.
	// Env: KEYRING_SECURITY_KEYSTROKE_REAUTH
	KeystrokeReauth time.Duration `env:"KEYSTROKE_REAUTH"`

	// KeyRotationAge is the age after which a document key should be
	// rotated.
	// Env: KEYRING_SECURITY_KEY_ROTATION_AGE
	KeyRotationAge time.Duration `env:"KEY_ROTATION_AGE"`

	// KeyRotationCommits is the number of encryptions after which a
	// document key should be rotated.
	// Env: KEYRING_SECURITY_KEY_ROTATION_COMMITS
	KeyRotationCommits int `env:"KEY_ROTATION_COMMITS"`

	// AllowAdminOverride permits skipping the recovery waiting period with
	// an audited override.
	// Env: KEYRING_SECURITY_ALLOW_ADMIN_OVERRIDE
	AllowAdminOverride bool `env:"ALLOW_ADMIN_OVERRIDE"`
}

// Recovery holds defaults for guardian recovery requests.
type Recovery struct {
	// Env: KEYRING_RECOVERY_WAITING_PERIOD
	WaitingPeriod time.Duration `env:"WAITING_PERIOD"`
	// Env: KEYRING_RECOVERY_THRESHOLD
	Threshold int `env:"THRESHOLD"`
}

// Workers holds configuration for background workers.
type Workers struct {
	// RecoveryPollInterval is how often pending recovery requests are
	// checked for an elapsed waiting period.
	// Env: KEYRING_WORKERS_RECOVERY_POLL_INTERVAL
	RecoveryPollInterval time.Duration `env:"RECOVERY_POLL_INTERVAL"`
}

// Load assembles the configuration. flags is the struct bound by
// [NewFlagSet] after the command line was parsed; it may be nil. Sources
// are merged in priority order (first non-zero value wins):
//  1. Command-line flags
//  2. Environment variables
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
func Load(flags *StructuredConfig) (*StructuredConfig, error) {
	return newConfigBuilder().
		withFlags(flags).
		withEnv().
		withJSON().
		withDefaults().
		build()
}
