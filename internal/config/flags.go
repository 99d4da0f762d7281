// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"flag"
	"fmt"
	"strconv"
)

// NewFlagSet returns a flag set whose values are bound into the returned
// config. Parse the set (directly or through a command framework that
// adopts Go flag sets), then pass the config to [Load].
//
// Flags:
//
//	-config            JSON file path with configs
//	-data-dir          keyring data directory
//	-dsn               recovery database DSN
//	-kdf-time          Argon2id iterations
//	-kdf-memory        Argon2id memory in KiB
//	-kdf-threads       Argon2id parallelism
//	-max-attempts      failed unlocks before lockout
//	-lockout           lockout duration (e.g. "5m")
//	-keystroke         require a typing rhythm match on unlock
//	-waiting-period    recovery waiting period (e.g. "72h")
//	-threshold         default recovery guardian threshold
//	-allow-override    permit admin override of the waiting period
//	-poll-interval     recovery watcher poll interval
func NewFlagSet(name string) (*flag.FlagSet, *StructuredConfig) {
	cfg := &StructuredConfig{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	fs.StringVar(&cfg.JSONFilePath, "config", "", "JSON config file path")
	fs.StringVar(&cfg.Storage.DataDir, "data-dir", "", "Keyring data directory")
	fs.StringVar(&cfg.Storage.DB.DSN, "dsn", "", "Recovery database DSN")

	fs.Func("kdf-time", "Argon2id iterations", func(s string) error {
		v, err := parseUint(s, 32)
		cfg.Crypto.KDFTime = uint32(v)
		return err
	})
	fs.Func("kdf-memory", "Argon2id memory in KiB", func(s string) error {
		v, err := parseUint(s, 32)
		cfg.Crypto.KDFMemoryKiB = uint32(v)
		return err
	})
	fs.Func("kdf-threads", "Argon2id parallelism", func(s string) error {
		v, err := parseUint(s, 8)
		cfg.Crypto.KDFThreads = uint8(v)
		return err
	})

	fs.IntVar(&cfg.Security.MaxLoginAttempts, "max-attempts", 0, "Failed unlocks before lockout")
	fs.DurationVar(&cfg.Security.LockoutDuration, "lockout", 0, "Lockout duration (e.g., 5m)")
	fs.BoolVar(&cfg.Security.KeystrokeEnabled, "keystroke", false, "Require typing rhythm match on unlock")
	fs.BoolVar(&cfg.Security.AllowAdminOverride, "allow-override", false, "Permit admin override of the recovery waiting period")

	fs.DurationVar(&cfg.Recovery.WaitingPeriod, "waiting-period", 0, "Recovery waiting period (e.g., 72h)")
	fs.IntVar(&cfg.Recovery.Threshold, "threshold", 0, "Default recovery guardian threshold")

	fs.DurationVar(&cfg.Workers.RecoveryPollInterval, "poll-interval", 0, "Recovery watcher poll interval (e.g., 1m)")

	return fs, cfg
}

func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("need an unsigned %d-bit integer: %w", bits, err)
	}
	return v, nil
}
