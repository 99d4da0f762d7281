// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] for JSON files, with
// durations written as strings such as "72h".
type StructuredJSONConfig struct {
	Crypto struct {
		KDFTime      uint32 `json:"kdf_time"`
		KDFMemoryKiB uint32 `json:"kdf_memory_kib"`
		KDFThreads   uint8  `json:"kdf_threads"`
	} `json:"crypto,omitempty"`

	Storage struct {
		DataDir string `json:"data_dir"`
		DB      struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`
	} `json:"storage,omitempty"`

	Security struct {
		MaxLoginAttempts   int      `json:"max_login_attempts"`
		LockoutDuration    Duration `json:"lockout_duration"`
		KeystrokeEnabled   bool     `json:"keystroke_enabled"`
		KeystrokeReauth    Duration `json:"keystroke_reauth"`
		KeyRotationAge     Duration `json:"key_rotation_age"`
		KeyRotationCommits int      `json:"key_rotation_commits"`
		AllowAdminOverride bool     `json:"allow_admin_override"`
	} `json:"security,omitempty"`

	Recovery struct {
		WaitingPeriod Duration `json:"waiting_period"`
		Threshold     int      `json:"threshold"`
	} `json:"recovery,omitempty"`

	Workers struct {
		RecoveryPollInterval Duration `json:"recovery_poll_interval"`
	} `json:"workers,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		Crypto: Crypto{
			KDFTime:      jsonCfg.Crypto.KDFTime,
			KDFMemoryKiB: jsonCfg.Crypto.KDFMemoryKiB,
			KDFThreads:   jsonCfg.Crypto.KDFThreads,
		},
		Storage: Storage{
			DataDir: jsonCfg.Storage.DataDir,
			DB: DB{
				DSN: jsonCfg.Storage.DB.DSN,
			},
		},
		Security: Security{
			MaxLoginAttempts:   jsonCfg.Security.MaxLoginAttempts,
			LockoutDuration:    time.Duration(jsonCfg.Security.LockoutDuration),
			KeystrokeEnabled:   jsonCfg.Security.KeystrokeEnabled,
			KeystrokeReauth:    time.Duration(jsonCfg.Security.KeystrokeReauth),
			KeyRotationAge:     time.Duration(jsonCfg.Security.KeyRotationAge),
			KeyRotationCommits: jsonCfg.Security.KeyRotationCommits,
			AllowAdminOverride: jsonCfg.Security.AllowAdminOverride,
		},
		Recovery: Recovery{
			WaitingPeriod: time.Duration(jsonCfg.Recovery.WaitingPeriod),
			Threshold:     jsonCfg.Recovery.Threshold,
		},
		Workers: Workers{
			RecoveryPollInterval: time.Duration(jsonCfg.Workers.RecoveryPollInterval),
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
