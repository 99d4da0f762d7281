// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package service holds the keyring's use cases: creating and unlocking
// the two-persona auth store, encrypting documents under per-document
// keys, and driving guardian recovery requests.
package service

import (
	"github.com/MKhiriev/sovereign-keyring/internal/config"
	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
	"github.com/MKhiriev/sovereign-keyring/internal/logger"
	"github.com/MKhiriev/sovereign-keyring/internal/store"
	"github.com/MKhiriev/sovereign-keyring/internal/utils"
)

type Services struct {
	SessionService  *SessionService
	RecoveryService *RecoveryService
}

// NewServices wires the session and recovery services. Recovery requests
// started without explicit guardians use the registry of the unlocked
// session.
func NewServices(recoveries store.RecoveryRepository, cfg config.StructuredConfig, logger *logger.Logger) *Services {
	kc := crypto.NewKeyChain(crypto.WithKDFParams(cfg.Crypto.KDFParams()))
	ids := utils.NewUUIDGenerator()

	sessions := NewSessionService(kc, cfg, ids, nil, logger)
	return &Services{
		SessionService:  sessions,
		RecoveryService: NewRecoveryService(recoveries, sessions, cfg, ids, nil, logger),
	}
}
