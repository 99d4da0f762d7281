// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"fmt"

	"github.com/MKhiriev/sovereign-keyring/internal/config"
	"github.com/MKhiriev/sovereign-keyring/internal/logger"
)

// Repositories groups every repository over one database connection.
type Repositories struct {
	RecoveryRepository RecoveryRepository

	db *DB
}

// NewRepositories connects to the database configured in cfg, applies
// migrations and builds the repositories.
func NewRepositories(ctx context.Context, cfg config.DB, log *logger.Logger) (*Repositories, error) {
	db, err := NewConnectSQLite(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if err = db.Migrate(); err != nil {
		db.Close()
		log.Err(err).Str("func", "NewRepositories").Msg("failed to migrate database")
		return nil, fmt.Errorf("migrate recovery database: %w", err)
	}

	return &Repositories{
		RecoveryRepository: NewRecoveryRepository(db, log),
		db:                 db,
	}, nil
}

// Close releases the database connection.
func (r *Repositories) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
