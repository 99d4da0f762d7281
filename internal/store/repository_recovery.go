// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/sovereign-keyring/internal/logger"
	"github.com/MKhiriev/sovereign-keyring/internal/recovery"
)

// recoveryRepository is the SQLite-backed implementation of
// [RecoveryRepository]. The whole request is stored as a JSON payload;
// state and waiting_period_ends are duplicated into columns so the
// watcher can filter without decoding every row.
type recoveryRepository struct {
	*DB
	logger *logger.Logger
	now    func() time.Time
}

// NewRecoveryRepository constructs a [RecoveryRepository] backed by db.
func NewRecoveryRepository(db *DB, logger *logger.Logger) RecoveryRepository {
	return &recoveryRepository{
		DB:     db,
		logger: logger,
		now:    time.Now,
	}
}

// SaveRecoveryRequest upserts req.
func (r *recoveryRepository) SaveRecoveryRequest(ctx context.Context, req *recovery.Request) error {
	log := logger.FromContext(ctx)

	payload, err := json.Marshal(req)
	if err != nil {
		log.Err(err).
			Str("func", "recoveryRepository.SaveRecoveryRequest").
			Str("request_id", req.RequestID).
			Msg("failed to encode recovery request")
		return fmt.Errorf("%w: %w", ErrEncodingPayload, err)
	}

	_, err = r.DB.ExecContext(ctx, saveRecoveryRequest,
		req.RequestID,
		req.State.String(),
		req.WaitingPeriodEnds.UnixMilli(),
		string(payload),
		r.now().UnixMilli(),
	)
	if err != nil {
		log.Err(err).
			Str("func", "recoveryRepository.SaveRecoveryRequest").
			Str("request_id", req.RequestID).
			Str("state", req.State.String()).
			Msg("failed to save recovery request")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return nil
}

// GetRecoveryRequest loads one request by id.
func (r *recoveryRepository) GetRecoveryRequest(ctx context.Context, requestID string) (*recovery.Request, error) {
	log := logger.FromContext(ctx)

	var payload string
	err := r.DB.QueryRowContext(ctx, getRecoveryRequest, requestID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecoveryRequestNotFound
	}
	if err != nil {
		log.Err(err).
			Str("func", "recoveryRepository.GetRecoveryRequest").
			Str("request_id", requestID).
			Msg("failed to scan recovery request row")
		return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	req, err := decodeRecoveryRequest(payload)
	if err != nil {
		log.Err(err).
			Str("func", "recoveryRepository.GetRecoveryRequest").
			Str("request_id", requestID).
			Msg("failed to decode recovery request")
		return nil, err
	}

	return req, nil
}

// ListRecoveryRequests returns the requests in any of states.
func (r *recoveryRepository) ListRecoveryRequests(ctx context.Context, states ...recovery.State) ([]*recovery.Request, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildListRecoveryRequestsQuery(states...)
	if err != nil {
		log.Err(err).
			Str("func", "recoveryRepository.ListRecoveryRequests").
			Msg("failed to create query")
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).
			Str("func", "recoveryRepository.ListRecoveryRequests").
			Int("states count", len(states)).
			Msg("failed to execute query for listing recovery requests")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	results := make([]*recovery.Request, 0, 8)

	for rows.Next() {
		var payload string
		if scanErr := rows.Scan(&payload); scanErr != nil {
			log.Err(scanErr).
				Str("func", "recoveryRepository.ListRecoveryRequests").
				Msg("failed to scan recovery request row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}

		req, decodeErr := decodeRecoveryRequest(payload)
		if decodeErr != nil {
			log.Err(decodeErr).
				Str("func", "recoveryRepository.ListRecoveryRequests").
				Msg("failed to decode recovery request")
			return nil, decodeErr
		}

		results = append(results, req)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).
			Str("func", "recoveryRepository.ListRecoveryRequests").
			Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return results, nil
}

// DeleteRecoveryRequest removes one request by id.
func (r *recoveryRepository) DeleteRecoveryRequest(ctx context.Context, requestID string) error {
	log := logger.FromContext(ctx)

	res, err := r.DB.ExecContext(ctx, deleteRecoveryRequest, requestID)
	if err != nil {
		log.Err(err).
			Str("func", "recoveryRepository.DeleteRecoveryRequest").
			Str("request_id", requestID).
			Msg("failed to delete recovery request")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected == 0 {
		return ErrRecoveryRequestNotFound
	}

	return nil
}

func decodeRecoveryRequest(payload string) (*recovery.Request, error) {
	var req recovery.Request
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodingPayload, err)
	}
	return &req, nil
}
