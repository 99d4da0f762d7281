// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/MKhiriev/sovereign-keyring/internal/recovery"
)

const (
	saveRecoveryRequest = `
		INSERT INTO recovery_requests (
			request_id,
			state,
			waiting_period_ends,
			payload,
			updated_at
		) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (request_id) DO UPDATE SET
			state = excluded.state,
			waiting_period_ends = excluded.waiting_period_ends,
			payload = excluded.payload,
			updated_at = excluded.updated_at;`

	getRecoveryRequest = `
		SELECT payload
		FROM recovery_requests
		WHERE request_id = ?;`

	deleteRecoveryRequest = `
		DELETE FROM recovery_requests
		WHERE request_id = ?;`
)

var sqlite = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// buildListRecoveryRequestsQuery selects payloads, optionally filtered to
// states, oldest waiting period first.
func buildListRecoveryRequestsQuery(states ...recovery.State) (string, []any, error) {
	query := sqlite.
		Select("payload").
		From("recovery_requests").
		OrderBy("waiting_period_ends", "request_id")

	if len(states) > 0 {
		names := make([]string, 0, len(states))
		for _, s := range states {
			names = append(names, s.String())
		}
		query = query.Where(sq.Eq{"state": names})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	return sql, args, nil
}
