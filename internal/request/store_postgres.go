package request

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gridconsent/internal/party"
	"gridconsent/pkg/platform/sentinel"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so the store can run standalone or
// inside an enclosing transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists authorization requests in PostgreSQL. The ordered
// property list is stored as a jsonb array to keep submission order.
type PostgresStore struct {
	db DBTX
}

// NewPostgres constructs a PostgreSQL-backed request store.
func NewPostgres(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, r *AuthorizationRequest) error {
	props, err := json.Marshal(r.Properties)
	if err != nil {
		return fmt.Errorf("marshal request properties: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO authorization_requests
			(id, type, status, requested_by, requested_from, requested_to,
			 approved_by, valid_to, created_at, updated_at, properties)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT DO NOTHING`,
		string(r.ID), string(r.Type), string(r.Status),
		string(r.RequestedBy), string(r.RequestedFrom), string(r.RequestedTo),
		nullPartyID(r.ApprovedBy), r.ValidTo, r.CreatedAt, r.UpdatedAt, props)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert request rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id ID) (*AuthorizationRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, status, requested_by, requested_from, requested_to,
		       approved_by, valid_to, created_at, updated_at, properties
		FROM authorization_requests
		WHERE id = $1`,
		string(id))

	var r AuthorizationRequest
	var rid, typ, status, by, from, to string
	var approvedBy sql.NullString
	var props []byte
	err := row.Scan(&rid, &typ, &status, &by, &from, &to,
		&approvedBy, &r.ValidTo, &r.CreatedAt, &r.UpdatedAt, &props)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find request by id: %w", err)
	}

	r.ID = ID(rid)
	r.Type = Type(typ)
	r.Status = Status(status)
	r.RequestedBy = party.ID(by)
	r.RequestedFrom = party.ID(from)
	r.RequestedTo = party.ID(to)
	if approvedBy.Valid {
		approver := party.ID(approvedBy.String)
		r.ApprovedBy = &approver
	}
	if len(props) > 0 {
		if err := json.Unmarshal(props, &r.Properties); err != nil {
			return nil, fmt.Errorf("unmarshal request properties: %w", err)
		}
	}
	return &r, nil
}

// Update writes the decision with a state predicate: only a Pending row may
// leave Pending. Two concurrent deciders therefore cannot both succeed; the
// loser's update matches zero rows and surfaces ErrInvalidState.
func (s *PostgresStore) Update(ctx context.Context, r *AuthorizationRequest) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE authorization_requests
		SET status = $2, approved_by = $3, updated_at = $4
		WHERE id = $1 AND status = $5`,
		string(r.ID), string(r.Status), nullPartyID(r.ApprovedBy), r.UpdatedAt,
		string(StatusPending))
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) ExpireOverdue(ctx context.Context, now time.Time) ([]ID, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE authorization_requests
		SET status = $1, updated_at = $2
		WHERE status = $3 AND valid_to < $2
		RETURNING id`,
		string(StatusExpired), now, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("expire overdue requests: %w", err)
	}
	defer rows.Close()

	var ids []ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired request id: %w", err)
		}
		ids = append(ids, ID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired request ids: %w", err)
	}
	return ids, nil
}

func nullPartyID(id *party.ID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}
