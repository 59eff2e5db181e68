package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gridconsent/internal/request"
	"gridconsent/pkg/platform/sentinel"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so the store can run standalone or
// inside an enclosing transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists signable documents in PostgreSQL.
type PostgresStore struct {
	db DBTX
}

// NewPostgres constructs a PostgreSQL-backed document store.
func NewPostgres(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert reports a duplicate request_id as ErrConflict via ON CONFLICT DO
// NOTHING, keeping the enclosing transaction usable.
func (s *PostgresStore) Insert(ctx context.Context, d *SignableDocument) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO signable_documents
			(id, request_id, title, content, signed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING`,
		string(d.ID), string(d.RequestID), d.Title, d.Content, d.Signed, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert document rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id ID) (*SignableDocument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, request_id, title, content, signed, created_at, updated_at
		FROM signable_documents
		WHERE id = $1`,
		string(id))
	return scanDocument(row, "find document by id")
}

func (s *PostgresStore) FindByRequestID(ctx context.Context, requestID request.ID) (*SignableDocument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, request_id, title, content, signed, created_at, updated_at
		FROM signable_documents
		WHERE request_id = $1`,
		string(requestID))
	return scanDocument(row, "find document by request id")
}

// Update only touches unsigned rows: a concurrent signer that already
// persisted its signature must not be overwritten, so the loser's update
// matches zero rows and surfaces ErrInvalidState.
func (s *PostgresStore) Update(ctx context.Context, d *SignableDocument) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE signable_documents
		SET content = $2, signed = $3, updated_at = $4
		WHERE id = $1 AND signed = FALSE`,
		string(d.ID), d.Content, d.Signed, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func scanDocument(row *sql.Row, op string) (*SignableDocument, error) {
	var d SignableDocument
	var id, requestID string
	err := row.Scan(&id, &requestID, &d.Title, &d.Content, &d.Signed, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	d.ID = ID(id)
	d.RequestID = request.ID(requestID)
	return &d, nil
}
