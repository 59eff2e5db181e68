package party

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gridconsent/pkg/platform/sentinel"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so the store can run standalone or
// inside an enclosing transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists parties in PostgreSQL.
type PostgresStore struct {
	db DBTX
}

// NewPostgres constructs a PostgreSQL-backed party store.
func NewPostgres(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByExternal(ctx context.Context, typ Type, externalID string) (Party, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, external_resource_id, created_at
		FROM parties
		WHERE type = $1 AND external_resource_id = $2`,
		string(typ), externalID)
	return scanParty(row, "find party by external id")
}

func (s *PostgresStore) FindByID(ctx context.Context, id ID) (Party, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, external_resource_id, created_at
		FROM parties
		WHERE id = $1`,
		string(id))
	return scanParty(row, "find party by id")
}

// Insert reports a duplicate (type, external_resource_id) as ErrConflict via
// ON CONFLICT DO NOTHING. Raising the constraint error instead would abort
// the enclosing transaction and break the caller's re-select.
func (s *PostgresStore) Insert(ctx context.Context, p Party) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO parties (id, type, external_resource_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`,
		string(p.ID), string(p.Type), p.ExternalResourceID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert party: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert party rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func scanParty(row *sql.Row, op string) (Party, error) {
	var p Party
	var id, typ string
	if err := row.Scan(&id, &typ, &p.ExternalResourceID, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Party{}, sentinel.ErrNotFound
		}
		return Party{}, fmt.Errorf("%s: %w", op, err)
	}
	p.ID = ID(id)
	p.Type = Type(typ)
	return p, nil
}
